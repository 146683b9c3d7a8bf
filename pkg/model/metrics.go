package model

import (
	"fmt"
	"strings"
)

// Accuracy is the fraction of predictions equal to the true label.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// ConfusionMatrix counts predictions for class codes 0..k-1. Row i holds the
// samples whose true class is i, column j those predicted as j.
func ConfusionMatrix(yTrue, yPred []int, k int) [][]int {
	cm := make([][]int, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}
	for i := range yTrue {
		cm[yTrue[i]][yPred[i]]++
	}
	return cm
}

// PrecisionRecallF1 treats class as the positive label and everything else as negative.
func PrecisionRecallF1(yTrue []int, yPred []int, class int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		switch {
		case yPred[i] == class && yTrue[i] == class:
			tp++
		case yPred[i] == class:
			fp++
		case yTrue[i] == class:
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}

// ClassScores are the per-class figures of a classification report.
type ClassScores struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a per-class precision/recall/F1 summary with averages.
type Report struct {
	Classes     []ClassScores
	Accuracy    float64
	MacroAvg    ClassScores
	WeightedAvg ClassScores
}

// ClassificationReport scores class codes 0..len(labels)-1, labels[i] naming code i.
func ClassificationReport(yTrue, yPred []int, labels []string) Report {
	r := Report{Accuracy: Accuracy(yTrue, yPred)}
	r.MacroAvg = ClassScores{Label: "macro avg", Support: len(yTrue)}
	r.WeightedAvg = ClassScores{Label: "weighted avg", Support: len(yTrue)}

	support := make([]int, len(labels))
	for _, c := range yTrue {
		support[c]++
	}
	for c, name := range labels {
		p, rc, f := PrecisionRecallF1(yTrue, yPred, c)
		s := ClassScores{Label: name, Precision: p, Recall: rc, F1: f, Support: support[c]}
		r.Classes = append(r.Classes, s)

		r.MacroAvg.Precision += p
		r.MacroAvg.Recall += rc
		r.MacroAvg.F1 += f
		w := float64(s.Support)
		r.WeightedAvg.Precision += p * w
		r.WeightedAvg.Recall += rc * w
		r.WeightedAvg.F1 += f * w
	}
	if k := float64(len(labels)); k > 0 {
		r.MacroAvg.Precision /= k
		r.MacroAvg.Recall /= k
		r.MacroAvg.F1 /= k
	}
	if n := float64(len(yTrue)); n > 0 {
		r.WeightedAvg.Precision /= n
		r.WeightedAvg.Recall /= n
		r.WeightedAvg.F1 /= n
	}
	return r
}

// String lays the report out as a fixed-width text table with two decimals.
func (r Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Label))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")
	row := func(s ClassScores) {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, s.Label, s.Precision, s.Recall, s.F1, s.Support)
	}
	for _, c := range r.Classes {
		row(c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", r.Accuracy, r.MacroAvg.Support)
	row(r.MacroAvg)
	row(r.WeightedAvg)
	return b.String()
}
