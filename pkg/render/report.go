package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"mlviz/pkg/model"
)

// PerceptronReport describes a fitted network and how it scores on X, y:
// layer weights, accuracy, confusion matrix and classification report.
func PerceptronReport(mlp *model.MLPClassifier, X [][]float64, y []int, classes []string) string {
	pred := mlp.Predict(X)

	var b strings.Builder
	b.WriteString("Multilayer Perceptron Report\n\n")
	b.WriteString("Weights of each layer:\n")
	for i, w := range mlp.Coefs() {
		fmt.Fprintf(&b, "Layer %d:\n%v\n\n", i, mat.Formatted(w, mat.Squeeze()))
	}
	fmt.Fprintf(&b, "Accuracy: %s\n\n", strconv.FormatFloat(model.Accuracy(y, pred), 'f', -1, 64))

	b.WriteString("Confusion Matrix:\n")
	b.WriteString(formatCounts(model.ConfusionMatrix(y, pred, len(classes))))
	b.WriteString("\n\n")

	b.WriteString("Classification Report:\n")
	b.WriteString(model.ClassificationReport(y, pred, classes).String())
	b.WriteString("\n\n")
	return b.String()
}

// formatCounts prints an integer matrix as right-aligned bracketed rows.
func formatCounts(cm [][]int) string {
	width := 1
	for _, row := range cm {
		for _, v := range row {
			width = max(width, len(strconv.Itoa(v)))
		}
	}
	var b strings.Builder
	b.WriteString("[")
	for i, row := range cm {
		if i > 0 {
			b.WriteString("\n ")
		}
		b.WriteString("[")
		for j, v := range row {
			if j > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%*d", width, v)
		}
		b.WriteString("]")
	}
	b.WriteString("]")
	return b.String()
}

// WriteText writes s to path.
func WriteText(path, s string) error {
	return os.WriteFile(path, []byte(s), 0o600)
}
