package dataprep

import (
	"fmt"

	"go.uber.org/zap"

	"mlviz/pkg/data"
	"mlviz/pkg/pipeline"
)

// Dataset is a fully numeric table ready for fitting.
type Dataset struct {
	Target       string
	FeatureNames []string
	X            [][]float64
	Y            []int
	Classes      []string // Classes[code] is the original label of class code
}

// NumFeatures returns the width of X.
func (d *Dataset) NumFeatures() int { return len(d.FeatureNames) }

// Report summarises what preprocessing removed or expanded.
type Report struct {
	DroppedColumns []string
	DroppedRows    int
	EncodedColumns []string
	TargetEncoded  bool
}

type options struct {
	maxCategories int
	logger        *zap.Logger
}

// Option configures Preprocess.
type Option func(*options)

// WithMaxCategories overrides the one-hot cardinality limit.
func WithMaxCategories(n int) Option { return func(o *options) { o.maxCategories = n } }

// WithLogger routes step logs to logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// Preprocess turns a raw frame into a Dataset for target. The frame is
// modified in place. Any failure aborts the whole run.
func Preprocess(f *data.Frame, target string, opts ...Option) (*Dataset, *Report, error) {
	o := options{maxCategories: DefaultMaxCategories, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	rep := &Report{}

	steps := []pipeline.Step{
		pipeline.Func("check-target", func(f *data.Frame) error {
			if !f.Has(target) {
				return ErrTargetNotFound
			}
			return nil
		}),
		pipeline.Func("drop-unnamed", func(f *data.Frame) error {
			dropped := DropUnnamed(f, target)
			log.Info("dropping unnamed columns", zap.Strings("columns", dropped))
			rep.DroppedColumns = append(rep.DroppedColumns, dropped...)
			return nil
		}),
		pipeline.Func("drop-id", func(f *data.Frame) error {
			dropped := DropIDColumns(f, target)
			log.Info("dropping id columns", zap.Strings("columns", dropped))
			rep.DroppedColumns = append(rep.DroppedColumns, dropped...)
			return nil
		}),
		pipeline.Func("drop-missing", func(f *data.Frame) error {
			n, err := DropMissing(f)
			rep.DroppedRows = n
			log.Info("dropping rows with null values", zap.Int("rows", n))
			return err
		}),
		pipeline.Func("one-hot", func(f *data.Frame) error {
			categorical := pipeline.SchemaOf(f).Categorical(target)
			if err := CheckCardinality(f, categorical, o.maxCategories); err != nil {
				return err
			}
			log.Info("one-hot encoding columns", zap.Strings("columns", categorical))
			OneHot(f, categorical)
			rep.EncodedColumns = categorical
			return nil
		}),
	}
	if err := pipeline.NewPipeline(log, steps...).Run(f); err != nil {
		return nil, nil, err
	}

	ds, err := toDataset(f, target, rep)
	if err != nil {
		return nil, nil, err
	}
	log.Info("data preprocessing complete",
		zap.Int("rows", len(ds.X)),
		zap.Int("features", ds.NumFeatures()),
		zap.Int("classes", len(ds.Classes)),
	)
	return ds, rep, nil
}

func toDataset(f *data.Frame, target string, rep *Report) (*Dataset, error) {
	ds := &Dataset{Target: target}
	var featureIdx []int
	for j, name := range f.Columns() {
		if name == target {
			continue
		}
		ds.FeatureNames = append(ds.FeatureNames, name)
		featureIdx = append(featureIdx, j)
	}
	if len(featureIdx) == 0 {
		return nil, ErrNoFeatures
	}

	ds.X = make([][]float64, f.Len())
	for i := range ds.X {
		ds.X[i] = make([]float64, len(featureIdx))
	}
	for k, j := range featureIdx {
		name := ds.FeatureNames[k]
		for i, cell := range f.ColumnAt(j) {
			v, ok := data.ParseNumber(cell)
			if !ok {
				return nil, fmt.Errorf("column %s: value %q is not numeric", name, cell)
			}
			ds.X[i][k] = v
		}
	}

	col := f.Column(target)
	if f.Kind(target) == data.Categorical {
		ds.Y, ds.Classes = LabelEncode(col)
		rep.TargetEncoded = true
		return ds, nil
	}
	y, classes, err := NumericLabelEncode(col)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target, err)
	}
	ds.Y, ds.Classes = y, classes
	return ds, nil
}
