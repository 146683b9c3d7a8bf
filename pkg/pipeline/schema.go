package pipeline

import "mlviz/pkg/data"

// Schema describes the structure of a dataset.
type Schema struct {
	FeatureNames []string
	Kinds        []data.Kind
}

// SchemaOf inspects every column of f.
func SchemaOf(f *data.Frame) Schema {
	names := f.Columns()
	kinds := make([]data.Kind, len(names))
	for i, n := range names {
		kinds[i] = f.Kind(n)
	}
	return Schema{FeatureNames: names, Kinds: kinds}
}

// Categorical returns the names of the non-numeric columns, skipping exclude.
func (s Schema) Categorical(exclude string) []string {
	var out []string
	for i, n := range s.FeatureNames {
		if n != exclude && s.Kinds[i] == data.Categorical {
			out = append(out, n)
		}
	}
	return out
}
