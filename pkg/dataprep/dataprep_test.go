package dataprep_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"mlviz/pkg/data"
	"mlviz/pkg/dataprep"
)

func frame(t *testing.T, csv string) *data.Frame {
	t.Helper()
	f, err := data.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return f
}

func TestPreprocess(t *testing.T) {
	f := frame(t, ",ID,Color,Size,Label\n0,10,red,1.5,no\n1,11,blue,2,yes\n2,12,red,,yes\n3,13,green,4,no\n")

	ds, rep, err := dataprep.Preprocess(f, "Label", dataprep.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"Unnamed: 0", "ID"}, rep.DroppedColumns)
	assert.Equal(t, 1, rep.DroppedRows)
	assert.Equal(t, []string{"Color"}, rep.EncodedColumns)
	assert.True(t, rep.TargetEncoded)

	assert.Equal(t, "Label", ds.Target)
	assert.Equal(t, []string{"Size", "Color_blue", "Color_green", "Color_red"}, ds.FeatureNames)
	assert.Equal(t, [][]float64{
		{1.5, 0, 0, 1},
		{2, 1, 0, 0},
		{4, 0, 1, 0},
	}, ds.X)
	assert.Equal(t, []int{0, 1, 0}, ds.Y)
	assert.Equal(t, []string{"no", "yes"}, ds.Classes)
	assert.Equal(t, 4, ds.NumFeatures())
}

func TestPreprocess_KeepsIdentifierTarget(t *testing.T) {
	ds, _, err := dataprep.Preprocess(frame(t, "x,identity\n1,a\n2,b\n"), "identity")
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, ds.FeatureNames)
	assert.Equal(t, []string{"a", "b"}, ds.Classes)
}

func TestPreprocess_NumericTarget(t *testing.T) {
	ds, rep, err := dataprep.Preprocess(frame(t, "x,y\n1,2.0\n2,10\n3,2\n"), "y")
	require.NoError(t, err)

	assert.False(t, rep.TargetEncoded)
	assert.Equal(t, []int{0, 1, 0}, ds.Y)
	assert.Equal(t, []string{"2", "10"}, ds.Classes)
}

func TestPreprocess_Errors(t *testing.T) {
	var wide strings.Builder
	wide.WriteString("City,Label\n")
	for i := range 6 {
		fmt.Fprintf(&wide, "c%d,%d\n", i, i%2)
	}

	tests := []struct {
		name   string
		csv    string
		target string
		opts   []dataprep.Option
		want   error
	}{
		{"target missing", "a,b\n1,2\n", "Label", nil, dataprep.ErrTargetNotFound},
		{"empty after drop", "a,Label\n,x\n1,\n", "Label", nil, dataprep.ErrEmptyDataset},
		{"only target left", "id,Label\n1,x\n", "Label", nil, dataprep.ErrNoFeatures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := dataprep.Preprocess(frame(t, tt.csv), tt.target, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("too many categories", func(t *testing.T) {
		_, _, err := dataprep.Preprocess(frame(t, wide.String()), "Label", dataprep.WithMaxCategories(5))

		var ce *dataprep.CardinalityError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "City", ce.Column)
		assert.Equal(t, 6, ce.Distinct)
		assert.Contains(t, err.Error(), "Column City has over 5 unique values")
	})
}

func TestLabelEncode(t *testing.T) {
	codes, classes := dataprep.LabelEncode([]string{"b", "a", "c", "a"})

	assert.Equal(t, []int{1, 0, 2, 0}, codes)
	assert.Equal(t, []string{"a", "b", "c"}, classes)
}

func TestEncodeCategorical(t *testing.T) {
	oh, cats := dataprep.EncodeCategorical([]string{"red", "blue", "red"})

	assert.Equal(t, []string{"blue", "red"}, cats)
	assert.Equal(t, [][]float64{{0, 1}, {1, 0}, {0, 1}}, oh)
}

func TestOneHot_NameCollision(t *testing.T) {
	f := data.NewFrame([]string{"color", "color_red", "Label"}, [][]string{
		{"red", "5", "x"},
		{"blue", "6", "y"},
	})

	dataprep.OneHot(f, []string{"color"})

	assert.Equal(t, []string{"color_red", "Label", "color_blue", "color_red.1"}, f.Columns())
	assert.Equal(t, []string{"5", "6"}, f.Column("color_red"))
	assert.Equal(t, []string{"1", "0"}, f.Column("color_red.1"))
}

func TestPreprocess_IndicatorNamesStayUnique(t *testing.T) {
	ds, _, err := dataprep.Preprocess(frame(t, "color,color_red,Label\nred,5,x\nblue,6,y\n"), "Label")
	require.NoError(t, err)

	assert.Equal(t, []string{"color_red", "color_blue", "color_red.1"}, ds.FeatureNames)
	assert.Equal(t, [][]float64{{5, 0, 1}, {6, 1, 0}}, ds.X)
}

func TestIsIDColumn(t *testing.T) {
	for name, want := range map[string]bool{
		"id": true, "ID": true, "Id_user": true, "identifier": true,
		"user_id": false, "width": false,
	} {
		assert.Equal(t, want, dataprep.IsIDColumn(name), name)
	}
}

func TestFeatureSelect(t *testing.T) {
	X := [][]float64{{1, 2, 3}, {4, 5, 6}}

	assert.Equal(t, [][]float64{{3, 1}, {6, 4}}, dataprep.FeatureSelect(X, []int{2, 0}))
	assert.Equal(t, []float64{2, 5}, dataprep.Column(X, 1))
}
