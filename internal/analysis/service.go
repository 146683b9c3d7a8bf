// Package analysis runs one training path end to end: it loads an upload
// into a request workspace, preprocesses it, fits a model and renders the
// artifacts returned to the caller.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"mlviz/internal/observability"
	"mlviz/pkg/data"
	"mlviz/pkg/dataprep"
	"mlviz/pkg/model"
	"mlviz/pkg/render"
	"mlviz/pkg/workspace"
)

// ErrInvalidParam is wrapped by every rejected caller-supplied hyperparameter.
var ErrInvalidParam = errors.New("invalid parameter")

// DefaultMLPMaxParams bounds the size of a requested network.
const DefaultMLPMaxParams = 1_000_000

// Options are the server-wide settings of a Service.
type Options struct {
	MaxCategories int
	KMeansMaxIter int
	MLPMaxParams  int   // largest weight + intercept count an MLP may have
	Seed          int64 // 0 => every fit seeds from the clock
}

type Service struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	opts    Options
}

// NewService returns a Service. A nil metrics records nothing.
func NewService(logger *zap.Logger, metrics *observability.Metrics, opts Options) *Service {
	if metrics == nil {
		metrics, _ = observability.NewMetrics(noop.NewMeterProvider())
	}
	if opts.MaxCategories <= 0 {
		opts.MaxCategories = dataprep.DefaultMaxCategories
	}
	if opts.KMeansMaxIter <= 0 {
		opts.KMeansMaxIter = 300
	}
	if opts.MLPMaxParams <= 0 {
		opts.MLPMaxParams = DefaultMLPMaxParams
	}
	return &Service{
		logger:  logger.With(zap.String("component", "analysis")),
		metrics: metrics,
		opts:    opts,
	}
}

// Prepare stores the upload in ws, parses it and preprocesses it for target.
func (s *Service) Prepare(ctx context.Context, ws *workspace.Workspace, filename string, upload io.Reader, target string) (*dataprep.Dataset, error) {
	name, err := data.ValidateFilename(filename)
	if err != nil {
		return nil, err
	}
	path, err := ws.SaveUpload(name, upload)
	if err != nil {
		return nil, err
	}
	frame, err := data.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, rep, err := dataprep.Preprocess(frame, target,
		dataprep.WithMaxCategories(s.opts.MaxCategories),
		dataprep.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("dataset ready",
		zap.String("file", name),
		zap.Strings("dropped_columns", rep.DroppedColumns),
		zap.Int("dropped_rows", rep.DroppedRows),
		zap.Strings("encoded_columns", rep.EncodedColumns),
		zap.Bool("target_encoded", rep.TargetEncoded),
	)
	s.metrics.RecordDatasetRows(ctx, len(ds.X))
	return ds, nil
}

// TreeParams configures DecisionTree. MaxDepth 0 grows the tree until its leaves are pure.
type TreeParams struct {
	MaxDepth int
}

type TreeResult struct {
	DecisionTree string // base64 SVG
	Depth        int
	Leaves       int
}

// DecisionTree fits a tree on every feature and renders it as SVG.
func (s *Service) DecisionTree(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset, p TreeParams) (*TreeResult, error) {
	if p.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: max_depth must not be negative", ErrInvalidParam)
	}
	opts := []model.Option{model.WithMaxDepth(p.MaxDepth)}
	if s.opts.Seed != 0 {
		opts = append(opts, model.WithRandomState(s.opts.Seed))
	}
	tree := model.NewDecisionTreeClassifier(opts...)

	start := time.Now()
	if err := tree.FitContext(ctx, ds.X, ds.Y); err != nil {
		return nil, err
	}
	s.metrics.RecordFit(ctx, "decision_tree", time.Since(start))
	s.logger.Info("decision tree trained", zap.Int("depth", tree.Depth()), zap.Int("leaves", tree.NumLeaves()))

	const artifact = "decision_tree.svg"
	if err := render.TreeSVG(tree.Export(), ds.FeatureNames, ds.Classes, ws.Path(artifact)); err != nil {
		return nil, err
	}
	img, err := ws.Encode(artifact)
	if err != nil {
		return nil, err
	}
	return &TreeResult{DecisionTree: img, Depth: tree.Depth(), Leaves: tree.NumLeaves()}, nil
}

// ClusterParams configures Clusters.
type ClusterParams struct {
	NClusters int
}

type ClusterResult struct {
	ClustersImage string // base64 PNG
	Inertia       float64
}

// Clusters runs k-means on the features and plots the assignment in the
// plane of the first two principal components.
func (s *Service) Clusters(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset, p ClusterParams) (*ClusterResult, error) {
	if p.NClusters < 1 {
		return nil, fmt.Errorf("%w: n_clusters must be at least 1", ErrInvalidParam)
	}
	km := model.NewKMeans(p.NClusters, s.opts.KMeansMaxIter)
	if s.opts.Seed != 0 {
		km.Seed = s.opts.Seed
	}

	start := time.Now()
	if err := km.FitContext(ctx, ds.X); err != nil {
		return nil, err
	}
	s.metrics.RecordFit(ctx, "kmeans", time.Since(start))
	s.logger.Info("kmeans trained", zap.Int("clusters", km.K), zap.Int("iterations", km.NIter), zap.Float64("inertia", km.Inertia))

	pca := model.NewPCA(2)
	points, err := pca.FitTransform(ds.X)
	if err != nil {
		return nil, err
	}
	centers, err := pca.Transform(km.Centroids)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("pca projection", zap.Float64s("explained_variance_ratio", pca.ExplainedVarianceRatio()))

	const artifact = "clusters.png"
	if err := render.ClusterScatter(points, km.Labels, centers, ws.Path(artifact)); err != nil {
		return nil, err
	}
	img, err := ws.Encode(artifact)
	if err != nil {
		return nil, err
	}
	return &ClusterResult{ClustersImage: img, Inertia: km.Inertia}, nil
}

// PerceptronParams configures Perceptron.
type PerceptronParams struct {
	HiddenLayers []int
	MaxIter      int
}

type PerceptronResult struct {
	Report           string  // base64 text
	ConfusionMatrix  string  // base64 PNG
	DecisionBoundary *string // base64 PNG, nil unless the dataset has exactly two features
	Accuracy         float64
	Converged        bool
}

// Perceptron fits an MLP and scores it on the training data.
func (s *Service) Perceptron(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset, p PerceptronParams) (*PerceptronResult, error) {
	if len(p.HiddenLayers) == 0 {
		return nil, fmt.Errorf("%w: hidden_layers must not be empty", ErrInvalidParam)
	}
	if p.MaxIter < 1 {
		return nil, fmt.Errorf("%w: max_iter must be at least 1", ErrInvalidParam)
	}
	if !withinParamLimit(ds.NumFeatures(), p.HiddenLayers, len(ds.Classes), s.opts.MLPMaxParams) {
		return nil, fmt.Errorf("%w: hidden_layers %v exceed the limit of %d weights", ErrInvalidParam, p.HiddenLayers, s.opts.MLPMaxParams)
	}
	opts := []model.MLPOption{model.WithMaxIter(p.MaxIter)}
	if s.opts.Seed != 0 {
		opts = append(opts, model.WithSeed(s.opts.Seed))
	}
	mlp := model.NewMLPClassifier(p.HiddenLayers, opts...)

	start := time.Now()
	if err := mlp.FitContext(ctx, ds.X, ds.Y); err != nil {
		return nil, err
	}
	s.metrics.RecordFit(ctx, "mlp", time.Since(start))
	if !mlp.Converged() {
		s.logger.Warn("mlp stopped at max_iter without converging", zap.Int("max_iter", p.MaxIter))
	}

	const (
		reportFile   = "report.txt"
		cmFile       = "confusion_matrix.png"
		boundaryFile = "decision_boundary.png"
	)
	if err := render.WriteText(ws.Path(reportFile), render.PerceptronReport(mlp, ds.X, ds.Y, ds.Classes)); err != nil {
		return nil, err
	}
	pred := mlp.Predict(ds.X)
	cm := model.ConfusionMatrix(ds.Y, pred, len(ds.Classes))
	if err := render.ConfusionMatrix(cm, ds.Classes, ws.Path(cmFile)); err != nil {
		return nil, err
	}

	res := &PerceptronResult{Accuracy: model.Accuracy(ds.Y, pred), Converged: mlp.Converged()}
	if ds.NumFeatures() == 2 {
		X2 := dataprep.FeatureSelect(ds.X, []int{0, 1})
		if err := render.DecisionBoundary(mlp.Predict, X2, ds.Y, ds.FeatureNames, ds.Classes, "Decision boundary of MLP", ws.Path(boundaryFile)); err != nil {
			return nil, err
		}
		img, err := ws.Encode(boundaryFile)
		if err != nil {
			return nil, err
		}
		res.DecisionBoundary = &img
	}

	var err error
	if res.Report, err = ws.Encode(reportFile); err != nil {
		return nil, err
	}
	if res.ConfusionMatrix, err = ws.Encode(cmFile); err != nil {
		return nil, err
	}
	s.logger.Info("mlp trained",
		zap.Ints("hidden_layers", p.HiddenLayers),
		zap.Int("epochs", mlp.NIter()),
		zap.Float64("accuracy", res.Accuracy),
	)
	return res, nil
}

// withinParamLimit reports whether a network with the given layer sizes has
// at most limit weights and intercepts.
func withinParamLimit(inputs int, hidden []int, outputs, limit int) bool {
	sizes := append(append([]int{inputs}, hidden...), outputs)
	total := 0
	for i := 1; i < len(sizes); i++ {
		in, out := sizes[i-1], sizes[i]
		if in > limit || out > limit {
			return false
		}
		total += in*out + out
		if total > limit {
			return false
		}
	}
	return true
}

// ParseHiddenLayers parses a comma separated list of positive layer sizes such as "100,50".
func ParseHiddenLayers(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	layers := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: hidden_layers must be positive integers separated by commas, got %q", ErrInvalidParam, s)
		}
		layers = append(layers, n)
	}
	return layers, nil
}
