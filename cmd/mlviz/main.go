package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mlviz/internal/analysis"
	"mlviz/internal/observability"
	"mlviz/pkg/data"
	"mlviz/pkg/dataprep"
	"mlviz/pkg/model"
	"mlviz/pkg/render"
)

//
// ---------------------- CLI FLAGS ----------------------
//
// --input     : Path to input CSV file
// --target    : Name of the target column
// --model     : tree, kmeans, mlp or prep
// --out       : Directory that receives the artifacts. Default = .
// --max-depth : Tree depth limit (0 = grow until pure)
// --prune     : Hold out this fraction for reduced-error pruning (tree only)
// --dot       : Also write the tree as DOT source
// --save      : Also write the fitted tree as a gob blob
// --clusters  : Number of k-means clusters
// --hidden    : MLP hidden layer sizes, e.g. "100,50"
// --max-iter  : MLP epochs
// --seed      : Random seed (0 = from the clock)
// --log-level : debug, info, warn, error
//
// Example:
//   go run ./cmd/mlviz --input iris.csv --target Species --model mlp --hidden 8 --out ./artifacts
//
// -------------------------------------------------------
//

type options struct {
	input    string
	target   string
	model    string
	out      string
	maxDepth int
	prune    float64
	dot      bool
	save     bool
	clusters int
	hidden   string
	maxIter  int
	seed     int64
}

func main() {
	var o options
	logLevel := registerFlags(flag.CommandLine, &o)
	flag.Parse()

	logger, err := observability.InitLogger(observability.LogConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("mlviz failed", zap.Error(err))
		os.Exit(1)
	}
}

// registerFlags binds the CLI flags to o and returns the log level flag.
func registerFlags(fs *flag.FlagSet, o *options) *string {
	fs.StringVar(&o.input, "input", "", "Path to input CSV file")
	fs.StringVar(&o.target, "target", "", "Name of the target column")
	fs.StringVar(&o.model, "model", "tree", "Model to run: tree, kmeans, mlp or prep")
	fs.StringVar(&o.out, "out", ".", "Directory that receives the artifacts")
	fs.IntVar(&o.maxDepth, "max-depth", 5, "Tree depth limit (0 = unlimited)")
	fs.Float64Var(&o.prune, "prune", 0, "Validation fraction for reduced-error pruning (0 = off)")
	fs.BoolVar(&o.dot, "dot", false, "Also write the tree as DOT source")
	fs.BoolVar(&o.save, "save", false, "Also write the fitted tree as a gob blob")
	fs.IntVar(&o.clusters, "clusters", 3, "Number of k-means clusters")
	fs.StringVar(&o.hidden, "hidden", "2,2", "MLP hidden layer sizes")
	fs.IntVar(&o.maxIter, "max-iter", 100, "MLP epochs")
	fs.Int64Var(&o.seed, "seed", 0, "Random seed (0 = from the clock)")
	return fs.String("log-level", "info", "Log level")
}

func run(ctx context.Context, logger *zap.Logger, o options) error {
	if o.input == "" || o.target == "" {
		return fmt.Errorf("--input and --target are required")
	}
	if _, err := data.ValidateFilename(o.input); err != nil {
		return err
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return err
	}

	frame, err := data.LoadCSV(o.input)
	if err != nil {
		return err
	}
	logger.Info("loaded raw data", zap.Int("rows", frame.Len()), zap.Int("columns", len(frame.Columns())))

	ds, rep, err := dataprep.Preprocess(frame, o.target, dataprep.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("after preprocessing",
		zap.Int("samples", len(ds.X)),
		zap.Int("features", ds.NumFeatures()),
		zap.Strings("dropped_columns", rep.DroppedColumns),
		zap.Int("dropped_rows", rep.DroppedRows),
	)

	seed := o.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	switch o.model {
	case "prep":
		return writeProcessed(logger, ds, o)
	case "tree":
		return runTree(ctx, logger, ds, o, seed)
	case "kmeans":
		return runKMeans(ctx, logger, ds, o, seed)
	case "mlp":
		return runMLP(ctx, logger, ds, o, seed)
	default:
		return fmt.Errorf("unknown model %q", o.model)
	}
}

func writeProcessed(logger *zap.Logger, ds *dataprep.Dataset, o options) error {
	base := strings.TrimSuffix(filepath.Base(o.input), filepath.Ext(o.input))
	path := filepath.Join(o.out, "processed_"+base+".csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	rows := make([][]float64, len(ds.X))
	for i, x := range ds.X {
		rows[i] = append(append([]float64(nil), x...), float64(ds.Y[i]))
	}
	if err := data.WriteCSV(file, append(append([]string(nil), ds.FeatureNames...), ds.Target), rows); err != nil {
		return err
	}
	logger.Info("processed data saved", zap.String("path", path), zap.Strings("classes", ds.Classes))
	return file.Close()
}

func runTree(ctx context.Context, logger *zap.Logger, ds *dataprep.Dataset, o options, seed int64) error {
	X, y := ds.X, ds.Y
	var Xval [][]float64
	var yval []int
	if o.prune > 0 {
		if o.prune >= 1 {
			return fmt.Errorf("--prune must be below 1, got %v", o.prune)
		}
		X, Xval, y, yval = data.TrainTestSplit(ds.X, ds.Y, o.prune, rand.New(rand.NewSource(seed)))
	}

	tree := model.NewDecisionTreeClassifier(model.WithMaxDepth(o.maxDepth), model.WithRandomState(seed))
	if err := tree.FitContext(ctx, X, y); err != nil {
		return err
	}
	logger.Info("decision tree trained", zap.Int("depth", tree.Depth()), zap.Int("leaves", tree.NumLeaves()))

	if len(Xval) > 0 {
		before := model.Accuracy(yval, tree.Predict(Xval))
		pruned, err := tree.PruneReducedError(Xval, yval)
		if err != nil {
			return err
		}
		logger.Info("tree pruned",
			zap.Int("collapsed", pruned),
			zap.Int("leaves", tree.NumLeaves()),
			zap.Float64("val_accuracy_before", before),
			zap.Float64("val_accuracy_after", model.Accuracy(yval, tree.Predict(Xval))),
		)
	}

	svg := filepath.Join(o.out, "decision_tree.svg")
	if err := render.TreeSVG(tree.Export(), ds.FeatureNames, ds.Classes, svg); err != nil {
		return err
	}
	logger.Info("tree rendered", zap.String("path", svg))

	if o.dot {
		dot, err := render.TreeDOT(tree.Export(), ds.FeatureNames, ds.Classes)
		if err != nil {
			return err
		}
		path := filepath.Join(o.out, "decision_tree.dot")
		if err := render.WriteText(path, dot); err != nil {
			return err
		}
		logger.Info("tree source written", zap.String("path", path))
	}
	if o.save {
		blob, err := tree.MarshalBinary()
		if err != nil {
			return err
		}
		path := filepath.Join(o.out, "decision_tree.gob")
		if err := os.WriteFile(path, blob, 0o644); err != nil {
			return err
		}
		logger.Info("tree saved", zap.String("path", path))
	}
	return nil
}

func runKMeans(ctx context.Context, logger *zap.Logger, ds *dataprep.Dataset, o options, seed int64) error {
	km := model.NewKMeans(o.clusters, 300)
	km.Seed = seed
	if err := km.FitContext(ctx, ds.X); err != nil {
		return err
	}
	logger.Info("kmeans trained", zap.Int("iterations", km.NIter), zap.Float64("inertia", km.Inertia))

	pca := model.NewPCA(2)
	points, err := pca.FitTransform(ds.X)
	if err != nil {
		return err
	}
	centers, err := pca.Transform(km.Centroids)
	if err != nil {
		return err
	}
	path := filepath.Join(o.out, "clusters.png")
	if err := render.ClusterScatter(points, km.Labels, centers, path); err != nil {
		return err
	}
	logger.Info("clusters rendered", zap.String("path", path), zap.Float64s("explained_variance_ratio", pca.ExplainedVarianceRatio()))
	return nil
}

func runMLP(ctx context.Context, logger *zap.Logger, ds *dataprep.Dataset, o options, seed int64) error {
	layers, err := analysis.ParseHiddenLayers(o.hidden)
	if err != nil {
		return err
	}
	mlp := model.NewMLPClassifier(layers, model.WithMaxIter(o.maxIter), model.WithSeed(seed))
	if err := mlp.FitContext(ctx, ds.X, ds.Y); err != nil {
		return err
	}
	if !mlp.Converged() {
		logger.Warn("mlp stopped at max_iter without converging", zap.Int("max_iter", o.maxIter))
	}

	report := render.PerceptronReport(mlp, ds.X, ds.Y, ds.Classes)
	if err := render.WriteText(filepath.Join(o.out, "report.txt"), report); err != nil {
		return err
	}
	fmt.Print(report)

	pred := mlp.Predict(ds.X)
	cm := model.ConfusionMatrix(ds.Y, pred, len(ds.Classes))
	if err := render.ConfusionMatrix(cm, ds.Classes, filepath.Join(o.out, "confusion_matrix.png")); err != nil {
		return err
	}
	if ds.NumFeatures() == 2 {
		path := filepath.Join(o.out, "decision_boundary.png")
		if err := render.DecisionBoundary(mlp.Predict, ds.X, ds.Y, ds.FeatureNames, ds.Classes, "Decision boundary of MLP", path); err != nil {
			return err
		}
	}
	logger.Info("mlp trained", zap.Int("epochs", mlp.NIter()), zap.Float64("accuracy", model.Accuracy(ds.Y, pred)))
	return nil
}
