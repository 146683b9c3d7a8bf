package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"mlviz/internal/analysis"
	"mlviz/internal/middleware"
	"mlviz/internal/observability"
	"mlviz/pkg/dataprep"
	"mlviz/pkg/workspace"
)

// Settings are the request limits and default hyperparameters of the HTTP surface.
type Settings struct {
	WorkDir        string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	TreeMaxDepth   int
	HiddenLayers   string
	MLPMaxIter     int
}

// Handler serves the analysis endpoints.
type Handler struct {
	svc      *analysis.Service
	metrics  *observability.Metrics
	logger   *zap.Logger
	settings Settings
}

// New returns a Handler. metrics may be nil.
func New(svc *analysis.Service, metrics *observability.Metrics, logger *zap.Logger, s Settings) *Handler {
	return &Handler{svc: svc, metrics: metrics, logger: logger.With(zap.String("component", "handler")), settings: s}
}

// RegisterRoutes sets up all HTTP routes on the router. metricsHandler is
// mounted on /metrics when not nil.
func RegisterRoutes(r *mux.Router, h *Handler, metricsHandler http.Handler) {
	// Health checks
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/process_csv/", h.processCSV).Methods(http.MethodPost)
	r.HandleFunc("/decision_tree/", h.decisionTree).Methods(http.MethodPost)
	r.HandleFunc("/kmeans_clusters/", h.kmeansClusters).Methods(http.MethodPost)
	r.HandleFunc("/multilayer-perceptron/", h.multilayerPerceptron).Methods(http.MethodPost)
}

type treeResponse struct {
	DecisionTree string `json:"decision_tree"`
}

type clustersResponse struct {
	ClustersImage string `json:"clusters_image"`
}

type perceptronResponse struct {
	Report           string  `json:"report"`
	ConfusionMatrix  string  `json:"confusion_matrix"`
	DecisionBoundary *string `json:"decision_boundary"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// runFunc fits and renders one model into ws.
type runFunc func(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset) (any, error)

// processCSV grows the tree without a depth limit.
func (h *Handler) processCSV(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "process_csv", func(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset) (any, error) {
		res, err := h.svc.DecisionTree(ctx, ws, ds, analysis.TreeParams{})
		if err != nil {
			return nil, err
		}
		return treeResponse{DecisionTree: res.DecisionTree}, nil
	})
}

func (h *Handler) decisionTree(w http.ResponseWriter, r *http.Request) {
	depth, err := intQuery(r, "max_depth", h.settings.TreeMaxDepth)
	if err != nil {
		h.fail(w, r, "decision_tree", err)
		return
	}
	h.serve(w, r, "decision_tree", func(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset) (any, error) {
		res, err := h.svc.DecisionTree(ctx, ws, ds, analysis.TreeParams{MaxDepth: depth})
		if err != nil {
			return nil, err
		}
		return treeResponse{DecisionTree: res.DecisionTree}, nil
	})
}

func (h *Handler) kmeansClusters(w http.ResponseWriter, r *http.Request) {
	k, err := intQuery(r, "n_clusters", 3)
	if err != nil {
		h.fail(w, r, "kmeans_clusters", err)
		return
	}
	h.serve(w, r, "kmeans_clusters", func(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset) (any, error) {
		res, err := h.svc.Clusters(ctx, ws, ds, analysis.ClusterParams{NClusters: k})
		if err != nil {
			return nil, err
		}
		return clustersResponse{ClustersImage: res.ClustersImage}, nil
	})
}

func (h *Handler) multilayerPerceptron(w http.ResponseWriter, r *http.Request) {
	const endpoint = "multilayer_perceptron"
	raw := r.URL.Query().Get("hidden_layers")
	if raw == "" {
		raw = h.settings.HiddenLayers
	}
	layers, err := analysis.ParseHiddenLayers(raw)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	maxIter, err := intQuery(r, "max_iter", h.settings.MLPMaxIter)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	h.serve(w, r, endpoint, func(ctx context.Context, ws *workspace.Workspace, ds *dataprep.Dataset) (any, error) {
		res, err := h.svc.Perceptron(ctx, ws, ds, analysis.PerceptronParams{HiddenLayers: layers, MaxIter: maxIter})
		if err != nil {
			return nil, err
		}
		return perceptronResponse{
			Report:           res.Report,
			ConfusionMatrix:  res.ConfusionMatrix,
			DecisionBoundary: res.DecisionBoundary,
		}, nil
	})
}

// serve runs the shared request flow: read the upload into a fresh
// workspace, preprocess it, call run and answer with its result. The
// workspace is removed before serve returns, whatever the outcome.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, endpoint string, run runFunc) {
	target := r.URL.Query().Get("target_column")
	if target == "" {
		h.fail(w, r, endpoint, fmt.Errorf("%w: target_column is required", analysis.ErrInvalidParam))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.settings.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("upload exceeds %d bytes", tooBig.Limit)
		} else {
			err = fmt.Errorf("a CSV file is required in form field \"file\": %w", err)
		}
		h.fail(w, r, endpoint, err)
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.settings.RequestTimeout)
	defer cancel()

	ws, err := workspace.New(h.settings.WorkDir, middleware.RequestID(ctx))
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	defer func() {
		if err := ws.Close(); err != nil {
			h.logger.Error("workspace cleanup failed", zap.String("dir", ws.Dir()), zap.Error(err))
		}
	}()

	ds, err := h.svc.Prepare(ctx, ws, header.Filename, file, target)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	body, err := run(ctx, ws, ds)
	if err != nil {
		h.fail(w, r, endpoint, err)
		return
	}
	h.record(r.Context(), endpoint, "ok")
	writeJSON(w, http.StatusOK, body)
}

// fail logs err and answers 400 with its message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	h.logger.Warn("request failed",
		zap.String("endpoint", endpoint),
		zap.String("request_id", middleware.RequestID(r.Context())),
		zap.Error(err),
	)
	h.record(r.Context(), endpoint, "error")
	writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
}

func (h *Handler) record(ctx context.Context, endpoint, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordRequest(ctx, endpoint, outcome)
	}
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", analysis.ErrInvalidParam, name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
