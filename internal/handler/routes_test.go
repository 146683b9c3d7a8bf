package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"

	"mlviz/internal/analysis"
	"mlviz/internal/middleware"
	"mlviz/internal/observability"
)

const labelCSV = `A,B,Label
1.0,2.0,no
1.5,1.8,no
1.2,2.4,no
0.9,2.1,no
5.0,6.0,yes
5.5,6.3,yes
6.1,5.8,yes
5.8,6.6,yes
`

// testRouter wires a router the way the server does and returns it with
// the directory that holds the request workspaces.
func testRouter(t *testing.T, maxUpload int64) (http.Handler, string) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	metrics, err := observability.NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	workDir := t.TempDir()
	svc := analysis.NewService(logger, metrics, analysis.Options{Seed: 1})
	h := New(svc, metrics, logger, Settings{
		WorkDir:        workDir,
		MaxUploadBytes: maxUpload,
		RequestTimeout: time.Minute,
		TreeMaxDepth:   5,
		HiddenLayers:   "2,2",
		MLPMaxIter:     20,
	})
	r := mux.NewRouter()
	RegisterRoutes(r, h, http.NotFoundHandler())
	return middleware.LoggingMiddleware(logger)(r), workDir
}

func upload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func decode(t *testing.T, v any) []byte {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "expected a base64 string, got %T", v)
	require.NotEmpty(t, s)
	b, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}

func assertNoLeftovers(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "request workspaces must be removed")
}

func TestHealthz(t *testing.T) {
	h, _ := testRouter(t, 1<<20)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyz(t *testing.T) {
	h, _ := testRouter(t, 1<<20)

	rec, body := do(t, h, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestDecisionTree_ReturnsSVG(t *testing.T) {
	h, workDir := testRouter(t, 1<<20)

	rec, body := do(t, h, upload(t, "/decision_tree/?target_column=Label", "data.csv", labelCSV))

	require.Equal(t, http.StatusOK, rec.Code, body)
	svg := decode(t, body["decision_tree"])
	assert.Contains(t, string(svg), "<svg")
	assert.Contains(t, string(svg), "class = yes")
	assertNoLeftovers(t, workDir)
}

func TestDecisionTree_ConcurrentRequests(t *testing.T) {
	h, workDir := testRouter(t, 1<<20)

	var wg sync.WaitGroup
	codes := make([][]int, 8)
	for g := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 5 {
				path := "/decision_tree/?target_column=Label"
				if i%2 == 1 {
					path = "/process_csv/?target_column=Label"
				}
				req := upload(t, path, "data.csv", labelCSV)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				codes[g] = append(codes[g], rec.Code)
			}
		}()
	}
	wg.Wait()

	for _, perWorker := range codes {
		assert.Len(t, perWorker, 5)
		for _, code := range perWorker {
			assert.Equal(t, http.StatusOK, code)
		}
	}
	assertNoLeftovers(t, workDir)
}

func TestProcessCSV_Repeatable(t *testing.T) {
	h, workDir := testRouter(t, 1<<20)

	_, first := do(t, h, upload(t, "/process_csv/?target_column=Label", "data.csv", labelCSV))
	_, second := do(t, h, upload(t, "/process_csv/?target_column=Label", "data.csv", labelCSV))

	assert.Equal(t, decode(t, first["decision_tree"]), decode(t, second["decision_tree"]))
	assertNoLeftovers(t, workDir)
}

func TestKMeansClusters_ReturnsPNG(t *testing.T) {
	h, workDir := testRouter(t, 1<<20)

	rec, body := do(t, h, upload(t, "/kmeans_clusters/?target_column=Label&n_clusters=2", "data.csv", labelCSV))

	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.True(t, bytes.HasPrefix(decode(t, body["clusters_image"]), []byte("\x89PNG")))
	assertNoLeftovers(t, workDir)
}

func TestMultilayerPerceptron_TwoFeatures(t *testing.T) {
	h, workDir := testRouter(t, 1<<20)

	rec, body := do(t, h, upload(t, "/multilayer-perceptron/?target_column=Label&hidden_layers=4&max_iter=10", "data.csv", labelCSV))

	require.Equal(t, http.StatusOK, rec.Code, body)
	report := string(decode(t, body["report"]))
	assert.True(t, strings.HasPrefix(report, "Multilayer Perceptron Report"))
	assert.Contains(t, report, "Classification Report:")
	assert.True(t, bytes.HasPrefix(decode(t, body["confusion_matrix"]), []byte("\x89PNG")))
	assert.True(t, bytes.HasPrefix(decode(t, body["decision_boundary"]), []byte("\x89PNG")))
	assertNoLeftovers(t, workDir)
}

func TestMultilayerPerceptron_NoBoundaryBeyondTwoFeatures(t *testing.T) {
	h, _ := testRouter(t, 1<<20)
	csv := "A,B,C,Label\n1,2,3,x\n2,3,4,x\n7,8,9,y\n8,9,10,y\n"

	rec, body := do(t, h, upload(t, "/multilayer-perceptron/?target_column=Label&max_iter=5", "data.csv", csv))

	require.Equal(t, http.StatusOK, rec.Code, body)
	assert.Contains(t, body, "decision_boundary")
	assert.Nil(t, body["decision_boundary"])
}

func TestEndpoints_MissingTargetColumn(t *testing.T) {
	h, workDir := testRouter(t, 1<<20)

	for _, path := range []string{"/process_csv/", "/decision_tree/", "/kmeans_clusters/", "/multilayer-perceptron/"} {
		t.Run(path, func(t *testing.T) {
			rec, body := do(t, h, upload(t, path+"?target_column=Nope", "data.csv", labelCSV))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Target column not found in the dataset", body["detail"])
			assert.Len(t, body, 1, "no artifact is returned")
		})
	}
	assertNoLeftovers(t, workDir)
}

func TestDecisionTree_Errors(t *testing.T) {
	var wide strings.Builder
	wide.WriteString("City,Score,Label\n")
	for i := range 101 {
		fmt.Fprintf(&wide, "c%d,%d,%s\n", i, i, []string{"a", "b"}[i%2])
	}

	tests := []struct {
		name     string
		path     string
		filename string
		content  string
		detail   string
	}{
		{"not a csv", "/decision_tree/?target_column=Label", "data.txt", labelCSV, "File must be a CSV file"},
		{"no target param", "/decision_tree/", "data.csv", labelCSV, "target_column is required"},
		{"bad depth", "/decision_tree/?target_column=Label&max_depth=deep", "data.csv", labelCSV, "max_depth must be an integer"},
		{"all rows missing", "/decision_tree/?target_column=Label", "data.csv", "A,B,Label\n1,,x\n,2,y\n", "Dataset is empty after removing null values"},
		{"too many categories", "/decision_tree/?target_column=Label", "data.csv", wide.String(), "Column City has over 100 unique values"},
		{"ragged rows", "/decision_tree/?target_column=Label", "data.csv", "A,B,Label\n1,2\n", "could not parse CSV"},
		{"bad clusters", "/kmeans_clusters/?target_column=Label&n_clusters=x", "data.csv", labelCSV, "n_clusters must be an integer"},
		{"too many clusters", "/kmeans_clusters/?target_column=Label&n_clusters=50", "data.csv", labelCSV, "less than K"},
		{"bad layers", "/multilayer-perceptron/?target_column=Label&hidden_layers=2,a", "data.csv", labelCSV, "hidden_layers"},
		{"network too large", "/multilayer-perceptron/?target_column=Label&hidden_layers=60000,60000&max_iter=1", "data.csv", labelCSV, "exceed the limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, workDir := testRouter(t, 1<<20)

			rec, body := do(t, h, upload(t, tt.path, tt.filename, tt.content))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, body["detail"], tt.detail)
			assertNoLeftovers(t, workDir)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	h, workDir := testRouter(t, 64)

	rec, _ := do(t, h, upload(t, "/decision_tree/?target_column=Label", "data.csv", labelCSV))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assertNoLeftovers(t, workDir)
}

func TestMissingFile(t *testing.T) {
	h, _ := testRouter(t, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/decision_tree/?target_column=Label", strings.NewReader(""))

	rec, body := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["detail"], "form field \"file\"")
}
