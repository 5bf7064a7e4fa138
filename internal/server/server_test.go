package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pairnull/pkg/cache"
	"github.com/matzehuels/pairnull/pkg/errors"
	"github.com/matzehuels/pairnull/pkg/histogram"
	"github.com/matzehuels/pairnull/pkg/pipeline"
	"github.com/matzehuels/pairnull/pkg/store"
)

func featureCollection(prefix string, pts [][2]float64) string {
	features := make([]string, len(pts))
	for i, p := range pts {
		features[i] = fmt.Sprintf(`{"type":"Feature","properties":{"name":"%s%d"},"geometry":{"type":"Point","coordinates":[%g,%g]}}`,
			prefix, i+1, p[0], p[1])
	}
	return `{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`
}

func openGrid() MaskGrid {
	values := make([]float64, 100)
	for i := range values {
		values[i] = 1
	}
	return MaskGrid{NCols: 10, NRows: 10, CellSize: 1, Values: values}
}

func requestBody(t *testing.T, mask MaskGrid, options string) []byte {
	t.Helper()
	m, err := json.Marshal(mask)
	require.NoError(t, err)
	x1 := featureCollection("o", [][2]float64{{1.5, 1.5}, {2.5, 3.5}, {4.5, 2.5}, {3.5, 5.5}, {1.5, 6.5}})
	x2 := featureCollection("b", [][2]float64{{6.5, 6.5}, {8.5, 7.5}, {7.5, 8.5}, {5.5, 8.5}, {8.5, 5.5}})
	return []byte(fmt.Sprintf(`{"x1":%s,"x2":%s,"mask":%s,"options":%s}`, x1, x2, m, options))
}

const fastOptions = `{"bins":5,"tolerance":0.05,"max_tries":50000,"seed":1,"best_effort":true}`

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	ch, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	st := store.NewMemoryStore()
	runner := pipeline.NewRunner(ch, nil, st, nil)
	srv := httptest.NewServer(New(Config{Runner: runner, Store: st}).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func postRandomize(t *testing.T, srv *httptest.Server, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/randomize", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRandomize(t *testing.T) {
	srv, st := newTestServer(t)

	resp := postRandomize(t, srv, requestBody(t, openGrid(), fastOptions))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		RunID      string `json:"run_id"`
		Cached     bool   `json:"cached"`
		Replicates []struct {
			RunID string          `json:"run_id"`
			State string          `json:"state"`
			Tries int             `json:"tries"`
			X1    json.RawMessage `json:"x1"`
			X2    json.RawMessage `json:"x2"`
		} `json:"replicates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.RunID)
	assert.False(t, out.Cached)
	require.Len(t, out.Replicates, 1)
	assert.Contains(t, []string{"converged", "aborted"}, out.Replicates[0].State)
	assert.Positive(t, out.Replicates[0].Tries)

	var fc struct {
		Features []struct {
			Properties map[string]string `json:"properties"`
			Geometry   struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out.Replicates[0].X1, &fc))
	require.Len(t, fc.Features, 5)
	assert.Equal(t, "o1", fc.Features[0].Properties["name"])
	for _, f := range fc.Features {
		require.Len(t, f.Geometry.Coordinates, 2)
		assert.True(t, f.Geometry.Coordinates[0] >= 0 && f.Geometry.Coordinates[0] <= 10)
		assert.True(t, f.Geometry.Coordinates[1] >= 0 && f.Geometry.Coordinates[1] <= 10)
	}

	rec, err := st.Get(context.Background(), out.RunID)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.N1)

	// The same request is served from the cache.
	again := postRandomize(t, srv, requestBody(t, openGrid(), fastOptions))
	require.Equal(t, http.StatusOK, again.StatusCode)
	var cached RandomizeResponse
	require.NoError(t, json.NewDecoder(again.Body).Decode(&cached))
	assert.True(t, cached.Cached)
	assert.Equal(t, out.RunID, cached.RunID)
}

func TestRandomizeZeroOverlap(t *testing.T) {
	srv, st := newTestServer(t)

	for _, tt := range []struct {
		name    string
		options string
		want    float64
	}{
		{"explicit zero", `{"bins":5,"tolerance":0.05,"max_tries":2000,"seed":3,"best_effort":true,"overlap":0}`, 0},
		{"omitted", `{"bins":5,"tolerance":0.05,"max_tries":2000,"seed":3,"best_effort":true}`, histogram.DefaultOverlap},
	} {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRandomize(t, srv, requestBody(t, openGrid(), tt.options))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var out RandomizeResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

			rec, err := st.Get(context.Background(), out.RunID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Options.Overlap)
		})
	}
}

func TestRandomizeErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	empty := openGrid()
	for i := range empty.Values {
		empty.Values[i] = DefaultNoData
	}
	tiny := MaskGrid{NCols: 1, NRows: 1, XLLCorner: 5, YLLCorner: 5, CellSize: 0.01, Values: []float64{1}}
	short := openGrid()
	short.Values = short.Values[:10]

	tests := []struct {
		name   string
		body   []byte
		status int
		code   errors.Code
	}{
		{"malformed json", []byte(`{"x1":`), http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"unknown field", []byte(`{"x3":1}`), http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"missing sets", []byte(`{"mask":{}}`), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad crs", bytes.Replace(requestBody(t, openGrid(), fastOptions), []byte(`"options"`), []byte(`"crs":"EPSG:nope","options"`), 1),
			http.StatusBadRequest, errors.ErrCodeInvalidCRS},
		{"mask size mismatch", requestBody(t, short, fastOptions), http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad option", requestBody(t, openGrid(), `{"tolerance":-1}`), http.StatusBadRequest, errors.ErrCodeInvalidOption},
		{"no valid cells", requestBody(t, empty, fastOptions), http.StatusUnprocessableEntity, errors.ErrCodeInsufficientArea},
		{"no convergence", requestBody(t, tiny, `{"bins":5,"tolerance":0.001,"max_tries":2000,"seed":1}`),
			http.StatusUnprocessableEntity, errors.ErrCodeConvergenceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRandomize(t, srv, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, resp).Code)
		})
	}
}

func TestRuns(t *testing.T) {
	srv, st := newTestServer(t)
	rec := &store.Record{ID: "run-1", N1: 3, N2: 4, CRS: "EPSG:4326",
		Replicates: []store.Replicate{{RunID: "run-1", State: "converged"}}}
	require.NoError(t, st.Save(context.Background(), rec))

	resp, err := http.Get(srv.URL + "/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Runs []RunSummary `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "run-1", list.Runs[0].ID)
	assert.True(t, list.Runs[0].Converged)

	got, err := http.Get(srv.URL + "/v1/runs/run-1")
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)

	missing, err := http.Get(srv.URL + "/v1/runs/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, errors.ErrCodeNotFound, decodeError(t, missing).Code)

	bad, err := http.Get(srv.URL + "/v1/runs?limit=zero")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidOption, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInsufficientArea, "x"), http.StatusUnprocessableEntity},
		{&errors.ConvergenceError{Reason: "max tries"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("randomize: %w", &errors.ConvergenceError{Reason: "timeout"}), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), "%v", tt.err)
	}
}
