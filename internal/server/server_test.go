package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhersch/flowlevel/pkg/cache"
	"github.com/mhersch/flowlevel/pkg/pipeline"
	"github.com/mhersch/flowlevel/pkg/report"
	"github.com/mhersch/flowlevel/pkg/store"
)

const testManifest = `
[program]
name = "resnet_block"

[[region]]
name = "forward"
buffers = ["fm1", "fm2"]

[[region.node]]
name = "conv1"
kind = "loop"
stores = ["fm1"]

[[region.node]]
name = "conv2"
kind = "loop"
loads = ["fm1"]
stores = ["fm2"]

[[region.node]]
name = "fuse"
kind = "loop"
loads = ["fm1", "fm2"]
`

// loadBeforeStoreManifest schedules a reader ahead of the writer, which the
// legalizer rejects.
const loadBeforeStoreManifest = `
[program]
name = "broken"

[[region]]
name = "forward"
buffers = ["fm1"]

[[region.node]]
name = "fuse"
kind = "loop"
loads = ["fm1"]

[[region.node]]
name = "conv"
kind = "loop"
stores = ["fm1"]
`

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, log.New(io.Discard))
	st := store.NewMemoryStore()
	srv := httptest.NewServer(New(runner, st, log.New(io.Discard)).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func decodeError(t *testing.T, body io.Reader) (code, message string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&envelope))
	return envelope.Error.Code, envelope.Error.Message
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestLegalize(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize", "application/toml", strings.NewReader(testManifest))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Report-Hash"))

	rep, err := report.ReadJSON(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "resnet_block", rep.Program)
	require.Len(t, rep.Regions, 1)
	assert.True(t, rep.Regions[0].Legalized)
	assert.EqualValues(t, 3, rep.Regions[0].Stats.Levels)
	assert.True(t, rep.Options.InsertCopy)
}

func TestLegalizeMergeMode(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize?insert_copy=false&min_gran=2", "application/toml", strings.NewReader(testManifest))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep, err := report.ReadJSON(resp.Body)
	require.NoError(t, err)
	assert.False(t, rep.Options.InsertCopy)
	assert.Equal(t, 2, rep.Options.MinGran)
}

func TestLegalizeArchives(t *testing.T) {
	srv, st := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize?archive=true", "application/toml", strings.NewReader(testManifest))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	summaries, err := st.List(t.Context())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "resnet_block", summaries[0].Program)
}

func TestLegalizeEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize", "application/toml", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, _ := decodeError(t, resp.Body)
	assert.Equal(t, "INVALID_MANIFEST", code)
}

func TestLegalizeInvalidManifest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize", "application/toml", strings.NewReader("not toml = = ="))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, _ := decodeError(t, resp.Body)
	assert.Equal(t, "INVALID_MANIFEST", code)
}

func TestLegalizeFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize", "application/toml", strings.NewReader(loadBeforeStoreManifest))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	code, _ := decodeError(t, resp.Body)
	assert.Equal(t, "LEGALIZATION_FAILED", code)
}

func TestLegalizeInvalidMinGran(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/legalize?min_gran=zero", "application/toml", strings.NewReader(testManifest))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, _ := decodeError(t, resp.Body)
	assert.Equal(t, "INVALID_INPUT", code)
}

func TestGetReport(t *testing.T) {
	srv, st := newTestServer(t)

	rep := &report.Report{ID: "run-1", Program: "resnet_block"}
	require.NoError(t, st.Put(t.Context(), rep))

	resp, err := http.Get(srv.URL + "/api/reports/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got, err := report.ReadJSON(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
}

func TestGetReportNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/reports/absent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	code, _ := decodeError(t, resp.Body)
	assert.Equal(t, "REPORT_NOT_FOUND", code)
}

func TestListReports(t *testing.T) {
	srv, st := newTestServer(t)

	require.NoError(t, st.Put(t.Context(), &report.Report{ID: "run-1", Program: "a"}))
	require.NoError(t, st.Put(t.Context(), &report.Report{ID: "run-2", Program: "b"}))

	resp, err := http.Get(srv.URL + "/api/reports")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Reports []store.Summary `json:"reports"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Reports, 2)
}

func TestDeleteReport(t *testing.T) {
	srv, st := newTestServer(t)

	require.NoError(t, st.Put(t.Context(), &report.Report{ID: "run-1", Program: "a"}))

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/reports/run-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Deleting again reports not found.
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
