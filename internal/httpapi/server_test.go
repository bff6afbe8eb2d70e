package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cs2bim-go/internal/jobs"
)

type fakeQueue struct {
	submitted []jobs.GenerateModelPayload
	state     jobs.State
	lastErr   string
	stateErr  error
}

func (f *fakeQueue) Submit(payload jobs.GenerateModelPayload) (string, error) {
	f.submitted = append(f.submitted, payload)
	return "task-1", nil
}

func (f *fakeQueue) State(taskID string) (jobs.State, string, error) {
	if f.stateErr != nil {
		return "", "", f.stateErr
	}
	return f.state, f.lastErr, nil
}

func newTestServer(q *fakeQueue, outDir string) *Server {
	return NewServer(q, outDir, logrus.NewEntry(logrus.New()))
}

func TestHandleGenerateModel_Accepted(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(q, t.TempDir())

	body, _ := json.Marshal(generateModelRequest{IfcVersion: "IFC4", Name: "test", Polygon: "POLYGON((0 0,1 0,1 1,0 1,0 0))", ProjectOrigin: "2600000,1200000,400"})
	req := httptest.NewRequest(http.MethodPost, "/generate-model", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp generateModelResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "task-1", resp.TaskID)
	require.Len(t, q.submitted, 1)
	assert.Equal(t, "POLYGON((0 0,1 0,1 1,0 1,0 0))", q.submitted[0].PolygonWKT)
	require.NotNil(t, q.submitted[0].ProjectOrigin)
	assert.Equal(t, [3]float64{2600000, 1200000, 400}, *q.submitted[0].ProjectOrigin)
}

func TestHandleGenerateModel_RejectsMissingPolygon(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(q, t.TempDir())

	body, _ := json.Marshal(generateModelRequest{IfcVersion: "IFC4"})
	req := httptest.NewRequest(http.MethodPost, "/generate-model", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, q.submitted)
}

func TestHandleGenerateModel_RejectsUnclosedPolygon(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(q, t.TempDir())

	body, _ := json.Marshal(generateModelRequest{IfcVersion: "IFC4", Polygon: "POLYGON((0 0,10 0,10 10,0 10))"})
	req := httptest.NewRequest(http.MethodPost, "/generate-model", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, q.submitted)
}

func TestHandleGenerateModel_RejectsTwoComponentOrigin(t *testing.T) {
	q := &fakeQueue{}
	s := newTestServer(q, t.TempDir())

	body, _ := json.Marshal(generateModelRequest{IfcVersion: "IFC4", Polygon: "POLYGON((0 0,1 0,1 1,0 1,0 0))", ProjectOrigin: "1,2"})
	req := httptest.NewRequest(http.MethodPost, "/generate-model", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, q.submitted)
}

func TestHandleGenerationState_ReportsState(t *testing.T) {
	q := &fakeQueue{state: jobs.StateStarted}
	s := newTestServer(q, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/generation-state/task-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp generationStateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, jobs.StateStarted, resp.State)
}

func TestHandleGeneratedFile_ServesFileOnSuccess(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "task-1.ifc"), []byte("ISO-10303-21;"), 0o644))

	q := &fakeQueue{state: jobs.StateSuccess}
	s := newTestServer(q, outDir)

	req := httptest.NewRequest(http.MethodGet, "/generated-file/task-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ISO-10303-21;")
}

func TestHandleGeneratedFile_AcceptedWhileProcessing(t *testing.T) {
	q := &fakeQueue{state: jobs.StateStarted}
	s := newTestServer(q, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/generated-file/task-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleGeneratedFile_BadRequestOnFailure(t *testing.T) {
	q := &fakeQueue{state: jobs.StateFailure, lastErr: "boom"}
	s := newTestServer(q, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/generated-file/task-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGeneratedFile_GoneWhenFileMissing(t *testing.T) {
	q := &fakeQueue{state: jobs.StateSuccess}
	s := newTestServer(q, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/generated-file/task-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)
}
