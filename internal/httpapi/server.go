// Package httpapi exposes the three thin, validation-only HTTP routes
// of the job-submission surface: submit a generation request, poll its
// state, fetch its artifact.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"cs2bim-go/internal/jobs"
	"cs2bim-go/internal/tin"
)

// Queue is the subset of jobs.Queue this surface depends on.
type Queue interface {
	Submit(payload jobs.GenerateModelPayload) (taskID string, err error)
	State(taskID string) (jobs.State, string, error)
}

// Server hosts the generate-model job submission/status/retrieval
// routes over a Queue and the configured output directory.
type Server struct {
	queue           Queue
	outputDirectory string
	log             *logrus.Entry
	router          *mux.Router
}

// NewServer builds a Server and registers its routes.
func NewServer(queue Queue, outputDirectory string, log *logrus.Entry) *Server {
	s := &Server{queue: queue, outputDirectory: outputDirectory, log: log}
	s.router = newRouter(s)
	return s
}

// Handler returns the composed http.Handler, with gorilla/handlers'
// logging and CORS middleware wrapped around the router.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(handlers.CombinedLoggingHandler(os.Stdout, s.router))
}

func newRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/generate-model", appHandler(s.handleGenerateModel)).Methods("POST")
	r.Handle("/generation-state/{taskId}", appHandler(s.handleGenerationState)).Methods("GET")
	r.Handle("/generated-file/{taskId}", appHandler(s.handleGeneratedFile)).Methods("GET")
	return r
}

type generateModelRequest struct {
	IfcVersion    string `json:"ifc_version"`
	Name          string `json:"name"`
	Polygon       string `json:"polygon"`
	ProjectOrigin string `json:"project_origin,omitempty"`
}

type generateModelResponse struct {
	TaskID string `json:"task_id"`
}

// handleGenerateModel validates and submits a generation request. Bad
// input is the one error surfaced synchronously: the polygon must
// parse as a single closed WKT polygon and the optional origin as
// three comma-separated floats, both rejected with 422 before anything
// is enqueued. Everything heavier happens in the worker.
func (s *Server) handleGenerateModel(w http.ResponseWriter, r *http.Request) *appError {
	var req generateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return appErrorBadRequest(err, "malformed JSON body")
	}
	switch req.IfcVersion {
	case "IFC4", "IFC4x3":
	default:
		return appErrorUnprocessable(nil, "ifc_version must be IFC4 or IFC4x3")
	}
	if req.Polygon == "" {
		return appErrorUnprocessable(nil, "polygon is required")
	}
	if _, err := tin.NewAreaFromWKT(req.Polygon, [2]float64{}); err != nil {
		return appErrorUnprocessable(err, "polygon is not a valid closed WKT polygon")
	}

	origin, err := parseOrigin(req.ProjectOrigin)
	if err != nil {
		return appErrorUnprocessable(err, "project_origin must be three comma-separated numbers")
	}

	taskID, err := s.queue.Submit(jobs.GenerateModelPayload{
		IfcVersion:    req.IfcVersion,
		Name:          req.Name,
		PolygonWKT:    req.Polygon,
		ProjectOrigin: origin,
	})
	if err != nil {
		return appErrorInternal(err, "failed to submit generation job")
	}

	return writeJSON(w, http.StatusAccepted, generateModelResponse{TaskID: taskID})
}

// parseOrigin parses an optional "east,north,height" string into its
// three floats; an empty string means no explicit origin.
func parseOrigin(s string) (*[3]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 components, got %d", len(parts))
	}
	var origin [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		origin[i] = v
	}
	return &origin, nil
}

type generationStateResponse struct {
	State   jobs.State `json:"state"`
	LastErr string     `json:"last_error,omitempty"`
}

func (s *Server) handleGenerationState(w http.ResponseWriter, r *http.Request) *appError {
	taskID := mux.Vars(r)["taskId"]
	state, lastErr, err := s.queue.State(taskID)
	if err != nil {
		return appErrorNotFound(err, "unknown task id")
	}
	return writeJSON(w, http.StatusOK, generationStateResponse{State: state, LastErr: lastErr})
}

// handleGeneratedFile serves the artifact once its task has reached
// SUCCESS: 202 while the job is still PENDING, STARTED, or RETRY; 400
// on FAILURE; 410 when SUCCESS but the file has since been removed
// from disk. The on-disk path is deterministic
// (outputDirectory/taskId.ifc), matching the name the worker writes.
func (s *Server) handleGeneratedFile(w http.ResponseWriter, r *http.Request) *appError {
	taskID := mux.Vars(r)["taskId"]
	state, lastErr, err := s.queue.State(taskID)
	if err != nil {
		return appErrorNotFound(err, "unknown task id")
	}

	switch state {
	case jobs.StateSuccess:
		// fall through to serve the file below
	case jobs.StateFailure:
		return appErrorBadRequest(nil, "generation failed: "+lastErr)
	default:
		return writeJSON(w, http.StatusAccepted, generationStateResponse{State: state})
	}

	path := filepath.Join(s.outputDirectory, taskID+".ifc")
	if _, err := os.Stat(path); err != nil {
		return appErrorGone(err, "generated file no longer present on disk")
	}

	w.Header().Set("Content-Type", "application/x-step")
	http.ServeFile(w, r, path)
	return nil
}
