package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"cs2bim-go/internal/cserr"
)

// TaskTypeGenerateModel is the asynq task type name for a model
// generation job.
const TaskTypeGenerateModel = "model:generate"

// GenerateModelPayload is the payload of one generation job: an IFC
// schema version, a display name, the WKT polygon, and an optional
// project origin.
type GenerateModelPayload struct {
	IfcVersion    string      `json:"ifc_version"`
	Name          string      `json:"name"`
	PolygonWKT    string      `json:"polygon_wkt"`
	ProjectOrigin *[3]float64 `json:"project_origin,omitempty"`
}

// NewGenerateModelTask builds the asynq.Task for a generation request.
func NewGenerateModelTask(p GenerateModelPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, cserr.Wrap(cserr.BadInput, "jobs.NewGenerateModelTask", err)
	}
	return asynq.NewTask(TaskTypeGenerateModel, data), nil
}

// ParseGenerateModelPayload decodes a task's payload bytes.
func ParseGenerateModelPayload(data []byte) (GenerateModelPayload, error) {
	var p GenerateModelPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return GenerateModelPayload{}, cserr.Wrap(cserr.BadInput, "jobs.ParseGenerateModelPayload", err)
	}
	return p, nil
}
