// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

func LoadRegistry(path string) (*TaskRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg TaskRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Find returns the task entry for a task type, or nil.
func (r *TaskRegistry) Find(taskType string) *Task {
	for i := range r.Tasks {
		if r.Tasks[i].TaskType == taskType {
			return &r.Tasks[i]
		}
	}
	return nil
}

// ValidateInput checks a job payload against the task's input schema.
func (r *TaskRegistry) ValidateInput(taskType string, payload map[string]interface{}) error {
	task := r.Find(taskType)
	if task == nil {
		return fmt.Errorf("unknown task type: %s", taskType)
	}
	if task.InputSchema == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(task.InputSchema)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("input validation failed: %v", errs)
	}
	return nil
}

// Default returns the built-in manifest of the placement task types.
func Default() *TaskRegistry {
	return &TaskRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-08-01",
		Tasks: []Task{
			{
				ID:          "run-matching-now",
				DisplayName: "Run Matching Now",
				Description: "Recalculates the ranked candidate list for one pivot on demand",
				TaskType:    "placement.run-matching-now",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"pivotKind", "pivotId"},
					"properties": map[string]interface{}{
						"pivotKind": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{"child", "preference"},
						},
						"pivotId": map[string]interface{}{"type": "string", "minLength": 1},
						"persist": map[string]interface{}{"type": "boolean"},
					},
				},
				ErrorCodes: []string{"PIVOT_NOT_FOUND", "PIVOT_INELIGIBLE", "VALIDATION_FAILED", "QUERY_EXECUTION_FAILED"},
				Timeout:    "30s",
				Retries:    3,
				Tags:       []string{"matching", "on-demand"},
			},
			{
				ID:          "recalculate-matches",
				DisplayName: "Recalculate Matches",
				Description: "Triggers a pivot-scoped or full batch recalculation, or reports batch status",
				TaskType:    "placement.recalculate-matches",
				InputSchema: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"pivotKind": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{"child", "preference"},
						},
						"pivotId":    map[string]interface{}{"type": "string"},
						"statusOnly": map[string]interface{}{"type": "boolean"},
					},
				},
				ErrorCodes: []string{"VALIDATION_FAILED", "BATCH_PARTIAL_FAILURE", "TRANSIENT_PERSISTENCE"},
				Timeout:    "60s",
				Retries:    1,
				Tags:       []string{"matching", "batch"},
			},
			{
				ID:          "record-changed",
				DisplayName: "Record Changed",
				Description: "Feeds a source-record change into the debounced recalculation scheduler",
				TaskType:    "placement.record-changed",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"entity", "recordId"},
					"properties": map[string]interface{}{
						"entity": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{"child", "family", "preference"},
						},
						"changeType": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{"insert", "update", "delete"},
						},
						"recordId":      map[string]interface{}{"type": "string", "minLength": 1},
						"changedFields": map[string]interface{}{"type": "array"},
						"oldStatus":     map[string]interface{}{"type": "string"},
						"newStatus":     map[string]interface{}{"type": "string"},
					},
				},
				ErrorCodes: []string{"VALIDATION_FAILED"},
				Timeout:    "10s",
				Retries:    3,
				Tags:       []string{"matching", "trigger"},
			},
			{
				ID:          "update-match-status",
				DisplayName: "Update Match Status",
				Description: "Moves a match result through the caseworker review workflow",
				TaskType:    "placement.update-match-status",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"resultId", "status"},
					"properties": map[string]interface{}{
						"resultId": map[string]interface{}{"type": "string", "minLength": 1},
						"status": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{"Pending", "Recommended", "Not Suitable", "On Hold", "Outreach Approved"},
						},
						"notes":               map[string]interface{}{"type": "string"},
						"reasonIfNotSuitable": map[string]interface{}{"type": "string"},
					},
				},
				ErrorCodes: []string{"RESULT_NOT_FOUND", "VALIDATION_FAILED", "TRANSIENT_PERSISTENCE"},
				Timeout:    "10s",
				Retries:    3,
				Tags:       []string{"matching", "workflow"},
			},
		},
	}
}
