package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypePreviewProcessing JobType = "preview_processing"
	JobTypeAssetDelete       JobType = "asset_delete"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// PreviewProcessingJobPayload contains the payload for preview processing
// jobs. LocalPath points at the uploaded preview image staged on disk.
type PreviewProcessingJobPayload struct {
	ModelID   uint   `json:"model_id"`
	ModelUUID string `json:"model_uuid"`
	LocalPath string `json:"local_path"`
	FileName  string `json:"file_name"`
}

// ToMap converts the payload to a map for storage
func (p PreviewProcessingJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"model_id":   p.ModelID,
		"model_uuid": p.ModelUUID,
		"local_path": p.LocalPath,
		"file_name":  p.FileName,
	}
}

// PreviewProcessingJobPayloadFromMap creates a payload from a map
func PreviewProcessingJobPayloadFromMap(data map[string]interface{}) (*PreviewProcessingJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PreviewProcessingJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// AssetDeleteJobPayload contains the payload for deleting a model's objects
// from storage after the catalog row is removed.
type AssetDeleteJobPayload struct {
	ModelID    uint     `json:"model_id"`
	ModelUUID  string   `json:"model_uuid"`
	ObjectKeys []string `json:"object_keys"`
}

// ToMap converts the payload to a map for storage
func (p AssetDeleteJobPayload) ToMap() map[string]interface{} {
	keys := make([]interface{}, len(p.ObjectKeys))
	for i, k := range p.ObjectKeys {
		keys[i] = k
	}
	return map[string]interface{}{
		"model_id":    p.ModelID,
		"model_uuid":  p.ModelUUID,
		"object_keys": keys,
	}
}

// AssetDeleteJobPayloadFromMap creates a payload from a map
func AssetDeleteJobPayloadFromMap(data map[string]interface{}) (*AssetDeleteJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload AssetDeleteJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
