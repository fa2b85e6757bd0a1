package jobqueue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType(t *testing.T) {
	assert.Equal(t, "preview_processing", string(JobTypePreviewProcessing))
	assert.Equal(t, "asset_delete", string(JobTypeAssetDelete))
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{"Pending", JobStatusPending, "pending"},
		{"Processing", JobStatusProcessing, "processing"},
		{"Completed", JobStatusCompleted, "completed"},
		{"Failed", JobStatusFailed, "failed"},
		{"Retrying", JobStatusRetrying, "retrying"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.status))
		})
	}
}

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{
			name: "Failed job with retries remaining",
			job: &Job{
				Status:     JobStatusFailed,
				RetryCount: 1,
				MaxRetries: 3,
			},
			retryable: true,
		},
		{
			name: "Failed job with no retries remaining",
			job: &Job{
				Status:     JobStatusFailed,
				RetryCount: 3,
				MaxRetries: 3,
			},
			retryable: false,
		},
		{
			name: "Completed job",
			job: &Job{
				Status:     JobStatusCompleted,
				RetryCount: 1,
				MaxRetries: 3,
			},
			retryable: false,
		},
		{
			name: "Pending job",
			job: &Job{
				Status:     JobStatusPending,
				RetryCount: 0,
				MaxRetries: 3,
			},
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_StatusTransitions(t *testing.T) {
	job := &Job{
		Status:     JobStatusPending,
		RetryCount: 0,
		MaxRetries: 3,
	}

	beforeTime := time.Now()

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)
	assert.False(t, job.UpdatedAt.Before(beforeTime))

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)

	job.MarkAsFailed("encode error")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "encode error", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	// A completed retry clears the recorded error.
	job.MarkAsCompleted()
	assert.Empty(t, job.ErrorMsg)
}

func TestPreviewProcessingJobPayload_RoundTrip(t *testing.T) {
	payload := PreviewProcessingJobPayload{
		ModelID:   123,
		ModelUUID: "0b1f5a4e-9f1c-4f2a-9d8e-6a9f1f0c1234",
		LocalPath: "/tmp/uploads/preview-123.png",
		FileName:  "benchy.png",
	}

	data := payload.ToMap()
	assert.Equal(t, uint(123), data["model_id"])
	assert.Equal(t, payload.ModelUUID, data["model_uuid"])

	restored, err := PreviewProcessingJobPayloadFromMap(data)
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestPreviewProcessingJobPayload_FromJSONMap(t *testing.T) {
	// Payloads read back from Redis arrive as generic JSON maps where
	// numbers are float64.
	raw := `{"model_id": 7, "model_uuid": "uuid-7", "local_path": "/tmp/p.png", "file_name": "p.png"}`
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &data))

	restored, err := PreviewProcessingJobPayloadFromMap(data)
	require.NoError(t, err)
	assert.Equal(t, uint(7), restored.ModelID)
	assert.Equal(t, "uuid-7", restored.ModelUUID)
}

func TestAssetDeleteJobPayload_RoundTrip(t *testing.T) {
	payload := AssetDeleteJobPayload{
		ModelID:   55,
		ModelUUID: "uuid-55",
		ObjectKeys: []string{
			"models/2026/08/uuid-55.stl",
			"previews/uuid-55/thumb.webp",
			"previews/uuid-55/card.webp",
		},
	}

	restored, err := AssetDeleteJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
	assert.Len(t, restored.ObjectKeys, 3)
}

func TestJob_Serialization(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	job := &Job{
		ID:     "job-1",
		Type:   JobTypePreviewProcessing,
		Status: JobStatusPending,
		Payload: PreviewProcessingJobPayload{
			ModelID:   9,
			ModelUUID: "uuid-9",
			LocalPath: "/tmp/p.png",
			FileName:  "p.png",
		}.ToMap(),
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(job)
	require.NoError(t, err)

	var restored Job
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, job.ID, restored.ID)
	assert.Equal(t, job.Type, restored.Type)
	assert.Equal(t, job.Status, restored.Status)
	assert.Equal(t, DefaultMaxRetries, restored.MaxRetries)

	payload, err := PreviewProcessingJobPayloadFromMap(restored.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(9), payload.ModelID)
}
