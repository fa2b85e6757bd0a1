package jobqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/storage"
)

// processAssetDeleteJob removes a deleted model's objects from storage. The
// catalog row is already gone when this runs, so every key rides in the
// payload. Failed keys are collected and retried as a whole job.
func (q *Queue) processAssetDeleteJob(ctx context.Context, job *Job) error {
	payload, err := AssetDeleteJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse asset delete payload: %w", err)
	}

	client := storage.Default()
	if client == nil {
		return fmt.Errorf("object storage is not configured")
	}

	var failed []string
	for _, key := range payload.ObjectKeys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if err := client.DeleteFile(key); err != nil {
			log.Errorf("[JobQueue] Failed to delete object %s for model %s: %v", key, payload.ModelUUID, err)
			failed = append(failed, key)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d objects for model %s", len(failed), len(payload.ObjectKeys), payload.ModelUUID)
	}

	log.Infof("[JobQueue] Deleted %d objects for model %s", len(payload.ObjectKeys), payload.ModelUUID)
	return nil
}
