package jobqueue

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/constants"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/database"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/preview"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/storage"
)

// processPreviewProcessingJob renders the webp preview variants for an
// uploaded model, pushes them to object storage and records the keys on the
// catalog row. The staged source file is removed once the variants are up.
func (q *Queue) processPreviewProcessingJob(ctx context.Context, job *Job) error {
	payload, err := PreviewProcessingJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse preview processing payload: %w", err)
	}

	db := database.GetDB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var model models.Model
	if err := db.Where("uuid = ?", payload.ModelUUID).First(&model).Error; err != nil {
		return fmt.Errorf("failed to find model %s: %w", payload.ModelUUID, err)
	}

	if _, err := os.Stat(payload.LocalPath); os.IsNotExist(err) {
		return fmt.Errorf("staged preview file not found: %s", payload.LocalPath)
	}

	client := storage.Default()
	if client == nil {
		return fmt.Errorf("object storage is not configured")
	}

	if err := preview.SetStatus(payload.ModelUUID, preview.STATUS_PROCESSING); err != nil {
		log.Errorf("[JobQueue] Failed to set processing status for %s: %v", payload.ModelUUID, err)
	}

	result, err := preview.Generate(payload.LocalPath)
	if err != nil {
		preview.SetStatus(payload.ModelUUID, preview.STATUS_FAILED)
		return fmt.Errorf("failed to generate preview variants for %s: %w", payload.ModelUUID, err)
	}

	cfg := client.Config()
	thumbKey := cfg.PreviewObjectKey(payload.ModelUUID, "thumb", ".webp")
	cardKey := cfg.PreviewObjectKey(payload.ModelUUID, "card", ".webp")

	if _, err := client.Upload(ctx, thumbKey, bytes.NewReader(result.Thumbnail.Data), int64(len(result.Thumbnail.Data))); err != nil {
		preview.SetStatus(payload.ModelUUID, preview.STATUS_FAILED)
		return fmt.Errorf("failed to upload thumbnail for %s: %w", payload.ModelUUID, err)
	}
	if _, err := client.Upload(ctx, cardKey, bytes.NewReader(result.Card.Data), int64(len(result.Card.Data))); err != nil {
		preview.SetStatus(payload.ModelUUID, preview.STATUS_FAILED)
		return fmt.Errorf("failed to upload card preview for %s: %w", payload.ModelUUID, err)
	}

	updates := map[string]interface{}{
		"thumbnail_key": thumbKey,
		"thumbnail_url": constants.PreviewsRoute + "/" + payload.ModelUUID + "/thumb.webp",
		"preview_key":   cardKey,
		"preview_url":   constants.PreviewsRoute + "/" + payload.ModelUUID + "/card.webp",
	}
	if err := db.Model(&model).Updates(updates).Error; err != nil {
		preview.SetStatus(payload.ModelUUID, preview.STATUS_FAILED)
		return fmt.Errorf("failed to record preview keys for %s: %w", payload.ModelUUID, err)
	}

	if err := os.Remove(payload.LocalPath); err != nil && !os.IsNotExist(err) {
		// Variants are already uploaded; a leftover temp file is not worth a retry.
		log.Warnf("[JobQueue] Failed to remove staged preview %s: %v", payload.LocalPath, err)
	}

	if err := preview.SetStatus(payload.ModelUUID, preview.STATUS_COMPLETED); err != nil {
		log.Errorf("[JobQueue] Failed to set completed status for %s: %v", payload.ModelUUID, err)
	}

	log.Infof("[JobQueue] Preview processing completed for model %s", payload.ModelUUID)
	return nil
}
