package controllers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/entitlements"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/env"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/jobqueue"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/preview"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/shortener"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/storage"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/upload"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

// HandleUploadModel accepts a multipart upload with the model file and an
// optional preview image. The model enters the catalog as pending; preview
// variants are rendered asynchronously.
func HandleUploadModel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	repos := repository.GetGlobalFactory()
	account, err := repos.GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	fileHeader, err := c.FormFile("model_file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Missing model_file upload")
	}

	plan := entitlements.PlanForUser(account)
	if fileHeader.Size > entitlements.MaxUploadSizeBytes(plan) {
		return jsonError(c, fiber.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Sprintf("File exceeds the %d MB limit of your plan", entitlements.MaxUploadSizeBytes(plan)>>20))
	}

	format, err := validateModelUpload(fileHeader)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_file", err.Error())
	}

	title := strings.TrimSpace(c.FormValue("title"))
	price, _ := strconv.ParseFloat(c.FormValue("price", "0"), 64)
	isFree := c.FormValue("is_free") == "true" || price == 0

	client := storage.Default()
	if client == nil {
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Object storage is not configured")
	}

	modelUUID := uuid.New().String()
	slug, err := buildModelSlug(title, repos.GetModelRepository())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to generate slug")
	}

	now := time.Now()
	cfg := client.Config()
	fileKey := cfg.ModelObjectKey(modelUUID, filepath.Ext(fileHeader.Filename), now.Year(), int(now.Month()))

	src, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to read upload")
	}
	defer src.Close()

	if _, err := client.Upload(c.Context(), fileKey, src, fileHeader.Size); err != nil {
		log.Errorf("[Upload] Failed to store model file for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to store model file")
	}

	model := &models.Model{
		UUID:        modelUUID,
		AuthorID:    userCtx.UserID,
		Title:       title,
		Slug:        slug,
		Description: strings.TrimSpace(c.FormValue("description")),
		Format:      format,
		Price:       price,
		IsFree:      isFree,
		Status:      models.MODEL_STATUS_PENDING,
		FileKey:     fileKey,
		FileSize:    fileHeader.Size,
	}

	if err := model.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repos.GetModelRepository().Create(model); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create catalog entry")
	}

	previewQueued := false
	if previewHeader, perr := c.FormFile("preview"); perr == nil {
		if err := stagePreviewForProcessing(c, model, previewHeader); err != nil {
			log.Errorf("[Upload] Preview staging failed for model %s: %v", model.UUID, err)
		} else {
			previewQueued = true
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"uuid":           model.UUID,
		"slug":           model.Slug,
		"status":         model.Status,
		"format":         model.Format,
		"preview_queued": previewQueued,
	})
}

// validateModelUpload sniffs the first bytes of the uploaded file.
func validateModelUpload(fileHeader *multipart.FileHeader) (string, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}

	return upload.ValidateModelFile(fileHeader.Filename, head[:n])
}

// buildModelSlug derives a URL slug from the title plus a short random
// suffix, retrying on the unlikely collision.
func buildModelSlug(title string, repo repository.ModelRepository) (string, error) {
	base := slugify(title)
	if base == "" {
		base = "model"
	}

	for i := 0; i < 5; i++ {
		suffix, err := shortener.GenerateSecureSlug(6)
		if err != nil {
			return "", err
		}
		slug := base + "-" + strings.ToLower(suffix)
		exists, err := repo.SlugExists(slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
	}
	return "", fmt.Errorf("could not find a free slug for %q", title)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// stagePreviewForProcessing validates the preview image, writes it to the
// staging directory and enqueues the processing job.
func stagePreviewForProcessing(c *fiber.Ctx, model *models.Model, fileHeader *multipart.FileHeader) error {
	f, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return err
	}
	if _, err := upload.ValidateImageBySniff(fileHeader.Filename, head[:n]); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	stagingDir := env.GetEnv("UPLOAD_STAGING_DIR", "./uploads/staging")
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return err
	}

	localPath := filepath.Join(stagingDir, model.UUID+strings.ToLower(filepath.Ext(fileHeader.Filename)))
	dst, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, f); err != nil {
		dst.Close()
		os.Remove(localPath)
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	if err := preview.SetStatus(model.UUID, preview.STATUS_PENDING); err != nil {
		log.Errorf("[Upload] Failed to set pending preview status for %s: %v", model.UUID, err)
	}

	payload := jobqueue.PreviewProcessingJobPayload{
		ModelID:   model.ID,
		ModelUUID: model.UUID,
		LocalPath: localPath,
		FileName:  fileHeader.Filename,
	}
	_, err = jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypePreviewProcessing, payload.ToMap())
	return err
}

// HandleUploadStatus reports the async preview pipeline state for a model.
func HandleUploadStatus(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	modelUUID := strings.TrimSpace(c.Params("uuid"))
	repo := repository.GetGlobalFactory().GetModelRepository()

	model, err := repo.GetByUUID(modelUUID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Model not found")
	}
	if !userCtx.IsAdmin && userCtx.UserID != model.AuthorID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your upload")
	}

	status, err := preview.GetStatus(model.UUID)
	if err != nil || status == "" {
		if model.ThumbnailKey != "" {
			status = preview.STATUS_COMPLETED
		} else {
			status = preview.STATUS_PENDING
		}
	}

	// A stale pending status means the queue lost the job; surface it as
	// failed so the client can re-upload the preview.
	if preview.IsStale(model.UUID, 10*time.Minute) {
		status = preview.STATUS_FAILED
	}

	return c.JSON(fiber.Map{
		"uuid":           model.UUID,
		"model_status":   model.Status,
		"preview_status": status,
		"thumbnail_url":  model.ThumbnailURL,
		"preview_url":    model.PreviewURL,
	})
}
