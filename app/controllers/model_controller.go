package controllers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/cache"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/constants"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/entitlements"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/env"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/jobqueue"
	metrics "github.com/DataFrontierLabs/STLPrime/internal/pkg/metrics/counter"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/security"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/storage"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

const downloadTokenTTL = 10 * time.Minute

// HandleListModels returns the approved catalog, filterable by pricing and
// full-text query.
func HandleListModels(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetModelRepository()

	var (
		items []models.Model
		err   error
	)

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		items, err = repo.Search(query)
	} else {
		freeOnly := c.Query("pricing") == "free"
		items, err = repo.GetApproved(freeOnly, offset, limit)
	}
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load catalog")
	}

	return c.JSON(fiber.Map{
		"models": modelSummaries(items),
	})
}

func modelSummaries(items []models.Model) []fiber.Map {
	out := make([]fiber.Map, 0, len(items))
	for i := range items {
		out = append(out, modelSummary(&items[i]))
	}
	return out
}

func modelSummary(m *models.Model) fiber.Map {
	return fiber.Map{
		"uuid":           m.UUID,
		"slug":           m.Slug,
		"title":          m.Title,
		"author":         m.Author.Username,
		"format":         m.Format,
		"price":          m.Price,
		"is_free":        m.IsFree,
		"thumbnail_url":  m.ThumbnailURL,
		"view_count":     m.ViewCount,
		"download_count": m.DownloadCount,
	}
}

// HandleGetModel returns one catalog entry by slug and counts the view.
func HandleGetModel(c *fiber.Ctx) error {
	slug := strings.TrimSpace(c.Params("slug"))
	repo := repository.GetGlobalFactory().GetModelRepository()

	model, err := repo.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Model not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load model")
	}

	userCtx := usercontext.GetUserContext(c)

	// Pending and rejected models are visible to their author and admins only.
	if !model.IsApproved() && !userCtx.IsAdmin && userCtx.UserID != model.AuthorID {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Model not found")
	}

	if model.IsApproved() {
		if err := metrics.AddModelView(model.ID); err != nil {
			log.Errorf("[Catalog] Failed to count view for model %d: %v", model.ID, err)
		}
	}

	properties := make([]fiber.Map, 0, len(model.MaterialProperties))
	for _, p := range model.MaterialProperties {
		properties = append(properties, fiber.Map{
			"filament_type":           p.FilamentType,
			"estimated_weight":        p.EstimatedWeight,
			"print_time":              p.PrintTime,
			"recommended_temperature": p.RecommendedTemperature,
		})
	}

	purchased := false
	if userCtx.IsLoggedIn && !model.IsFree {
		purchased, _ = repository.GetGlobalFactory().GetPurchaseRepository().HasPurchased(userCtx.UserID, model.ID)
	}

	return c.JSON(fiber.Map{
		"uuid":                model.UUID,
		"slug":                model.Slug,
		"title":               model.Title,
		"description":         model.Description,
		"author":              model.Author.Username,
		"format":              model.Format,
		"price":               model.Price,
		"is_free":             model.IsFree,
		"status":              model.Status,
		"file_size":           model.FileSize,
		"thumbnail_url":       model.ThumbnailURL,
		"preview_url":         model.PreviewURL,
		"view_count":          model.ViewCount,
		"download_count":      model.DownloadCount,
		"material_properties": properties,
		"purchased":           purchased,
		"created_at":          model.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// HandleRequestDownload checks entitlement and mints a short-lived download
// token for the model file.
func HandleRequestDownload(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	slug := strings.TrimSpace(c.Params("slug"))
	repos := repository.GetGlobalFactory()

	model, err := repos.GetModelRepository().GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Model not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load model")
	}

	allowed, reason, err := downloadAllowed(c.Context(), userCtx, model)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to check download entitlement")
	}
	if !allowed {
		return jsonError(c, fiber.StatusForbidden, "not_entitled", reason)
	}

	secret := env.GetEnv("DOWNLOAD_TOKEN_SECRET", "")
	if secret == "" {
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Download tokens are not configured")
	}

	token, err := security.GenerateDownloadToken(userCtx.UserID, model.ID, downloadTokenTTL, secret)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create download token")
	}

	return c.JSON(fiber.Map{
		"download_url": constants.DownloadRedeemRoute + "?token=" + token,
		"expires_in":   int(downloadTokenTTL.Seconds()),
	})
}

// downloadAllowed applies the catalog's access rules: free models for any
// account, paid models for the author, buyers, subscribers within their daily
// quota, and admins.
func downloadAllowed(ctx context.Context, userCtx usercontext.UserContext, model *models.Model) (bool, string, error) {
	if !model.IsApproved() && !userCtx.IsAdmin && userCtx.UserID != model.AuthorID {
		return false, "Model is not available", nil
	}

	if model.IsFree || userCtx.IsAdmin || userCtx.UserID == model.AuthorID {
		return true, "", nil
	}

	repos := repository.GetGlobalFactory()
	purchased, err := repos.GetPurchaseRepository().HasPurchased(userCtx.UserID, model.ID)
	if err != nil {
		return false, "", err
	}
	if purchased {
		return true, "", nil
	}

	account, err := repos.GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		return false, "", err
	}

	plan := entitlements.PlanForUser(account)
	if !entitlements.CanAccessPaidCatalog(plan) {
		return false, "Purchase this model or subscribe to download it", nil
	}

	ok, err := consumeDailyDownload(ctx, userCtx.UserID, entitlements.DailyDownloadLimit(plan))
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, "Daily subscription download limit reached", nil
	}
	return true, "", nil
}

// consumeDailyDownload counts a subscription download against the per-day
// quota in Redis. Purchased and free downloads never reach this.
func consumeDailyDownload(ctx context.Context, userID uint, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	client := cache.GetClient()
	key := fmt.Sprintf("download_quota:%d:%s", userID, time.Now().UTC().Format("2006-01-02"))

	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		client.Expire(ctx, key, 24*time.Hour)
	}
	if count > int64(limit) {
		return false, nil
	}
	return true, nil
}

// HandleDownloadFile redeems a download token, counts the download and
// redirects to a presigned object URL.
func HandleDownloadFile(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Missing download token")
	}

	secret := env.GetEnv("DOWNLOAD_TOKEN_SECRET", "")
	if secret == "" {
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Download tokens are not configured")
	}

	claims, err := security.VerifyDownloadToken(token, secret)
	if err != nil {
		return jsonError(c, fiber.StatusForbidden, "invalid_token", "Download token is invalid or expired")
	}

	repo := repository.GetGlobalFactory().GetModelRepository()
	model, err := repo.GetByID(claims.ModelID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Model not found")
	}

	client := storage.Default()
	if client == nil || model.FileKey == "" {
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Object storage is not configured")
	}

	filename := fmt.Sprintf("%s%s", model.Slug, filepath.Ext(model.FileKey))
	url, err := client.PresignDownload(c.Context(), model.FileKey, downloadTokenTTL, filename)
	if err != nil {
		log.Errorf("[Catalog] Failed to presign download for model %d: %v", model.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to prepare download")
	}

	if err := metrics.AddModelDownload(model.ID); err != nil {
		log.Errorf("[Catalog] Failed to count download for model %d: %v", model.ID, err)
	}

	return c.Redirect(url, fiber.StatusFound)
}

// HandleDeleteModel removes a model from the catalog and queues its objects
// for storage cleanup. Author or admin only.
func HandleDeleteModel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	slug := strings.TrimSpace(c.Params("slug"))
	repo := repository.GetGlobalFactory().GetModelRepository()

	model, err := repo.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Model not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load model")
	}

	if !userCtx.IsAdmin && userCtx.UserID != model.AuthorID {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only the author or an admin can delete a model")
	}

	if err := repo.Delete(model.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete model")
	}

	keys := make([]string, 0, 3)
	for _, k := range []string{model.FileKey, model.ThumbnailKey, model.PreviewKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		payload := jobqueue.AssetDeleteJobPayload{
			ModelID:    model.ID,
			ModelUUID:  model.UUID,
			ObjectKeys: keys,
		}
		if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeAssetDelete, payload.ToMap()); err != nil {
			log.Errorf("[Catalog] Failed to enqueue asset cleanup for model %d: %v", model.ID, err)
		}
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// HandlePreviewFile serves a model's generated preview image by redirecting
// to a short-lived presigned URL. Previews are public for approved models.
func HandlePreviewFile(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetModelRepository()

	model, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "model_not_found", "Model not found")
	}

	var objectKey string
	switch c.Params("file") {
	case "thumb.webp":
		objectKey = model.ThumbnailKey
	case "card.webp":
		objectKey = model.PreviewKey
	default:
		return jsonError(c, fiber.StatusNotFound, "not_found", "Unknown preview variant")
	}
	if objectKey == "" {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Preview not generated yet")
	}

	if model.Status != models.MODEL_STATUS_APPROVED {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn || (userCtx.UserID != model.AuthorID && !userCtx.IsAdmin) {
			return jsonError(c, fiber.StatusNotFound, "model_not_found", "Model not found")
		}
	}

	client := storage.Default()
	if client == nil {
		return jsonError(c, fiber.StatusInternalServerError, "storage_unavailable", "Storage is not configured")
	}

	url, err := client.PresignDownload(c.Context(), objectKey, 15*time.Minute, "")
	if err != nil {
		log.Errorf("[Catalog] Failed to presign preview %s: %v", objectKey, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load preview")
	}

	return c.Redirect(url, fiber.StatusFound)
}

// HandleGetUserModels lists the logged-in user's own uploads, newest first,
// regardless of moderation status.
func HandleGetUserModels(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetModelRepository()

	items, err := repo.GetByAuthorID(userCtx.UserID, offset, limit)
	if err != nil {
		log.Errorf("[Catalog] Failed to list models of user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load models")
	}
	total, _ := repo.CountByAuthorID(userCtx.UserID)

	out := make([]fiber.Map, 0, len(items))
	for i := range items {
		entry := modelSummary(&items[i])
		entry["status"] = items[i].Status
		out = append(out, entry)
	}

	return c.JSON(fiber.Map{"models": out, "total": total})
}
