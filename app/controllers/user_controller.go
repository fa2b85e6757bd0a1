package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/database"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/entitlements"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/payments"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/utils"
)

// HandleGetUserAccount returns account information for the authenticated user.
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	stats, err := repo.GetStatsByUserID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load statistics")
	}

	plan := entitlements.PlanForUser(account)

	avatar := account.AvatarURL
	if avatar == "" {
		avatar = utils.GetGravatarURL(account.Email, 160)
	}

	return c.JSON(fiber.Map{
		"id":            account.ID,
		"username":      account.Username,
		"full_name":     account.FullName,
		"email":         account.Email,
		"bio":           account.Bio,
		"avatar_url":    avatar,
		"status":        account.Status,
		"is_admin":      account.Role == models.ROLE_ADMIN,
		"is_creator":    account.IsCreator,
		"subscription":  account.SubscriptionStatus,
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(account.LastLoginAt),
		"stats": fiber.Map{
			"models":             stats.ModelCount,
			"purchases":          stats.PurchaseCount,
			"storage_used_bytes": stats.StorageUsage,
		},
		"limits": fiber.Map{
			"max_upload_bytes":       entitlements.MaxUploadSizeBytes(plan),
			"daily_download_limit":   entitlements.DailyDownloadLimit(plan),
			"paid_catalog_downloads": entitlements.CanAccessPaidCatalog(plan),
		},
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
}

// HandleUpdateUserProfile updates the editable profile fields.
func HandleUpdateUserProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	if req.FullName != nil {
		account.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Bio != nil {
		account.Bio = strings.TrimSpace(*req.Bio)
	}

	if err := account.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repo.Update(account); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update profile")
	}

	return c.JSON(fiber.Map{
		"full_name": account.FullName,
		"bio":       account.Bio,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword rotates the account password after verifying the old one.
func HandleChangePassword(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed request body")
	}

	if len(req.NewPassword) < 6 {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "New password must be at least 6 characters")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	if !account.CheckPassword(req.CurrentPassword) {
		return jsonError(c, fiber.StatusForbidden, "wrong_password", "Current password is incorrect")
	}

	if err := account.SetPassword(req.NewPassword); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update password")
	}
	if err := repo.Update(account); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update password")
	}

	return c.JSON(fiber.Map{"changed": true})
}

// HandleGetUserPurchases lists the caller's completed purchases.
func HandleGetUserPurchases(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetPurchaseRepository()

	purchases, err := repo.GetByUserID(userCtx.UserID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load purchases")
	}
	total, err := repo.CountByUserID(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load purchases")
	}

	items := make([]fiber.Map, 0, len(purchases))
	for _, p := range purchases {
		items = append(items, fiber.Map{
			"id":          p.ID,
			"model_id":    p.ModelID,
			"model_title": p.Model.Title,
			"model_slug":  p.Model.Slug,
			"author":      p.Model.Author.Username,
			"amount_paid": p.AmountPaid,
			"created_at":  p.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"purchases": items,
		"total":     total,
	})
}

// HandleGetUserSubscriptions returns the caller's subscription log.
func HandleGetUserSubscriptions(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	db := database.GetDB()
	if db == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Database unavailable")
	}

	var subs []models.UserSubscription
	if err := db.Where("user_id = ?", userCtx.UserID).Order("created_at DESC").Find(&subs).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscriptions")
	}

	return c.JSON(fiber.Map{"subscriptions": subs})
}

// HandleBillingResync recomputes the caller's subscription tier from the
// subscription log. Useful when a webhook was missed during an outage.
func HandleBillingResync(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	db := database.GetDB()
	if db == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Database unavailable")
	}

	svc := payments.NewServiceFromDB(db)
	tier, err := svc.ReconcileUserTier(c.Context(), userCtx.UserID)
	if err != nil {
		log.Errorf("[Billing] Tier resync failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to resync subscription tier")
	}

	return c.JSON(fiber.Map{"subscription": tier})
}

// HandleGetPublicProfile returns a user's public profile with recent models.
func HandleGetPublicProfile(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Params("username"))
	if username == "" {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Missing username")
	}

	repos := repository.GetGlobalFactory()
	account, err := repos.GetUserRepository().GetByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	modelCount, err := repos.GetModelRepository().CountByAuthorID(account.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	avatar := account.AvatarURL
	if avatar == "" {
		avatar = utils.GetGravatarURL(account.Email, 160)
	}

	return c.JSON(fiber.Map{
		"username":    account.Username,
		"full_name":   account.FullName,
		"bio":         account.Bio,
		"avatar_url":  avatar,
		"is_creator":  account.IsCreator,
		"model_count": modelCount,
		"joined_at":   account.CreatedAt.UTC().Format(time.RFC3339),
	})
}
