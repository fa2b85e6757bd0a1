package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/jobqueue"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/statistics"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

const chartDays = 30

// requireAdmin writes the error response and returns false when the caller is
// not a logged-in admin. The admin router group also enforces this; the check
// here keeps the handlers safe if one is ever mounted elsewhere.
func requireAdmin(c *fiber.Ctx) (usercontext.UserContext, bool) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn || !userCtx.IsAdmin {
		_ = jsonError(c, fiber.StatusForbidden, "forbidden", "Admin access required")
		return userCtx, false
	}
	return userCtx, true
}

// HandleAdminDashboard returns the aggregate numbers plus 30-day charts for
// user growth, uploads and revenue.
func HandleAdminDashboard(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	stats := statistics.GetStatisticsData()

	repos := repository.GetGlobalFactory()
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -chartDays)

	userChart, err := repos.GetUserRepository().GetDailyStats(start, end)
	if err != nil {
		log.Errorf("[Admin] Failed to load user chart: %v", err)
	}
	modelChart, err := repos.GetModelRepository().GetDailyStats(start, end)
	if err != nil {
		log.Errorf("[Admin] Failed to load model chart: %v", err)
	}
	revenueChart, err := repos.GetPurchaseRepository().GetDailyRevenue(start, end)
	if err != nil {
		log.Errorf("[Admin] Failed to load revenue chart: %v", err)
	}

	pendingCount, _ := repos.GetModelRepository().CountByStatus(models.MODEL_STATUS_PENDING)
	subscriberCount, _ := repos.GetUserRepository().CountSubscribers()

	return c.JSON(fiber.Map{
		"totals": fiber.Map{
			"users":          stats.TotalUsers,
			"models":         stats.TotalModels,
			"models_today":   stats.TodayModels,
			"sales":          stats.TotalSales,
			"gross_revenue":  stats.GrossRevenue,
			"pending_models": pendingCount,
			"subscribers":    subscriberCount,
		},
		"charts": fiber.Map{
			"users":   userChart,
			"models":  modelChart,
			"revenue": revenueChart,
		},
	})
}

// HandleAdminListPendingModels returns models awaiting moderation, oldest
// first.
func HandleAdminListPendingModels(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetModelRepository()

	pending, err := repo.GetPending(offset, limit)
	if err != nil {
		log.Errorf("[Admin] Failed to list pending models: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load pending models")
	}
	total, _ := repo.CountByStatus(models.MODEL_STATUS_PENDING)

	return c.JSON(fiber.Map{
		"models": modelSummaries(pending),
		"total":  total,
	})
}

// HandleAdminApproveModel publishes a pending model into the catalog.
func HandleAdminApproveModel(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}
	return adminSetModelStatus(c, models.MODEL_STATUS_APPROVED)
}

// HandleAdminRejectModel marks a pending model as rejected. The upload stays
// visible to its author only.
func HandleAdminRejectModel(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}
	return adminSetModelStatus(c, models.MODEL_STATUS_REJECTED)
}

func adminSetModelStatus(c *fiber.Ctx, status string) error {
	repo := repository.GetGlobalFactory().GetModelRepository()

	model, err := repo.GetByUUID(c.Params("uuid"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "model_not_found", "Model not found")
	}

	model.Status = status
	if err := repo.Update(model); err != nil {
		log.Errorf("[Admin] Failed to set model %s to %s: %v", model.UUID, status, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to update model")
	}

	log.Infof("[Admin] Model %s set to %s", model.UUID, status)
	return c.JSON(fiber.Map{"uuid": model.UUID, "status": model.Status})
}

// HandleAdminListUsers returns users with their usage stats. A search query
// switches from paging to a name/email match.
func HandleAdminListUsers(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetUserRepository()

	var (
		rows []repository.UserWithStats
		err  error
	)
	if query := strings.TrimSpace(c.Query("q")); query != "" {
		rows, err = repo.SearchWithStats(query)
	} else {
		offset, limit := parsePagination(c)
		rows, err = repo.GetWithStats(offset, limit)
	}
	if err != nil {
		log.Errorf("[Admin] Failed to list users: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load users")
	}

	total, _ := repo.Count()

	items := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		items = append(items, fiber.Map{
			"id":                 row.User.ID,
			"username":           row.User.Username,
			"email":              row.User.Email,
			"role":               row.User.Role,
			"status":             row.User.Status,
			"subscription_tier":  row.User.SubscriptionStatus,
			"model_count":        row.ModelCount,
			"purchase_count":     row.PurchaseCount,
			"storage_used_bytes": row.StorageUsage,
			"registered_at":      formatTimePtr(&row.User.CreatedAt),
			"last_login_at":      formatTimePtr(row.User.LastLoginAt),
		})
	}

	return c.JSON(fiber.Map{"users": items, "total": total})
}

// HandleAdminUpdateUserStatus activates or disables a user account.
func HandleAdminUpdateUserStatus(c *fiber.Ctx) error {
	adminCtx, ok := requireAdmin(c)
	if !ok {
		return nil
	}

	userID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid user id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}
	switch req.Status {
	case models.STATUS_ACTIVE, models.STATUS_DISABLED:
	default:
		return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_status", "Status must be active or disabled")
	}

	if uint(userID) == adminCtx.UserID {
		return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_target", "You cannot change your own account status")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(uint(userID))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "user_not_found", "User not found")
	}

	user.Status = req.Status
	if err := repo.Update(user); err != nil {
		log.Errorf("[Admin] Failed to update status of user %d: %v", user.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to update user")
	}

	log.Infof("[Admin] User %d set to %s by admin %d", user.ID, user.Status, adminCtx.UserID)
	return c.JSON(fiber.Map{"id": user.ID, "status": user.Status})
}

// HandleAdminQueueMonitor reports background queue depth and per-status job
// counts.
func HandleAdminQueueMonitor(c *fiber.Ctx) error {
	if _, ok := requireAdmin(c); !ok {
		return nil
	}

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()
	ctx := c.Context()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		log.Errorf("[Admin] Failed to read job stats: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to read queue stats")
	}
	queued, _ := queue.GetQueueSize(ctx)
	processing, _ := queue.GetProcessingSize(ctx)

	return c.JSON(fiber.Map{
		"running":        manager.IsRunning(),
		"queued":         queued,
		"processing":     processing,
		"jobs_by_status": stats,
	})
}
