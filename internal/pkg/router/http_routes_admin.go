package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DataFrontierLabs/STLPrime/app/controllers"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/middleware"
)

func (h ApiRouter) registerAdminRoutes(v1 fiber.Router) {
	admin := v1.Group("/admin", middleware.RequireAdmin)

	admin.Get("/dashboard", controllers.HandleAdminDashboard)

	// Moderation
	admin.Get("/models/pending", controllers.HandleAdminListPendingModels)
	admin.Post("/models/:uuid/approve", controllers.HandleAdminApproveModel)
	admin.Post("/models/:uuid/reject", controllers.HandleAdminRejectModel)

	// User management
	admin.Get("/users", controllers.HandleAdminListUsers)
	admin.Patch("/users/:id/status", controllers.HandleAdminUpdateUserStatus)

	// Background queue monitor
	admin.Get("/queues", controllers.HandleAdminQueueMonitor)
}
