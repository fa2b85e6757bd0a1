package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/DataFrontierLabs/STLPrime/app/controllers"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/constants"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", cors.New(), limiter.New(limiter.Config{
		Max: 120,
		// Webhook deliveries and presigned-download redirects must never be
		// rate limited away.
		Next: func(c *fiber.Ctx) bool {
			path := c.Path()
			return path == constants.StripeWebhookRoute || path == constants.DownloadRedeemRoute
		},
	}))

	v1 := api.Group("/v1")
	v1.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ping": "pong"})
	})

	// Auth
	v1.Post("/auth/register", controllers.HandleAuthRegister)
	v1.Post("/auth/activate", controllers.HandleAuthActivate)
	v1.Post("/auth/login", controllers.HandleAuthLogin)
	v1.Post("/auth/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Account
	v1.Get("/user/account", middleware.RequireAuth, controllers.HandleGetUserAccount)
	v1.Patch("/user/profile", middleware.RequireAuth, controllers.HandleUpdateUserProfile)
	v1.Post("/user/password", middleware.RequireAuth, controllers.HandleChangePassword)
	v1.Get("/user/models", middleware.RequireAuth, controllers.HandleGetUserModels)
	v1.Get("/user/purchases", middleware.RequireAuth, controllers.HandleGetUserPurchases)
	v1.Get("/user/subscriptions", middleware.RequireAuth, controllers.HandleGetUserSubscriptions)
	v1.Post("/user/billing/resync", middleware.RequireAuth, controllers.HandleBillingResync)
	v1.Get("/users/:username", controllers.HandleGetPublicProfile)

	// Catalog
	v1.Get("/models", controllers.HandleListModels)
	v1.Get("/models/:slug", controllers.HandleGetModel)
	v1.Post("/models/:slug/download", middleware.RequireAuth, controllers.HandleRequestDownload)
	v1.Delete("/models/:slug", middleware.RequireAuth, controllers.HandleDeleteModel)
	v1.Get("/downloads", controllers.HandleDownloadFile)

	// Uploads
	v1.Post("/uploads", middleware.RequireAuth, controllers.HandleUploadModel)
	v1.Get("/uploads/:uuid/status", middleware.RequireAuth, controllers.HandleUploadStatus)

	// Billing
	v1.Post("/checkout/subscription", middleware.RequireAuth, controllers.HandleCreateSubscriptionCheckout)
	v1.Post("/checkout/payment", middleware.RequireAuth, controllers.HandleCreatePaymentCheckout)

	// Provider webhooks (signature-verified in the controller, no session)
	webhooks := controllers.NewPaymentWebhookController()
	v1.Post("/webhooks/stripe", webhooks.HandleStripeWebhook)

	// Community forum
	v1.Get("/posts", controllers.HandleListPosts)
	v1.Get("/posts/categories", controllers.HandleListPostCategories)
	v1.Get("/posts/:slug", controllers.HandleGetPost)
	v1.Post("/posts", middleware.RequireAuth, controllers.HandleCreatePost)
	v1.Patch("/posts/:slug", middleware.RequireAuth, controllers.HandleUpdatePost)
	v1.Delete("/posts/:slug", middleware.RequireAuth, controllers.HandleDeletePost)
	v1.Post("/posts/:slug/comments", middleware.RequireAuth, controllers.HandleAddComment)
	v1.Delete("/comments/:id", middleware.RequireAuth, controllers.HandleDeleteComment)
	v1.Post("/posts/:slug/reactions", middleware.RequireAuth, controllers.HandleTogglePostReaction)

	// Collections
	v1.Get("/collections", middleware.RequireAuth, controllers.HandleListCollections)
	v1.Post("/collections", middleware.RequireAuth, controllers.HandleCreateCollection)
	v1.Patch("/collections/:id", middleware.RequireAuth, controllers.HandleUpdateCollection)
	v1.Delete("/collections/:id", middleware.RequireAuth, controllers.HandleDeleteCollection)
	v1.Get("/collections/:id/models", middleware.RequireAuth, controllers.HandleGetCollectionModels)
	v1.Post("/collections/:id/models", middleware.RequireAuth, controllers.HandleAddCollectionModel)
	v1.Delete("/collections/:id/models/:model_id", middleware.RequireAuth, controllers.HandleRemoveCollectionModel)

	h.registerAdminRoutes(v1)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
