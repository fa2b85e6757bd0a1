package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/DataFrontierLabs/STLPrime/app/controllers"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/constants"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/middleware"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/oauth"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Social OAuth (browser redirects, outside the /api prefix)
	app.Get("/auth/:provider", controllers.HandleOAuthBegin)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)

	// Account activation link from the registration mail
	app.Get("/activate", controllers.HandleAuthActivate)

	// Generated preview images, redirected to presigned storage URLs
	app.Get(constants.PreviewsRoute+"/:uuid/:file", controllers.HandlePreviewFile)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
