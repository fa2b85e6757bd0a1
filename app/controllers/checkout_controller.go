package controllers

import (
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/payments"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

type subscriptionCheckoutRequest struct {
	Plan string `json:"plan"`
}

type paymentCheckoutRequest struct {
	ModelIDs []uint `json:"model_ids"`
}

// HandleCreateSubscriptionCheckout opens a hosted checkout session for a
// subscription plan and returns its redirect URL.
func HandleCreateSubscriptionCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	var req subscriptionCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed request body")
	}

	plan, err := payments.PlanFromEnv(req.Plan)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "unknown_plan", "Unknown subscription plan")
	}

	client := payments.NewClientFromEnv()
	if missing := client.MissingConfig(); len(missing) > 0 {
		log.Errorf("[Checkout] Payment provider not configured, missing: %v", missing)
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Payments are not configured")
	}

	session, err := client.CreateSubscriptionCheckout(c.Context(), userCtx.UserID, req.Plan, plan)
	if err != nil {
		log.Errorf("[Checkout] Subscription checkout failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "provider_error", "Failed to create checkout session")
	}

	return c.JSON(fiber.Map{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

// HandleCreatePaymentCheckout opens a hosted checkout session for a cart of
// paid models.
func HandleCreatePaymentCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	var req paymentCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed request body")
	}
	if len(req.ModelIDs) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Cart is empty")
	}
	if len(req.ModelIDs) > 20 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Cart is limited to 20 models")
	}

	repos := repository.GetGlobalFactory()
	modelRepo := repos.GetModelRepository()
	purchaseRepo := repos.GetPurchaseRepository()

	itemIDs := make([]uint, 0, len(req.ModelIDs))
	items := make([]payments.PaymentCheckoutItem, 0, len(req.ModelIDs))
	seen := make(map[uint]bool, len(req.ModelIDs))

	for _, id := range req.ModelIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		model, err := modelRepo.GetByID(id)
		if err != nil {
			return jsonError(c, fiber.StatusNotFound, "not_found", "One of the models does not exist")
		}
		if !model.IsPurchasable() {
			return jsonError(c, fiber.StatusUnprocessableEntity, "not_purchasable", "Model \""+model.Title+"\" cannot be purchased")
		}
		if model.AuthorID == userCtx.UserID {
			return jsonError(c, fiber.StatusUnprocessableEntity, "own_model", "You cannot purchase your own model")
		}
		purchased, err := purchaseRepo.HasPurchased(userCtx.UserID, model.ID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to check purchases")
		}
		if purchased {
			return jsonError(c, fiber.StatusConflict, "already_purchased", "Model \""+model.Title+"\" was already purchased")
		}

		itemIDs = append(itemIDs, model.ID)
		items = append(items, payments.PaymentCheckoutItem{
			Name:        model.Title,
			AmountCents: int64(math.Round(model.Price * 100)),
		})
	}

	client := payments.NewClientFromEnv()
	if missing := client.MissingConfig(); len(missing) > 0 {
		log.Errorf("[Checkout] Payment provider not configured, missing: %v", missing)
		return jsonError(c, fiber.StatusInternalServerError, "server_misconfigured", "Payments are not configured")
	}

	session, err := client.CreatePaymentCheckout(c.Context(), userCtx.UserID, itemIDs, items)
	if err != nil {
		log.Errorf("[Checkout] Payment checkout failed for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusBadGateway, "provider_error", "Failed to create checkout session")
	}

	return c.JSON(fiber.Map{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}
