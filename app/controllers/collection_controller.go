package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

type collectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleListCollections returns all collections of the logged-in user.
func HandleListCollections(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	collections, err := repository.GetGlobalFactory().GetCollectionRepository().GetByUserID(userCtx.UserID)
	if err != nil {
		log.Errorf("[Collections] Failed to list collections for user %d: %v", userCtx.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load collections")
	}

	items := make([]fiber.Map, 0, len(collections))
	for i := range collections {
		col := &collections[i]
		items = append(items, fiber.Map{
			"id":          col.ID,
			"name":        col.Name,
			"description": col.Description,
			"item_count":  len(col.Items),
			"created_at":  formatTimePtr(&col.CreatedAt),
		})
	}

	return c.JSON(fiber.Map{"collections": items})
}

// HandleCreateCollection creates a collection for the logged-in user.
func HandleCreateCollection(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req collectionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	collection := models.Collection{
		UserID:      userCtx.UserID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if err := collection.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repository.GetGlobalFactory().GetCollectionRepository().Create(&collection); err != nil {
		log.Errorf("[Collections] Failed to create collection: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to create collection")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": collection.ID, "name": collection.Name})
}

// HandleUpdateCollection renames a collection or changes its description.
func HandleUpdateCollection(c *fiber.Ctx) error {
	collection, errResp := ownedCollection(c)
	if collection == nil {
		return errResp
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	if req.Name != nil {
		collection.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		collection.Description = strings.TrimSpace(*req.Description)
	}
	if err := collection.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	if err := repository.GetGlobalFactory().GetCollectionRepository().Update(collection); err != nil {
		log.Errorf("[Collections] Failed to update collection %d: %v", collection.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to update collection")
	}

	return c.JSON(fiber.Map{"id": collection.ID, "name": collection.Name})
}

// HandleDeleteCollection removes a collection. Its items go with it, the
// models themselves are untouched.
func HandleDeleteCollection(c *fiber.Ctx) error {
	collection, errResp := ownedCollection(c)
	if collection == nil {
		return errResp
	}

	if err := repository.GetGlobalFactory().GetCollectionRepository().Delete(collection.ID); err != nil {
		log.Errorf("[Collections] Failed to delete collection %d: %v", collection.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to delete collection")
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// HandleGetCollectionModels returns the models saved in a collection.
func HandleGetCollectionModels(c *fiber.Ctx) error {
	collection, errResp := ownedCollection(c)
	if collection == nil {
		return errResp
	}

	modelRows, err := repository.GetGlobalFactory().GetCollectionRepository().GetModels(collection.ID)
	if err != nil {
		log.Errorf("[Collections] Failed to load models of collection %d: %v", collection.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load collection")
	}

	return c.JSON(fiber.Map{
		"id":     collection.ID,
		"name":   collection.Name,
		"models": modelSummaries(modelRows),
	})
}

// HandleAddCollectionModel saves a model into a collection. Adding the same
// model twice is a no-op for the caller.
func HandleAddCollectionModel(c *fiber.Ctx) error {
	collection, errResp := ownedCollection(c)
	if collection == nil {
		return errResp
	}

	var req struct {
		ModelID uint `json:"model_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.ModelID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "model_id is required")
	}

	if _, err := repository.GetGlobalFactory().GetModelRepository().GetByID(req.ModelID); err != nil {
		return jsonError(c, fiber.StatusNotFound, "model_not_found", "Model not found")
	}

	if err := repository.GetGlobalFactory().GetCollectionRepository().AddModel(collection.ID, req.ModelID); err != nil {
		log.Errorf("[Collections] Failed to add model %d to collection %d: %v", req.ModelID, collection.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to add model")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"added": true})
}

// HandleRemoveCollectionModel takes a model out of a collection.
func HandleRemoveCollectionModel(c *fiber.Ctx) error {
	collection, errResp := ownedCollection(c)
	if collection == nil {
		return errResp
	}

	modelID, err := strconv.ParseUint(c.Params("model_id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid model id")
	}

	if err := repository.GetGlobalFactory().GetCollectionRepository().RemoveModel(collection.ID, uint(modelID)); err != nil {
		log.Errorf("[Collections] Failed to remove model %d from collection %d: %v", modelID, collection.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to remove model")
	}

	return c.JSON(fiber.Map{"removed": true})
}

// ownedCollection loads the collection from the :id param and checks it
// belongs to the logged-in user. On failure the returned error is the
// already-written JSON response.
func ownedCollection(c *fiber.Ctx) (*models.Collection, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return nil, jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid collection id")
	}

	collection, err := repository.GetGlobalFactory().GetCollectionRepository().GetByID(uint(id))
	if err != nil {
		return nil, jsonError(c, fiber.StatusNotFound, "collection_not_found", "Collection not found")
	}
	if collection.UserID != userCtx.UserID {
		return nil, jsonError(c, fiber.StatusForbidden, "forbidden", "Not your collection")
	}
	return collection, nil
}
