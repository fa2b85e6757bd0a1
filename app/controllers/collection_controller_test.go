package controllers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

func collectionTestApp(userID uint) *fiber.App {
	app := newHandlerTestApp(&usercontext.UserContext{UserID: userID, IsLoggedIn: true})
	app.Get("/api/v1/collections", HandleListCollections)
	app.Post("/api/v1/collections", HandleCreateCollection)
	app.Patch("/api/v1/collections/:id", HandleUpdateCollection)
	app.Delete("/api/v1/collections/:id", HandleDeleteCollection)
	app.Post("/api/v1/collections/:id/models", HandleAddCollectionModel)
	app.Delete("/api/v1/collections/:id/models/:model_id", HandleRemoveCollectionModel)
	return app
}

func TestHandleCreateCollection(t *testing.T) {
	collections := newFakeCollectionRepository()
	withFakeRepositories(t, &repository.Repositories{Collection: collections})

	app := collectionTestApp(5)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/collections", map[string]interface{}{
		"name":        "Calibration prints",
		"description": "Cubes, towers, benchies",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Calibration prints", body["name"])

	require.Len(t, collections.collections, 1)
	assert.Equal(t, uint(5), collections.collections[0].UserID)

	// An empty name fails validation before any write.
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/collections", map[string]interface{}{
		"name": "   ",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Len(t, collections.collections, 1)
}

func TestHandleUpdateCollection_OwnershipEnforced(t *testing.T) {
	collections := newFakeCollectionRepository()
	collections.collections = []models.Collection{{ID: 1, UserID: 5, Name: "Articulated"}}
	collections.nextID = 1
	withFakeRepositories(t, &repository.Repositories{Collection: collections})

	// A different user cannot rename it.
	stranger := collectionTestApp(6)
	status, body := doJSON(t, stranger, http.MethodPatch, "/api/v1/collections/1", map[string]interface{}{
		"name": "Stolen",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, "Articulated", collections.collections[0].Name)

	// The owner can.
	owner := collectionTestApp(5)
	status, body = doJSON(t, owner, http.MethodPatch, "/api/v1/collections/1", map[string]interface{}{
		"name": "Articulated dragons",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Articulated dragons", body["name"])
	assert.Equal(t, "Articulated dragons", collections.collections[0].Name)
}

func TestHandleAddCollectionModel(t *testing.T) {
	collections := newFakeCollectionRepository()
	collections.collections = []models.Collection{{ID: 1, UserID: 5, Name: "Favorites"}}
	collections.nextID = 1
	catalog := catalogFixture()
	withFakeRepositories(t, &repository.Repositories{Collection: collections, Model: catalog})

	app := collectionTestApp(5)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/collections/1/models", map[string]interface{}{
		"model_id": 2,
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["added"])
	assert.Equal(t, []uint{2}, collections.members[1])

	// Unknown models are rejected without touching the membership.
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/collections/1/models", map[string]interface{}{
		"model_id": 99,
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "model_not_found", body["error"])
	assert.Equal(t, []uint{2}, collections.members[1])
}

func TestHandleRemoveCollectionModel(t *testing.T) {
	collections := newFakeCollectionRepository()
	collections.collections = []models.Collection{{ID: 1, UserID: 5, Name: "Favorites"}}
	collections.nextID = 1
	collections.members[1] = []uint{2, 3}
	withFakeRepositories(t, &repository.Repositories{Collection: collections})

	app := collectionTestApp(5)

	status, body := doJSON(t, app, http.MethodDelete, "/api/v1/collections/1/models/2", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["removed"])
	assert.Equal(t, []uint{3}, collections.members[1])
}

func TestHandleDeleteCollection(t *testing.T) {
	collections := newFakeCollectionRepository()
	collections.collections = []models.Collection{{ID: 1, UserID: 5, Name: "Favorites"}}
	collections.nextID = 1
	withFakeRepositories(t, &repository.Repositories{Collection: collections})

	app := collectionTestApp(5)

	status, body := doJSON(t, app, http.MethodDelete, "/api/v1/collections/1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["deleted"])
	assert.Empty(t, collections.collections)
}
