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

func adminTestApp(userCtx *usercontext.UserContext) *fiber.App {
	app := newHandlerTestApp(userCtx)
	app.Get("/api/v1/admin/models/pending", HandleAdminListPendingModels)
	app.Post("/api/v1/admin/models/:uuid/approve", HandleAdminApproveModel)
	app.Post("/api/v1/admin/models/:uuid/reject", HandleAdminRejectModel)
	app.Patch("/api/v1/admin/users/:id/status", HandleAdminUpdateUserStatus)
	return app
}

func TestHandleAdminListPendingModels(t *testing.T) {
	withFakeRepositories(t, &repository.Repositories{Model: catalogFixture()})

	app := adminTestApp(&usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/admin/models/pending", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	items := body["models"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "benchy-remix", items[0].(map[string]interface{})["slug"])
}

func TestHandleAdminListPendingModels_RejectsNonAdmins(t *testing.T) {
	withFakeRepositories(t, &repository.Repositories{Model: catalogFixture()})

	app := adminTestApp(&usercontext.UserContext{UserID: 9, IsLoggedIn: true})

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/admin/models/pending", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])
}

func TestHandleAdminApproveModel(t *testing.T) {
	catalog := catalogFixture()
	withFakeRepositories(t, &repository.Repositories{Model: catalog})

	app := adminTestApp(&usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/admin/models/mu-3/approve", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.MODEL_STATUS_APPROVED, body["status"])
	assert.Equal(t, []string{"mu-3:approved"}, catalog.statusWrites)

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/admin/models/no-such-uuid/reject", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "model_not_found", body["error"])
}

func TestHandleAdminUpdateUserStatus(t *testing.T) {
	accounts := &fakeAccountRepository{users: []models.User{
		{ID: 1, Username: "root", Status: models.STATUS_ACTIVE},
		{ID: 2, Username: "spammer", Status: models.STATUS_ACTIVE},
	}}
	withFakeRepositories(t, &repository.Repositories{User: accounts})

	app := adminTestApp(&usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})

	status, body := doJSON(t, app, http.MethodPatch, "/api/v1/admin/users/2/status", map[string]interface{}{
		"status": models.STATUS_DISABLED,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.STATUS_DISABLED, body["status"])
	assert.Equal(t, []string{"2:disabled"}, accounts.statusWrites)
}

func TestHandleAdminUpdateUserStatus_RejectsSelfChange(t *testing.T) {
	accounts := &fakeAccountRepository{users: []models.User{
		{ID: 1, Username: "root", Status: models.STATUS_ACTIVE},
	}}
	withFakeRepositories(t, &repository.Repositories{User: accounts})

	app := adminTestApp(&usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})

	status, body := doJSON(t, app, http.MethodPatch, "/api/v1/admin/users/1/status", map[string]interface{}{
		"status": models.STATUS_DISABLED,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_target", body["error"])
	assert.Empty(t, accounts.statusWrites)
}

func TestHandleAdminUpdateUserStatus_RejectsUnknownStatus(t *testing.T) {
	accounts := &fakeAccountRepository{users: []models.User{
		{ID: 2, Username: "spammer", Status: models.STATUS_ACTIVE},
	}}
	withFakeRepositories(t, &repository.Repositories{User: accounts})

	app := adminTestApp(&usercontext.UserContext{UserID: 1, IsLoggedIn: true, IsAdmin: true})

	status, body := doJSON(t, app, http.MethodPatch, "/api/v1/admin/users/2/status", map[string]interface{}{
		"status": "banned",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_status", body["error"])
	assert.Empty(t, accounts.statusWrites)
}
