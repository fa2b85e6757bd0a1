package router

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAPISpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err, "openapi.yml must be loadable")
	return doc
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc := loadAPISpec(t)
	require.NoError(t, doc.Validate(context.Background()))

	assert.Equal(t, "STLPrime API", doc.Info.Title)
	require.NotEmpty(t, doc.Servers)
	assert.Equal(t, "/api/v1", doc.Servers[0].URL)
}

func TestOpenAPIDocumentCoversCoreOperations(t *testing.T) {
	doc := loadAPISpec(t)

	// Paths the API must never lose without a deliberate version bump.
	checks := []struct {
		path   string
		method string
	}{
		{"/auth/register", "POST"},
		{"/auth/login", "POST"},
		{"/models", "GET"},
		{"/models/{slug}/download", "POST"},
		{"/downloads", "GET"},
		{"/uploads", "POST"},
		{"/checkout/subscription", "POST"},
		{"/checkout/payment", "POST"},
		{"/webhooks/stripe", "POST"},
		{"/user/billing/resync", "POST"},
		{"/posts", "GET"},
		{"/collections", "POST"},
		{"/admin/models/{uuid}/approve", "POST"},
	}
	for _, check := range checks {
		item := doc.Paths.Find(check.path)
		require.NotNilf(t, item, "path %s missing from document", check.path)
		assert.NotNilf(t, item.GetOperation(check.method), "%s %s missing from document", check.method, check.path)
	}
}

func TestOpenAPIWebhookRequiresSignatureHeader(t *testing.T) {
	doc := loadAPISpec(t)

	item := doc.Paths.Find("/webhooks/stripe")
	require.NotNil(t, item)
	op := item.GetOperation("POST")
	require.NotNil(t, op)

	var found bool
	for _, ref := range op.Parameters {
		if ref.Value != nil && ref.Value.Name == "Stripe-Signature" && ref.Value.In == "header" {
			found = true
			assert.True(t, ref.Value.Required)
		}
	}
	assert.True(t, found, "webhook endpoint must document the signature header")
}
