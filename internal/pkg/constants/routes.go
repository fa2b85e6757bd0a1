package constants

// Static route constants shared between the router and URL builders.
const (
	// PreviewsRoute serves generated preview images outside the API group.
	PreviewsRoute = "/previews"
	// DownloadRedeemRoute redeems short-lived download tokens.
	DownloadRedeemRoute = "/api/v1/downloads"
	// StripeWebhookRoute receives provider event deliveries.
	StripeWebhookRoute = "/api/v1/webhooks/stripe"
)
