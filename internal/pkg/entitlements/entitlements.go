package entitlements

import "github.com/DataFrontierLabs/STLPrime/app/models"

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// DailyDownloadLimit returns how many paid-catalog downloads a plan may start
// per day. Purchased models never count against the limit.
func DailyDownloadLimit(plan Plan) int {
	switch plan {
	case PlanPremium:
		return 100
	case PlanPro:
		return 25
	default:
		return 0
	}
}

// MaxUploadSizeBytes returns the model file size ceiling for a plan.
func MaxUploadSizeBytes(plan Plan) int64 {
	switch plan {
	case PlanPremium:
		return 512 << 20
	case PlanPro:
		return 256 << 20
	default:
		return 64 << 20
	}
}

// CanAccessPaidCatalog reports whether a plan includes subscription downloads
// from the paid catalog without per-model purchases.
func CanAccessPaidCatalog(plan Plan) bool {
	return plan == PlanPro || plan == PlanPremium
}

// PlanForUser maps a user's denormalized tier field to a Plan.
func PlanForUser(u *models.User) Plan {
	if u == nil {
		return PlanFree
	}
	switch u.SubscriptionStatus {
	case models.TIER_PRO:
		return PlanPro
	case models.TIER_PREMIUM:
		return PlanPremium
	default:
		return PlanFree
	}
}
