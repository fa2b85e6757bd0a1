package payments

import (
	"strings"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/entitlements"
)

func normalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case string(entitlements.PlanPro):
		return string(entitlements.PlanPro)
	case string(entitlements.PlanPremium):
		return string(entitlements.PlanPremium)
	default:
		return string(entitlements.PlanFree)
	}
}

func tierRank(tier string) int {
	switch normalizeTier(tier) {
	case string(entitlements.PlanPremium):
		return 2
	case string(entitlements.PlanPro):
		return 1
	default:
		return 0
	}
}

func isEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}
