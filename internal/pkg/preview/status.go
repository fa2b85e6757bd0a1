package preview

import (
	"fmt"
	"time"

	"github.com/DataFrontierLabs/STLPrime/internal/pkg/cache"
)

// Cache key formats for preview processing status, keyed by model UUID.
const (
	statusKeyFormat          = "model:preview:status:%s"
	statusTimestampKeyFormat = "model:preview:status:timestamp:%s"
)

// Status constants for preview processing
const (
	STATUS_PENDING    = "pending"
	STATUS_PROCESSING = "processing"
	STATUS_COMPLETED  = "completed"
	STATUS_FAILED     = "failed"
)

const statusTTL = 24 * time.Hour

// SetStatus sets the preview processing status for a model in the cache.
func SetStatus(modelUUID string, status string) error {
	setStatusTimestamp(modelUUID, time.Now())
	return cache.Set(fmt.Sprintf(statusKeyFormat, modelUUID), status, statusTTL)
}

func setStatusTimestamp(modelUUID string, at time.Time) error {
	key := fmt.Sprintf(statusTimestampKeyFormat, modelUUID)
	return cache.Set(key, at.Format(time.RFC3339), statusTTL)
}

// GetStatus retrieves the preview processing status for a model.
func GetStatus(modelUUID string) (string, error) {
	return cache.Get(fmt.Sprintf(statusKeyFormat, modelUUID))
}

// GetStatusTimestamp returns when the current status was set.
func GetStatusTimestamp(modelUUID string) (time.Time, error) {
	raw, err := cache.Get(fmt.Sprintf(statusTimestampKeyFormat, modelUUID))
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}

// IsStale reports whether a pending or processing status has been sitting
// for longer than maxAge, so callers can fall back to a placeholder image.
func IsStale(modelUUID string, maxAge time.Duration) bool {
	status, err := GetStatus(modelUUID)
	if err != nil || (status != STATUS_PENDING && status != STATUS_PROCESSING) {
		return false
	}
	at, err := GetStatusTimestamp(modelUUID)
	if err != nil {
		return false
	}
	return time.Since(at) > maxAge
}
