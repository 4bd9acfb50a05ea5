package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewRunID generates a unique run identifier.
// Format: run_<unix-nanos>_<uuid-prefix>; the monotonic time component keeps
// ids sortable by creation order, the random suffix keeps them unique.
func NewRunID() string {
	return fmt.Sprintf("run_%d_%s", time.Now().UnixNano(), uuid.New().String()[:8])
}

// NewScheduleID generates a unique schedule ID with the "sched_" prefix
func NewScheduleID() string {
	return "sched_" + uuid.New().String()
}

// NewAuditID generates a unique audit entry ID with the "audit_" prefix
func NewAuditID() string {
	return "audit_" + uuid.New().String()
}
