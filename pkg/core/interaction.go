// pkg/core/interaction.go
package core

import "time"

// InteractionFlags is a snapshot of the flags gating adaptive clustering.
type InteractionFlags struct {
	IsUserInteracting           bool
	AdaptiveClusteringSuspended bool
	RestoreProtectionUntil      time.Time // zero when no window is active
}

// AllowsClusterPush reports whether adaptive cluster parameters may be pushed at now.
func (f InteractionFlags) AllowsClusterPush(now time.Time) bool {
	if f.AdaptiveClusteringSuspended {
		return false
	}
	return f.RestoreProtectionUntil.IsZero() || now.After(f.RestoreProtectionUntil)
}
