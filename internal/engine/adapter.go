package engine

import (
	"time"

	"github.com/OCAP2/globeview/pkg/core"
)

// ForceApply pushes p to the clustering primitive and requests a render, then
// pushes the identical pair again after repeatAfter. Hosts cache the last
// value they saw and may skip a push that "did not change" from their point
// of view; the second push must not be deduplicated. The returned func
// cancels the pending repeat.
func ForceApply(s Scheduler, prim ClusterPrimitive, p core.ClusterParameters, repeatAfter time.Duration) (cancel func(), err error) {
	if err := prim.SetClusterParameters(p); err != nil {
		return func() {}, err
	}
	prim.RequestRender()
	if repeatAfter <= 0 {
		return func() {}, nil
	}
	return s.AfterFunc(repeatAfter, func() {
		if prim.SetClusterParameters(p) == nil {
			prim.RequestRender()
		}
	}), nil
}

// AttachMembership copies the badge onto every access path the host exposes,
// so a later pick finds it whichever path the host reports.
func AttachMembership(h BadgeHandle, badge *core.ClusterBadge) {
	for _, slot := range h.AccessPaths() {
		if slot != nil {
			slot.SetPayload(badge)
		}
	}
}
