// pkg/core/cluster.go
package core

// ClusterParameters are the knobs of the host engine's screen-space
// clustering primitive. They are always replaced as a pair.
type ClusterParameters struct {
	PixelRange         int
	MinimumClusterSize int
}

// Valid reports whether the pair is acceptable to the clustering primitive.
func (p ClusterParameters) Valid() bool {
	return p.PixelRange > 0 && p.MinimumClusterSize >= 2
}

// ImageHandle is an opaque image reference, usually a URI.
type ImageHandle string

// ClusterBadge is a rendered cluster indicator with its membership.
type ClusterBadge struct {
	ID          string
	MemberCount int
	Image       ImageHandle
	Members     []Marker
}
