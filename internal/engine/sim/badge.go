package sim

import (
	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/pkg/core"
)

// Slot is one payload access path of a badge.
type Slot struct {
	payload any
}

// SetPayload stores v.
func (s *Slot) SetPayload(v any) {
	s.payload = v
}

// Payload returns the stored value.
func (s *Slot) Payload() any {
	return s.payload
}

// Badge is a simulated cluster billboard.
type Badge struct {
	id        string
	x, y      float64
	image     core.ImageHandle
	style     engine.BadgeStyle
	visible   bool
	pickID    Slot
	primitive Slot
}

// ID returns the badge identity.
func (b *Badge) ID() string { return b.id }

// SetImage sets the billboard image.
func (b *Badge) SetImage(img core.ImageHandle) { b.image = img }

// SetStyle sets size, anchor and translucency.
func (b *Badge) SetStyle(style engine.BadgeStyle) { b.style = style }

// SetVisible shows or hides the billboard.
func (b *Badge) SetVisible(visible bool) { b.visible = visible }

// AccessPaths returns the picked-id and picked-primitive slots.
func (b *Badge) AccessPaths() []engine.PayloadSlot {
	return []engine.PayloadSlot{&b.pickID, &b.primitive}
}

// Image returns the current image.
func (b *Badge) Image() core.ImageHandle { return b.image }

// Style returns the current style.
func (b *Badge) Style() engine.BadgeStyle { return b.style }

// Visible reports whether the badge is shown.
func (b *Badge) Visible() bool { return b.visible }

// PickIDPayload returns what is attached to the picked id path.
func (b *Badge) PickIDPayload() any { return b.pickID.payload }

// PrimitivePayload returns what is attached to the primitive path.
func (b *Badge) PrimitivePayload() any { return b.primitive.payload }
