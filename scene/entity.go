package scene

import (
	"cmp"
	"slices"

	"render-demo/math"
	"render-demo/shader"
)

// Drawable is anything that issues its own draw calls once the model
// matrix is bound.
type Drawable interface {
	Draw(b *shader.ActiveBinding)
}

// Entity places a Drawable in the world.
type Entity struct {
	Name      string
	Transform math.Mat4
	Drawable  Drawable

	// Outlined entities get the stencil outline pass.
	Outlined bool
	// Transparent entities are drawn after the opaque ones, sorted.
	Transparent bool
	// Animate, when set, replaces Transform each Update.
	Animate func(elapsed float32) math.Mat4
}

// SortBackToFront orders entities by descending squared distance from eye
// to their translation. Equal distances keep their input order.
func SortBackToFront(entities []*Entity, eye math.Vec3) {
	slices.SortStableFunc(entities, func(a, b *Entity) int {
		return cmp.Compare(
			eye.DistanceSqr(b.Transform.Translation()),
			eye.DistanceSqr(a.Transform.Translation()),
		)
	})
}
