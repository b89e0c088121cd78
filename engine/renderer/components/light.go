package components

import "github.com/spaghettifunk/framegraph/engine/math"

// Light is a directional light. Its direction is the normalized position of
// the transform it is attached to.
type Light struct {
	Colour math.Vec4
}

func NewLight(colour math.Vec4) *Light {
	return &Light{Colour: colour}
}
