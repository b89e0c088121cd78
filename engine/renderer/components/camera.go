package components

import (
	"github.com/spaghettifunk/framegraph/engine/math"
)

type ProjectionMode int

const (
	ProjectionPerspective ProjectionMode = iota
	ProjectionOrtho
)

/**
 * @brief A camera looking along its yaw/pitch direction. The position is not
 * stored here, it comes from the transform of the node that owns the camera.
 */
type Camera struct {
	Mode ProjectionMode
	/** @brief Width over height, used by the perspective projection. */
	Aspect float32
	/** @brief Vertical field of view in radians. */
	Fovy float32
	/** @brief Size of the view volume, used by the orthographic projection. */
	Width  float32
	Height float32
	Near   float32
	Far    float32
	/** @brief Rotation around the up axis in radians. */
	Yaw   float32
	Pitch float32
	Up    math.Vec3
}

func NewPerspectiveCamera(aspect, fovy, near, far, yaw, pitch float32) *Camera {
	return &Camera{
		Mode:   ProjectionPerspective,
		Aspect: aspect,
		Fovy:   fovy,
		Near:   near,
		Far:    far,
		Yaw:    yaw,
		Pitch:  pitch,
		Up:     math.NewVec3Up(),
	}
}

func NewOrthoCamera(width, height, near, far, yaw, pitch float32) *Camera {
	return &Camera{
		Mode:   ProjectionOrtho,
		Width:  width,
		Height: height,
		Near:   near,
		Far:    far,
		Yaw:    yaw,
		Pitch:  pitch,
		Up:     math.NewVec3Up(),
	}
}

// Direction is the unit vector the camera looks at.
func (c *Camera) Direction() math.Vec3 {
	sinPitch, cosPitch := math.Sin(c.Pitch), math.Cos(c.Pitch)
	sinYaw, cosYaw := math.Sin(c.Yaw), math.Cos(c.Yaw)
	return math.NewVec3(cosPitch*cosYaw, sinPitch, cosPitch*sinYaw).Normalized()
}

func (c *Camera) View(position math.Vec3) math.Mat4 {
	return math.NewMat4LookAt(position, position.Add(c.Direction()), c.Up)
}

func (c *Camera) Projection() math.Mat4 {
	if c.Mode == ProjectionOrtho {
		return math.NewMat4Orthographic(-c.Width/2, c.Width/2, -c.Height/2, c.Height/2, c.Near, c.Far)
	}
	return math.NewMat4Perspective(c.Fovy, c.Aspect, c.Near, c.Far)
}

// ViewProj transforms world space into clip space.
func (c *Camera) ViewProj(position math.Vec3) math.Mat4 {
	return c.View(position).Mul(c.Projection())
}

// Resize keeps the projection in sync with the display.
func (c *Camera) Resize(width, height uint32) {
	if height == 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
	if c.Mode == ProjectionOrtho {
		c.Width = float32(width)
		c.Height = float32(height)
	}
}

func (c *Camera) YawBy(delta float32) {
	c.Yaw += delta
}

// PitchBy keeps the pitch away from the poles so the view never flips.
func (c *Camera) PitchBy(delta float32) {
	limit := math.DegToRad(89)
	c.Pitch = math.Clamp(c.Pitch+delta, -limit, limit)
}
