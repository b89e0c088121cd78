package math

func NewTransform(translation Vec3, rotation Quaternion, scale Vec3) Transform {
	return Transform{
		Translation: translation,
		Rotation:    rotation,
		Scale:       scale,
	}
}

func TransformIdentity() Transform {
	return NewTransform(NewVec3Zero(), NewQuatIdentity(), NewVec3One())
}

func TransformFromPosition(position Vec3) Transform {
	return NewTransform(position, NewQuatIdentity(), NewVec3One())
}

func (t Transform) Translate(translation Vec3) Transform {
	t.Translation = t.Translation.Add(translation)
	return t
}

func (t Transform) Rotate(rotation Quaternion) Transform {
	t.Rotation = t.Rotation.Mul(rotation)
	return t
}

func (t Transform) Scaled(scale Vec3) Transform {
	t.Scale = t.Scale.Mul(scale)
	return t
}

// Matrix scales, rotates and finally translates.
func (t Transform) Matrix() Mat4 {
	s := NewMat4Scale(t.Scale)
	return s.Mul(t.Rotation.ToMat4()).Mul(NewMat4Translation(t.Translation))
}

// Forward is the -Z axis rotated by the transform.
func (t Transform) Forward() Vec3 {
	r := t.Rotation.ToMat4()
	return Vec3{-r.Data[8], -r.Data[9], -r.Data[10]}.Normalized()
}
