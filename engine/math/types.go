package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

// Quaternion is used to represent rotational orientation.
type Quaternion Vec4

// Mat4 is stored column by column, the translation lives in Data[12:15].
type Mat4 struct {
	Data [16]float32
}

// Mat3 is stored column by column.
type Mat3 struct {
	Data [9]float32
}

// Transform is the placement of an object in the world.
type Transform struct {
	Translation Vec3
	Rotation    Quaternion
	Scale       Vec3
}

// BoundingBox is an axis aligned box.
type BoundingBox struct {
	Min Vec3
	Max Vec3
}
