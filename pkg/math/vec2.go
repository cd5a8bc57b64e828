// Package math provides the float32 value types used by model geometry.
package math

// Vec2 is a 2D vector, used for texture coordinates.
type Vec2 struct {
	X, Y float32
}

// Array returns the components as [x, y].
func (v Vec2) Array() [2]float32 {
	return [2]float32{v.X, v.Y}
}

// Vec2FromArray builds a Vec2 from [x, y].
func Vec2FromArray(a [2]float32) Vec2 {
	return Vec2{a[0], a[1]}
}
