package spine

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

func Lerp(start, stop, rate float32) float32 {
	return start + (stop-start)*rate
}

func Vec2Lerp(start, stop mgl32.Vec2, rate float32) mgl32.Vec2 {
	return mgl32.Vec2{Lerp(start[0], stop[0], rate), Lerp(start[1], stop[1], rate)}
}

func Vec4Lerp(start, stop mgl32.Vec4, rate float32) mgl32.Vec4 {
	return mgl32.Vec4{
		Lerp(start[0], stop[0], rate),
		Lerp(start[1], stop[1], rate),
		Lerp(start[2], stop[2], rate),
		Lerp(start[3], stop[3], rate),
	}
}

func Vec2Mul(v1, v2 mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{v1.X() * v2.X(), v1.Y() * v2.Y()}
}

func Vec4Mul(v1, v2 mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{v1.X() * v2.X(), v1.Y() * v2.Y(), v1.Z() * v2.Z(), v1.W() * v2.W()}
}

// wrapDegree maps a rotation into [-180, 180).
func wrapDegree(val float32) float32 {
	res := math.Mod(float64(val)+180, 360)
	if res < 0 {
		res += 360
	}
	return float32(res - 180)
}

func cosDeg(deg float32) float32 {
	return float32(math.Cos(float64(mgl32.DegToRad(deg))))
}

func sinDeg(deg float32) float32 {
	return float32(math.Sin(float64(mgl32.DegToRad(deg))))
}

func atan2Deg(y, x float32) float32 {
	return mgl32.RadToDeg(float32(math.Atan2(float64(y), float64(x))))
}

// newMat2 builds the bone matrix | a b |
//                                | c d | in mgl32's column-major layout.
func newMat2(a, b, c, d float32) mgl32.Mat2 {
	return mgl32.Mat2{a, c, b, d}
}
