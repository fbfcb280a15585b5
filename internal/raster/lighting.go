package raster

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Light is a directional light. Direction points from the surface toward the light.
type Light struct {
	Direction mgl64.Vec3
	Color     [3]float64
	Intensity float64
}

// LightFromEuler builds a light whose beam is rotated by pitch and yaw
// (degrees) from the -Z axis, for characters facing +Z.
func LightFromEuler(pitch, yaw float64, color [3]float64, intensity float64) Light {
	p, y := mgl64.DegToRad(pitch), mgl64.DegToRad(yaw)
	beam := mgl64.Vec3{math.Sin(y) * math.Cos(p), -math.Sin(p), -math.Cos(y) * math.Cos(p)}
	return Light{Direction: beam.Mul(-1).Normalize(), Color: color, Intensity: intensity}
}

// LightConfig holds precomputed lighting parameters.
type LightConfig struct {
	Lights    []Light
	Ambient   float64
	Exposure  float64
	SRGBGamma float64
	InvGamma  float64
}

// DefaultLightConfig is a white key light from the upper front-right and a
// cool, half-strength fill from behind.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		Lights: []Light{
			LightFromEuler(30, -30, [3]float64{1, 1, 1}, 1.0),
			LightFromEuler(30, 150, [3]float64{0.8, 0.85, 1.0}, 0.5),
		},
		Ambient:   0.45,
		Exposure:  1.0,
		SRGBGamma: 2.2,
		InvGamma:  1.0 / 2.2,
	}
}

// ComputeShade returns the per-channel light reaching a face with the given
// unit normal. Faces are lit from both sides.
func (lc *LightConfig) ComputeShade(normal mgl64.Vec3) [3]float64 {
	out := [3]float64{lc.Ambient, lc.Ambient, lc.Ambient}
	for _, l := range lc.Lights {
		ndl := math.Abs(normal.Dot(l.Direction)) * l.Intensity
		out[0] += ndl * l.Color[0]
		out[1] += ndl * l.Color[1]
		out[2] += ndl * l.Color[2]
	}
	return out
}

// Precomputed sRGB-to-linear lookup table (256 entries).
var srgbToLinear [256]float64

func init() {
	for i := 0; i < 256; i++ {
		srgbToLinear[i] = math.Pow(float64(i)/255.0, 2.2)
	}
}

// ACESTonemap applies ACES Filmic tone mapping to a linear value.
func ACESTonemap(x float64) float64 {
	return (x * (2.51*x + 0.03)) / (x*(2.43*x+0.59) + 0.14)
}
