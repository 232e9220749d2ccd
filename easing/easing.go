// Package easing maps normalized progress onto eased progress.
//
// Every curve takes t ∈ [0, 1] and returns a value in [0, 1] with f(0) = 0 and
// f(1) = 1. Behaviour outside [0, 1] is whatever the polynomial gives; callers
// pass already-normalized progress.
package easing

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownEasing is returned when a profile name is outside the closed set.
var ErrUnknownEasing = errors.New("unknown easing profile")

// Func maps raw progress to eased progress.
type Func func(t float64) float64

// Name identifies one of the built-in easing profiles.
type Name string

const (
	Cinematic Name = "cinematic"
	Cubic     Name = "cubic"
	Quintic   Name = "quintic"
	Linear    Name = "linear"
)

// Cinematic blend parameters: half of the journey is covered in the first
// 30% of the timeline.
const (
	blendPoint = 0.3
	blendValue = 0.5
)

var profiles = map[Name]Func{
	Cinematic: FastInSlowOut,
	Cubic:     CubicInOut,
	Quintic:   QuinticInOut,
	Linear:    Identity,
}

// Names returns the supported profile names in a stable order.
func Names() []Name {
	return []Name{Cinematic, Cubic, Quintic, Linear}
}

// Valid reports whether n is one of the supported profiles.
func (n Name) Valid() bool {
	_, ok := profiles[n]
	return ok
}

func (n Name) String() string { return string(n) }

// UnmarshalText implements encoding.TextUnmarshaler so that JSON and YAML
// decoding reject unknown profiles up front.
func (n *Name) UnmarshalText(text []byte) error {
	parsed, err := ParseName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// ParseName converts s to a Name, accepting any letter case and surrounding
// whitespace.
func ParseName(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEasing, s)
	}
	return n, nil
}

// Resolve returns the mapping function for name. Unknown names fail; there
// is no fallback profile.
func Resolve(name Name) (Func, error) {
	fn, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEasing, string(name))
	}
	return fn, nil
}

// Lerp linearly interpolates between a and b. t is not restricted to [0, 1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Smoothstep is the cubic Hermite ramp t²(3 - 2t), flat at both ends.
func Smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// Identity returns t unchanged.
func Identity(t float64) float64 {
	return t
}

// CubicInOut is a symmetric cubic ease-in-out.
func CubicInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// QuinticInOut has the same shape as CubicInOut but spends longer near the
// ends and moves faster through the middle.
func QuinticInOut(t float64) float64 {
	if t < 0.5 {
		return 16 * t * t * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 5)/2
}

// FastInSlowOut is an asymmetric fast-in, slow-out curve for aerial zooms:
// a quadratic ease-in reaches 0.5 at t = 0.3, then a quartic ease-out settles
// over the remaining 70% of the timeline.
func FastInSlowOut(t float64) float64 {
	if t < blendPoint {
		u := t / blendPoint
		return blendValue * u * u
	}
	u := (t - blendPoint) / (1 - blendPoint)
	return blendValue + (1-blendValue)*(1-math.Pow(1-u, 4))
}

// Sample evaluates fn at n evenly spaced points covering [0, 1], both ends
// included. n < 2 yields just fn(0).
func Sample(fn Func, n int) []float64 {
	if n < 2 {
		return []float64{fn(0)}
	}
	out := make([]float64, n)
	for i := range n {
		out[i] = fn(float64(i) / float64(n-1))
	}
	return out
}
