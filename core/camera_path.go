package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/model"
)

var (
	ErrInvalidFrameCount = errors.New("invalid frame count")
	ErrInvalidAltitude   = errors.New("invalid altitude")
	ErrInvalidTilt       = errors.New("invalid tilt angle")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

const (
	// NadirPitch is the pitch of a camera looking straight down.
	NadirPitch = -90.0

	// settleStart is the eased progress at which the camera starts tilting.
	settleStart = 0.5
)

// ValidateAnimationParameters reports the first contract violation in p, or
// nil when p can be turned into frames.
//
// A single frame is rejected rather than special-cased: raw progress is
// i/(n-1), which has no meaning for n = 1.
func ValidateAnimationParameters(p model.AnimationParameters) error {
	_, err := validate(p)
	return err
}

// validate checks p in a fixed order and returns the resolved easing.
func validate(p model.AnimationParameters) (easing.Func, error) {
	if p.TotalFrames < 2 {
		return nil, fmt.Errorf("%w: totalFrames = %d, need at least 2", ErrInvalidFrameCount, p.TotalFrames)
	}
	if !(p.StartAltitude > 0) || math.IsInf(p.StartAltitude, 0) {
		return nil, fmt.Errorf("%w: startAltitude = %v, must be positive and finite", ErrInvalidAltitude, p.StartAltitude)
	}
	if !(p.EndAltitude > 0) || math.IsInf(p.EndAltitude, 0) {
		return nil, fmt.Errorf("%w: endAltitude = %v, must be positive and finite", ErrInvalidAltitude, p.EndAltitude)
	}
	if !(p.TiltAngle >= 0 && p.TiltAngle <= 90) {
		return nil, fmt.Errorf("%w: tiltAngle = %v, must lie in [0, 90]", ErrInvalidTilt, p.TiltAngle)
	}
	coords := []struct {
		name  string
		value float64
	}{
		{"longitude", p.Longitude},
		{"latitude", p.Latitude},
		{"heading", p.Heading},
	}
	for _, c := range coords {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return nil, fmt.Errorf("%w: %s = %v", ErrInvalidCoordinate, c.name, c.value)
		}
	}
	return easing.Resolve(p.Easing)
}

// ComputeCameraFrames pre-computes every pose of a fly-in.
//
// Altitude is interpolated in log space so that each frame covers the same
// perceived zoom step. Pitch stays at nadir for the first half of eased
// progress and then smoothsteps to the final tilt, so the tilt always lands in
// the slow settle part of the move whatever the easing profile.
//
// Ascending paths (StartAltitude < EndAltitude) are allowed and produce a
// non-decreasing altitude curve.
func ComputeCameraFrames(p model.AnimationParameters) ([]model.CameraFrame, error) {
	ease, err := validate(p)
	if err != nil {
		return nil, err
	}

	logStart := math.Log(p.StartAltitude)
	logEnd := math.Log(p.EndAltitude)
	finalPitch := p.FinalPitch()
	last := float64(p.TotalFrames - 1)

	frames := make([]model.CameraFrame, p.TotalFrames)
	for i := range frames {
		easedT := ease(float64(i) / last)
		frames[i] = model.CameraFrame{
			Longitude: p.Longitude,
			Latitude:  p.Latitude,
			Altitude:  math.Exp(easing.Lerp(logStart, logEnd, easedT)),
			Heading:   p.Heading,
			Pitch:     pitchAt(easedT, finalPitch),
			Roll:      0,
		}
	}
	return frames, nil
}

// pitchAt maps eased progress to pitch. The result is clamped to
// [NadirPitch, finalPitch].
func pitchAt(easedT, finalPitch float64) float64 {
	if easedT < settleStart {
		return NadirPitch
	}
	pitchT := math.Min(1, (easedT-settleStart)/(1-settleStart))
	pitch := easing.Lerp(NadirPitch, finalPitch, easing.Smoothstep(pitchT))
	return math.Max(NadirPitch, math.Min(pitch, finalPitch))
}
