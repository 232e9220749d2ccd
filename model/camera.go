package model

import "github.com/signalsfoundry/flyin/easing"

// CameraFrame is one camera pose of a fly-in. Angles are degrees, altitude is
// metres above the reference surface. Frames are never mutated once built.
type CameraFrame struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Altitude  float64 `json:"altitude"`
	Heading   float64 `json:"heading"`
	Pitch     float64 `json:"pitch"` // -90 looks straight down
	Roll      float64 `json:"roll"`  // always 0
}

// AnimationParameters describes a single fly-in over a fixed ground point.
type AnimationParameters struct {
	Longitude     float64     `json:"longitude"`
	Latitude      float64     `json:"latitude"`
	StartAltitude float64     `json:"startAltitude"`
	EndAltitude   float64     `json:"endAltitude"`
	TiltAngle     float64     `json:"tiltAngle"` // final tilt away from nadir, [0, 90]
	Heading       float64     `json:"heading"`
	TotalFrames   int         `json:"totalFrames"`
	Easing        easing.Name `json:"easing"`
}

// FinalPitch is the pitch the camera settles at on the last frame.
func (p AnimationParameters) FinalPitch() float64 {
	return -(90 - p.TiltAngle)
}
