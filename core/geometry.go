package core

import (
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/flyin/model"
)

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// referenceJulianDay is J2000. The ECI rotation applied by go-satellite is
// undone again by ECIToECEF, so any epoch gives the same Earth-fixed result.
const referenceJulianDay = 2451545.0

const degToRad = math.Pi / 180

// GeodeticToECEF converts latitude/longitude in degrees and an altitude in
// metres to an Earth-fixed position in kilometres. go-satellite treats the
// Earth as a sphere of radius 6378.137 km here.
func GeodeticToECEF(latDeg, lonDeg, altMetres float64) Vec3 {
	ll := satellite.LatLong{Latitude: latDeg * degToRad, Longitude: lonDeg * degToRad}
	eci := satellite.LLAToECI(ll, altMetres/1000, referenceJulianDay)
	ecef := satellite.ECIToECEF(eci, satellite.ThetaG_JD(referenceJulianDay))
	return Vec3{X: ecef.X, Y: ecef.Y, Z: ecef.Z}
}

// FramePositionECEF returns the camera position of f in kilometres.
func FramePositionECEF(f model.CameraFrame) Vec3 {
	return GeodeticToECEF(f.Latitude, f.Longitude, f.Altitude)
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = local horizon, 90° = overhead, -90° = nadir.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := Vec3{X: observer.X / r, Y: observer.Y / r, Z: observer.Z / r}

	cosGamma := v.Dot(zenith) / vNorm
	cosGamma = math.Max(-1, math.Min(1, cosGamma))
	gammaDeg := math.Acos(cosGamma) * 180.0 / math.Pi

	return 90.0 - gammaDeg
}
