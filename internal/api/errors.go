package api

import (
	"errors"
	"net/http"

	"github.com/signalsfoundry/flyin/core"
	"github.com/signalsfoundry/flyin/easing"
	"github.com/signalsfoundry/flyin/internal/flyin"
	"github.com/signalsfoundry/flyin/internal/geocode"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, errBadRequest),
		errors.Is(err, flyin.ErrInvalidRequest),
		errors.Is(err, easing.ErrUnknownEasing),
		errors.Is(err, core.ErrInvalidFrameCount),
		errors.Is(err, core.ErrInvalidAltitude),
		errors.Is(err, core.ErrInvalidTilt),
		errors.Is(err, core.ErrInvalidCoordinate),
		errors.Is(err, geocode.ErrEmptyQuery):
		return http.StatusBadRequest

	case errors.Is(err, geocode.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, geocode.ErrUpstream):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
