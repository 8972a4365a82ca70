package availability

import "errors"

var (
	ErrInvalidSchedule       = errors.New("invalid schedule")
	ErrInvalidBlock          = errors.New("invalid agenda block")
	ErrInvalidPolicy         = errors.New("invalid capacity policy")
	ErrNoAvailabilityDefined = errors.New("no availability defined")
)
