package appointment

import "errors"

var (
	ErrSlotNoLongerAvailable    = errors.New("slot is no longer available")
	ErrSlotBeingBooked          = errors.New("slot is currently being booked, please retry")
	ErrCapacityExceeded         = errors.New("client reached the simultaneous booking limit for this service")
	ErrCooldownActive           = errors.New("client booked this service within the last 24 hours")
	ErrProfessionalNotQualified = errors.New("professional does not provide this service")
	ErrConflictsPending         = errors.New("block conflicts with existing appointments")
	ErrInvalidDraftState        = errors.New("block draft is not awaiting confirmation")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrCompanyMismatch          = errors.New("resource belongs to another company")
)
