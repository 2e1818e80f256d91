package day

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindConflict Kind = iota + 1
	KindNotFound
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to the status used at the HTTP boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode maps the kind to a gRPC-style status code name.
func (k Kind) RPCCode() string {
	switch k {
	case KindConflict:
		return "ALREADY_EXISTS"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidInput:
		return "FAILED_PRECONDITION"
	default:
		return "UNKNOWN"
	}
}

// Error is a domain rule violation. Reason is stable and machine readable.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Reason so wrapped copies still compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrDayAlreadyScheduled = &Error{KindConflict, "day_already_scheduled", "The day is already scheduled for the doctor."}
	ErrDayAlreadyArchived  = &Error{KindConflict, "day_already_archived", "The day has already been archived for the doctor."}
	ErrDayAlreadyCancelled = &Error{KindConflict, "day_already_cancelled", "The day has already been cancelled for the doctor."}
	ErrSlotAlreadyBooked   = &Error{KindConflict, "slot_already_booked", "The slot is already booked."}
	ErrSlotNotBooked       = &Error{KindConflict, "slot_not_booked", "The slot is not booked."}
	ErrBookingHeldByOther  = &Error{KindConflict, "booking_held_by_other", "The slot is booked by a different patient."}

	ErrDayNotScheduled  = &Error{KindNotFound, "day_not_scheduled", "The day is not scheduled for the doctor."}
	ErrSlotNotScheduled = &Error{KindNotFound, "slot_not_scheduled", "The slot is not scheduled."}

	ErrDayFull             = &Error{KindInvalidInput, "day_full", "The maximum number of slots have already been scheduled for the day."}
	ErrSlotForWrongDay     = &Error{KindInvalidInput, "slot_wrong_day", "The slot date is different than the date of the day you are trying to schedule it for."}
	ErrSlotDurationInvalid = &Error{KindInvalidInput, "slot_duration_invalid", "The slot duration is invalid."}
	ErrSlotOverlaps        = &Error{KindInvalidInput, "slot_overlaps", "The slot overlaps with an already scheduled slot."}
)

// AsError extracts a domain error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
