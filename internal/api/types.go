package api

import (
	"time"
)

type SlotRequest struct {
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"` // Go duration, e.g. "10m"
}

type ScheduleDayRequest struct {
	DoctorID string        `json:"doctor_id"`
	Date     string        `json:"date"` // yyyy-MM-dd
	Slots    []SlotRequest `json:"slots"`
}

type ScheduleDayResponse struct {
	DayID   string   `json:"day_id"`
	Events  int      `json:"events"`
	SlotIDs []string `json:"slot_ids"`
}

type ScheduleSlotResponse struct {
	DayID  string `json:"day_id"`
	SlotID string `json:"slot_id"`
}

type BookSlotRequest struct {
	SlotID    string `json:"slot_id"`
	PatientID string `json:"patient_id"`
}

type CancelBookingRequest struct {
	SlotID string `json:"slot_id"`
	Reason string `json:"reason"`
}

type AvailableSlotResponse struct {
	SlotID    string    `json:"slot_id"`
	DayID     string    `json:"day_id"`
	Date      string    `json:"date"`
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
