package live

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the wire discriminator of a booking event frame.
type EventKind string

const (
	KindCreated   EventKind = "booking:created"
	KindSubmitted EventKind = "booking:submitted"
	KindApproved  EventKind = "booking:approved"
	KindRejected  EventKind = "booking:rejected"
)

func (k EventKind) valid() bool {
	switch k {
	case KindCreated, KindSubmitted, KindApproved, KindRejected:
		return true
	}
	return false
}

// Booking is the booking snapshot carried inside an event frame.
type Booking struct {
	ID             string `json:"id"`
	DepartmentID   string `json:"departmentId"`
	CandidateCount int    `json:"candidateCount"`
	BookingDate    string `json:"bookingDate"`
	Status         string `json:"status"`
	UserID         string `json:"userId"`
}

// BookingEvent is one parsed frame from the live channel.
type BookingEvent struct {
	Kind      EventKind `json:"type"`
	Booking   Booking   `json:"booking"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseEvent decodes one inbound frame. A frame that is not valid JSON, has
// fields of the wrong type, or names an unknown event kind is rejected; the
// channel discards such frames without dropping the connection.
func ParseEvent(data []byte) (BookingEvent, error) {
	var ev BookingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BookingEvent{}, fmt.Errorf("decode frame: %w", err)
	}
	if !ev.Kind.valid() {
		return BookingEvent{}, fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if ev.Booking.ID == "" {
		return BookingEvent{}, fmt.Errorf("event %s missing booking id", ev.Kind)
	}
	return ev, nil
}
