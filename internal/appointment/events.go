package appointment

import (
	"time"

	"github.com/hackgods/tenant-booking-engine/internal/outbox"
)

type eventPayload struct {
	AppointmentID  string            `json:"appointment_id"`
	CompanyID      string            `json:"company_id"`
	ProfessionalID string            `json:"professional_id"`
	ServiceID      string            `json:"service_id"`
	ClientID       string            `json:"client_id"`
	Start          time.Time         `json:"start"`
	End            time.Time         `json:"end"`
	Status         AppointmentStatus `json:"status"`
	PreviousStatus AppointmentStatus `json:"previous_status,omitempty"`
	PaymentStatus  PaymentStatus     `json:"payment_status"`
	Reason         string            `json:"reason,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// topicFor picks the event published when an appointment enters status.
func topicFor(status AppointmentStatus) string {
	if status.Cancelled() {
		return outbox.TopicAppointmentCancelled
	}
	return outbox.TopicAppointmentStatusChanged
}

func appointmentEvent(topic string, a Appointment, previous AppointmentStatus) (outbox.Event, error) {
	return outbox.NewEvent(topic, outbox.AggregateAppointment, a.ID.String(), eventPayload{
		AppointmentID:  a.ID.String(),
		CompanyID:      a.CompanyID.String(),
		ProfessionalID: a.ProfessionalID.String(),
		ServiceID:      a.ServiceID.String(),
		ClientID:       a.ClientID.String(),
		Start:          a.Start,
		End:            a.End,
		Status:         a.Status,
		PreviousStatus: previous,
		PaymentStatus:  a.PaymentStatus,
		Reason:         a.CancelReason,
		OccurredAt:     a.UpdatedAt,
	})
}
