package outbox

// Event is the domain event envelope written to the outbox table in the same
// transaction as the row change it describes. The Kafka topic name equals
// EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Appointment lifecycle event types published by the clinic.
const (
	EventAppointmentBooked        = "clinic.appointment.booked.v1"
	EventAppointmentCancelled     = "clinic.appointment.cancelled.v1"
	EventAppointmentStatusChanged = "clinic.appointment.status_changed.v1"
)
