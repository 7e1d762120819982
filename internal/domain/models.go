package domain

import "time"

// PersonPurpose classifies why a person interacted with the controller.
type PersonPurpose string

const (
	PurposeAttendance  PersonPurpose = "att"
	PurposeInformation PersonPurpose = "info"
)

const (
	AggregateTypeEvent     = "Event"
	AggregateTypeHeartbeat = "Heartbeat"

	EventTypeEventCreated     = "access_control.event_created"
	EventTypeHeartbeatCreated = "heartbeat.created"
)

// AccessEvent is a notification reported by an access-control device
// (door open, card swipe, face verification, ...).
type AccessEvent struct {
	ID               int64
	DateTime         time.Time
	ActivePostCount  int
	EventType        string
	EventState       string
	EventDescription string
	DeviceID         string

	MajorEvent        int
	MinorEvent        int
	SerialNo          *int64
	VerifyNo          *int64
	PersonID          *string
	PersonName        *string
	Purpose           *PersonPurpose
	ZoneType          *int
	SwipeCardType     *int
	CardNo            *string
	CardType          *int
	UserType          *string
	CurrentVerifyMode *string
	CurrentEvent      *bool
	FrontSerialNo     *int64
	AttendanceStatus  *string
	PicturesNumber    *int
	Mask              *string
	PictureURL        *string

	CreatedAt time.Time
}

// IsAttendanceEvent reports whether the event should feed attendance tracking.
func (e AccessEvent) IsAttendanceEvent() bool {
	return e.AttendanceStatus != nil && e.Purpose != nil && *e.Purpose == PurposeAttendance
}

// Heartbeat is a periodic keepalive reported by a device.
type Heartbeat struct {
	ID               int64
	DateTime         time.Time
	ActivePostCount  int
	EventType        string
	EventState       string
	EventDescription string
	CreatedAt        time.Time
}

// OutboxEvent is the unit of reliable delivery to the broker. The payload is
// serialized once at append time and never mutated afterwards; Processed only
// ever transitions false to true.
type OutboxEvent struct {
	ID            int64
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	Processed     bool
	ProcessedAt   *time.Time
}
