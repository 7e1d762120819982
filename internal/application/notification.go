package application

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/timepay/event-listener/internal/domain"
)

// Notification is the tagged variant over the device notification shapes the
// listener understands. The concrete type is selected by the eventType
// discriminator during parsing.
type Notification interface {
	isNotification()
}

// HeartbeatNotification is a periodic keepalive frame.
type HeartbeatNotification struct {
	DateTime         time.Time `json:"date_time"`
	ActivePostCount  int       `json:"active_post_count"`
	EventType        string    `json:"event_type"`
	EventState       string    `json:"event_state"`
	EventDescription string    `json:"event_description"`
}

func (HeartbeatNotification) isNotification() {}

// AccessEventNotification is an access-controller event frame.
type AccessEventNotification struct {
	DateTime         time.Time             `json:"date_time"`
	ActivePostCount  int                   `json:"active_post_count"`
	EventType        string                `json:"event_type"`
	EventState       string                `json:"event_state"`
	EventDescription string                `json:"event_description"`
	DeviceID         string                `json:"device_id"`
	Controller       AccessControllerEvent `json:"access_controller_event"`
}

func (AccessEventNotification) isNotification() {}

// AccessControllerEvent carries the controller-specific details of an event.
type AccessControllerEvent struct {
	MajorEvent        int     `json:"major_event"`
	MinorEvent        int     `json:"minor_event"`
	SerialNo          *int64  `json:"serial_no"`
	VerifyNo          *int64  `json:"verify_no"`
	PersonID          *string `json:"person_id"`
	PersonName        *string `json:"person_name"`
	ZoneType          *int    `json:"zone_type"`
	SwipeCardType     *int    `json:"swipe_card_type"`
	CardNo            *string `json:"card_no"`
	CardType          *int    `json:"card_type"`
	UserType          *string `json:"user_type"`
	CurrentVerifyMode *string `json:"current_verify_mode"`
	CurrentEvent      *bool   `json:"current_event"`
	FrontSerialNo     *int64  `json:"front_serial_no"`
	AttendanceStatus  *string `json:"attendance_status"`
	PicturesNumber    *int    `json:"pictures_number"`
	Mask              *string `json:"mask"`
}

// wireNotification matches the JSON the device firmware actually sends.
type wireNotification struct {
	DateTime         time.Time  `json:"dateTime"`
	ActivePostCount  int        `json:"activePostCount"`
	EventType        string     `json:"eventType"`
	EventState       string     `json:"eventState"`
	EventDescription string     `json:"eventDescription"`
	DeviceID         string     `json:"deviceID"`
	Controller       *wireEvent `json:"AccessControllerEvent"`
}

type wireEvent struct {
	MajorEventType    int     `json:"majorEventType"`
	SubEventType      int     `json:"subEventType"`
	SerialNo          *int64  `json:"serialNo"`
	VerifyNo          *int64  `json:"verifyNo"`
	EmployeeNoString  *string `json:"employeeNoString"`
	Name              *string `json:"name"`
	ZoneType          *int    `json:"type"`
	SwipeCardType     *int    `json:"swipeCardType"`
	CardNo            *string `json:"cardNo"`
	CardType          *int    `json:"cardType"`
	UserType          *string `json:"userType"`
	CurrentVerifyMode *string `json:"currentVerifyMode"`
	CurrentEvent      *bool   `json:"currentEvent"`
	FrontSerialNo     *int64  `json:"frontSerialNo"`
	AttendanceStatus  *string `json:"attendanceStatus"`
	PicturesNumber    *int    `json:"picturesNumber"`
	Mask              *string `json:"mask"`
}

const heartbeatEventType = "heartBeat"

// ParseNotification decodes a raw device frame into the matching variant.
// Frames without a recognizable eventType discriminator are rejected.
func ParseNotification(raw []byte) (Notification, error) {
	var wire wireNotification
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed notification: %v", domain.ErrInvalidInput, err)
	}
	switch {
	case wire.EventType == heartbeatEventType:
		return HeartbeatNotification{
			DateTime:         wire.DateTime,
			ActivePostCount:  wire.ActivePostCount,
			EventType:        wire.EventType,
			EventState:       wire.EventState,
			EventDescription: wire.EventDescription,
		}, nil
	case wire.Controller != nil:
		return AccessEventNotification{
			DateTime:         wire.DateTime,
			ActivePostCount:  wire.ActivePostCount,
			EventType:        wire.EventType,
			EventState:       wire.EventState,
			EventDescription: wire.EventDescription,
			DeviceID:         wire.DeviceID,
			Controller: AccessControllerEvent{
				MajorEvent:        wire.Controller.MajorEventType,
				MinorEvent:        wire.Controller.SubEventType,
				SerialNo:          wire.Controller.SerialNo,
				VerifyNo:          wire.Controller.VerifyNo,
				PersonID:          wire.Controller.EmployeeNoString,
				PersonName:        wire.Controller.Name,
				ZoneType:          wire.Controller.ZoneType,
				SwipeCardType:     wire.Controller.SwipeCardType,
				CardNo:            wire.Controller.CardNo,
				CardType:          wire.Controller.CardType,
				UserType:          wire.Controller.UserType,
				CurrentVerifyMode: wire.Controller.CurrentVerifyMode,
				CurrentEvent:      wire.Controller.CurrentEvent,
				FrontSerialNo:     wire.Controller.FrontSerialNo,
				AttendanceStatus:  wire.Controller.AttendanceStatus,
				PicturesNumber:    wire.Controller.PicturesNumber,
				Mask:              wire.Controller.Mask,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, wire.EventType)
	}
}

func (n AccessEventNotification) toDomain() domain.AccessEvent {
	purpose := domain.PurposeInformation
	if n.Controller.PersonName != nil && *n.Controller.PersonName != "" {
		purpose = domain.PurposeAttendance
	}
	return domain.AccessEvent{
		DateTime:          n.DateTime,
		ActivePostCount:   n.ActivePostCount,
		EventType:         n.EventType,
		EventState:        n.EventState,
		EventDescription:  n.EventDescription,
		DeviceID:          n.DeviceID,
		MajorEvent:        n.Controller.MajorEvent,
		MinorEvent:        n.Controller.MinorEvent,
		SerialNo:          n.Controller.SerialNo,
		VerifyNo:          n.Controller.VerifyNo,
		PersonID:          n.Controller.PersonID,
		PersonName:        n.Controller.PersonName,
		Purpose:           &purpose,
		ZoneType:          n.Controller.ZoneType,
		SwipeCardType:     n.Controller.SwipeCardType,
		CardNo:            n.Controller.CardNo,
		CardType:          n.Controller.CardType,
		UserType:          n.Controller.UserType,
		CurrentVerifyMode: n.Controller.CurrentVerifyMode,
		CurrentEvent:      n.Controller.CurrentEvent,
		FrontSerialNo:     n.Controller.FrontSerialNo,
		AttendanceStatus:  n.Controller.AttendanceStatus,
		PicturesNumber:    n.Controller.PicturesNumber,
		Mask:              n.Controller.Mask,
	}
}

func (n HeartbeatNotification) toDomain() domain.Heartbeat {
	return domain.Heartbeat{
		DateTime:         n.DateTime,
		ActivePostCount:  n.ActivePostCount,
		EventType:        n.EventType,
		EventState:       n.EventState,
		EventDescription: n.EventDescription,
	}
}
