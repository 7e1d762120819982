package domain

import "fmt"

// ValidateAccessEvent checks the fields a controller must always send.
func ValidateAccessEvent(e AccessEvent) error {
	if e.DateTime.IsZero() {
		return fmt.Errorf("%w: dateTime is required", ErrInvalidInput)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: eventType is required", ErrInvalidInput)
	}
	if e.DeviceID == "" {
		return fmt.Errorf("%w: deviceID is required", ErrInvalidInput)
	}
	if e.EventState != "active" && e.EventState != "inactive" {
		return fmt.Errorf("%w: eventState must be active or inactive", ErrInvalidInput)
	}
	return nil
}

// ValidateHeartbeat checks the fields a keepalive must always send.
func ValidateHeartbeat(h Heartbeat) error {
	if h.DateTime.IsZero() {
		return fmt.Errorf("%w: dateTime is required", ErrInvalidInput)
	}
	if h.EventState != "active" && h.EventState != "inactive" {
		return fmt.Errorf("%w: eventState must be active or inactive", ErrInvalidInput)
	}
	return nil
}
