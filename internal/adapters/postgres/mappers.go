package postgres

import (
	"github.com/timepay/event-listener/internal/domain"
)

func eventModelFromDomain(e *domain.AccessEvent) eventModel {
	var purpose *string
	if e.Purpose != nil {
		p := string(*e.Purpose)
		purpose = &p
	}
	return eventModel{
		ID:                e.ID,
		DateTime:          e.DateTime,
		ActivePostCount:   e.ActivePostCount,
		EventType:         e.EventType,
		EventState:        e.EventState,
		EventDescription:  e.EventDescription,
		DeviceID:          e.DeviceID,
		MajorEvent:        e.MajorEvent,
		MinorEvent:        e.MinorEvent,
		SerialNo:          e.SerialNo,
		VerifyNo:          e.VerifyNo,
		PersonID:          e.PersonID,
		PersonName:        e.PersonName,
		Purpose:           purpose,
		ZoneType:          e.ZoneType,
		SwipeCardType:     e.SwipeCardType,
		CardNo:            e.CardNo,
		CardType:          e.CardType,
		UserType:          e.UserType,
		CurrentVerifyMode: e.CurrentVerifyMode,
		CurrentEvent:      e.CurrentEvent,
		FrontSerialNo:     e.FrontSerialNo,
		AttendanceStatus:  e.AttendanceStatus,
		PicturesNumber:    e.PicturesNumber,
		Mask:              e.Mask,
		PictureURL:        e.PictureURL,
		CreatedAt:         e.CreatedAt,
	}
}

func outboxEventToDomain(row outboxEventModel) domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:            row.ID,
		AggregateID:   row.AggregateID,
		AggregateType: row.AggregateType,
		EventType:     row.EventType,
		Payload:       []byte(row.Payload),
		CreatedAt:     row.CreatedAt,
		Processed:     row.Processed,
		ProcessedAt:   row.ProcessedAt,
	}
}
