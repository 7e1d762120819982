package postgres

import (
	"time"
)

type eventModel struct {
	ID               int64     `gorm:"column:id;primaryKey"`
	DateTime         time.Time `gorm:"column:date_time"`
	ActivePostCount  int       `gorm:"column:active_post_count"`
	EventType        string    `gorm:"column:event_type"`
	EventState       string    `gorm:"column:event_state"`
	EventDescription string    `gorm:"column:event_description"`
	DeviceID         string    `gorm:"column:device_id"`

	MajorEvent        int     `gorm:"column:major_event"`
	MinorEvent        int     `gorm:"column:minor_event"`
	SerialNo          *int64  `gorm:"column:serial_no"`
	VerifyNo          *int64  `gorm:"column:verify_no"`
	PersonID          *string `gorm:"column:person_id"`
	PersonName        *string `gorm:"column:person_name"`
	Purpose           *string `gorm:"column:purpose"`
	ZoneType          *int    `gorm:"column:zone_type"`
	SwipeCardType     *int    `gorm:"column:swipe_card_type"`
	CardNo            *string `gorm:"column:card_no"`
	CardType          *int    `gorm:"column:card_type"`
	UserType          *string `gorm:"column:user_type"`
	CurrentVerifyMode *string `gorm:"column:current_verify_mode"`
	CurrentEvent      *bool   `gorm:"column:current_event"`
	FrontSerialNo     *int64  `gorm:"column:front_serial_no"`
	AttendanceStatus  *string `gorm:"column:attendance_status"`
	PicturesNumber    *int    `gorm:"column:pictures_number"`
	Mask              *string `gorm:"column:mask"`
	PictureURL        *string `gorm:"column:picture_url"`

	CreatedAt time.Time `gorm:"column:created_at"`
}

func (eventModel) TableName() string { return "events" }

type heartbeatModel struct {
	ID               int64     `gorm:"column:id;primaryKey"`
	DateTime         time.Time `gorm:"column:date_time"`
	ActivePostCount  int       `gorm:"column:active_post_count"`
	EventType        string    `gorm:"column:event_type"`
	EventState       string    `gorm:"column:event_state"`
	EventDescription string    `gorm:"column:event_description"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (heartbeatModel) TableName() string { return "heartbeats" }

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	AggregateID   string     `gorm:"column:aggregate_id"`
	AggregateType string     `gorm:"column:aggregate_type"`
	EventType     string     `gorm:"column:event_type"`
	Payload       string     `gorm:"column:payload"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	Processed     bool       `gorm:"column:processed"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
}

func (outboxEventModel) TableName() string { return "outbox_events" }
