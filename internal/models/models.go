// Package models defines the persistent entities of the broadcast system.
package models

import "time"

// Direction is the flow of a Message relative to the organizer.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// DeliveryStatus is the lifecycle state of an OUTBOUND Message.
type DeliveryStatus string

const (
	DeliveryPending     DeliveryStatus = "PENDING"
	DeliverySent        DeliveryStatus = "SENT"
	DeliveryDelivered   DeliveryStatus = "DELIVERED"
	DeliveryUndelivered DeliveryStatus = "UNDELIVERED"
	DeliveryFailed      DeliveryStatus = "FAILED"
)

// TargetType distinguishes an include list from an exclude list on a
// Broadcast.
type TargetType string

const (
	TargetInclude TargetType = "include"
	TargetExclude TargetType = "exclude"
)

// Subscriber is a single SMS recipient tracked by phone number.
type Subscriber struct {
	ID                string
	PhoneNumber       string
	IsActive          bool
	JoinedAt          time.Time
	LastReadAt        *time.Time
	JoinedViaKeyword  *string
	NotifierThreadRef *string
}

// SubscriberList is a named grouping of subscribers.
type SubscriberList struct {
	ID          string
	Name        string
	Description *string
	CreatedAt   time.Time
}

// ListMembership ties a subscriber to a list.
type ListMembership struct {
	SubscriberID string
	ListID       string
	JoinedAt     time.Time
	JoinedVia    string
}

// SignupKeyword is a case-insensitive opt-in trigger.
type SignupKeyword struct {
	ID           string
	Keyword      string
	AutoResponse string
	IsActive     bool
	ListID       *string
	CreatedAt    time.Time
}

// Message is a single inbound or outbound SMS record.
type Message struct {
	ID                string
	PhoneNumber       string
	Content           string
	Direction         Direction
	CreatedAt         time.Time
	BroadcastID       *string
	ProviderMessageID *string
	DeliveryStatus    DeliveryStatus
}

// Broadcast is one operator-initiated campaign send.
type Broadcast struct {
	ID         string
	Name       *string
	Message    string
	SentCount  int
	TotalCost  float64
	TargetAll  bool
	CreatedAt  time.Time
}

// BroadcastTarget records an include/exclude list attached to a Broadcast.
type BroadcastTarget struct {
	BroadcastID string
	ListID      string
	Type        TargetType
}

// Link is a minted short code tied to a broadcast and an original URL.
type Link struct {
	ID          string
	BroadcastID string
	OriginalURL string
	ShortCode   string
}

// LinkClick records one resolution of a short code.
type LinkClick struct {
	ID           string
	LinkID       string
	SubscriberID *string
	ClickedAt    time.Time
}

// AppConfig is the singleton configuration row.
type AppConfig struct {
	DefaultWelcomeMessage string
	LegacyOptInKeyword    string
	LegacyOptInResponse   string
	LegacyOptOutResponse  string
	LegacyUnknownResponse string
}
