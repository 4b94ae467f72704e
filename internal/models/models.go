package models

import "time"

type MessageKind string

const (
	KindText   MessageKind = "TEXT"
	KindImage  MessageKind = "IMAGE"
	KindSystem MessageKind = "SYSTEM"
)

// Placeholder used for the room's last-message cache when an image is sent.
const ImagePlaceholder = "[image]"

// Room is the persistent 1:1 negotiation context between a buyer and a
// seller over one listing. The (listing, buyer, seller) triple is unique.
type Room struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	ListingID     string    `gorm:"index:idx_room_triple,unique;not null" json:"listing_id"`
	BuyerID       string    `gorm:"index:idx_room_triple,unique;not null" json:"buyer_id"`
	SellerID      string    `gorm:"index:idx_room_triple,unique;not null" json:"seller_id"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	Closed        bool      `gorm:"not null;default:false" json:"closed"`
}

// Participant reports whether userID is the buyer or seller of the room.
func (r *Room) Participant(userID string) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

// Counterpart returns the other participant of the room. Callers must have
// verified membership first.
func (r *Room) Counterpart(userID string) string {
	if userID == r.BuyerID {
		return r.SellerID
	}
	return r.BuyerID
}

// Message is one unit of communication within a room. Receiver is resolved
// at write time from the room's current buyer/seller pair, which is
// immutable for the room's lifetime. Read and hidden flags only ever
// transition false -> true.
type Message struct {
	// Seq is the insertion-order key; ID is the stable identifier clients
	// dedupe on.
	Seq               int64       `gorm:"primaryKey;autoIncrement" json:"-"`
	ID                string      `gorm:"uniqueIndex;type:uuid;not null" json:"id"`
	RoomID            string      `gorm:"index;not null" json:"room_id"`
	SenderID          string      `gorm:"not null" json:"sender_id"`
	ReceiverID        string      `gorm:"not null" json:"receiver_id"`
	Body              *string     `json:"body,omitempty"`
	AttachmentURL     *string     `json:"attachment_url,omitempty"`
	Kind              MessageKind `gorm:"not null" json:"kind"`
	SentAt            time.Time   `gorm:"index" json:"sent_at"`
	IsRead            bool        `gorm:"not null;default:false" json:"is_read"`
	HiddenForSender   bool        `gorm:"not null;default:false" json:"-"`
	HiddenForReceiver bool        `gorm:"not null;default:false" json:"-"`
}

// Summary returns the text cached on the room as its last message.
func (m *Message) Summary() string {
	if m.Kind == KindImage {
		return ImagePlaceholder
	}
	if m.Body != nil {
		return *m.Body
	}
	return ""
}

// RoomSummary is the per-viewer projection returned by room listings.
// It is derived, never stored.
type RoomSummary struct {
	RoomID          string    `json:"room_id"`
	ListingID       string    `json:"listing_id"`
	CounterpartID   string    `json:"counterpart_id"`
	CounterpartName string    `json:"counterpart_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageAt   time.Time `json:"last_message_at"`
	UnreadCount     int64     `json:"unread_count"`
	Closed          bool      `json:"closed"`
}
