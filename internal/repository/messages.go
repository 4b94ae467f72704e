package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fathima-sithara/marketchat/internal/apperr"
	"github.com/fathima-sithara/marketchat/internal/models"
)

// MessageRepository is the durable message store: append with receiver
// resolution, per-viewer visibility, read accounting and per-side
// soft delete. It performs no network fan-out; publishing is the
// caller's explicit next step so a persistence failure can never
// produce a phantom broadcast.
type MessageRepository interface {
	Append(ctx context.Context, roomID, senderID string, body, attachment *string, kind models.MessageKind) (*models.Message, error)
	ListVisible(ctx context.Context, roomID, viewerID string) ([]*models.Message, error)
	MarkRead(ctx context.Context, roomID, viewerID string) error
	LeaveRoom(ctx context.Context, roomID, viewerID string) (closed bool, err error)
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) room(tx *gorm.DB, roomID, userID string) (*models.Room, error) {
	var room models.Room
	err := tx.First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: room %s", apperr.ErrNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}
	if !room.Participant(userID) {
		return nil, fmt.Errorf("%w: user %s in room %s", apperr.ErrNotAParticipant, userID, roomID)
	}
	return &room, nil
}

// Append persists one message and refreshes the room's last-message cache
// inside a single transaction. The receiver is the room's other
// participant, resolved here at write time.
func (r *messageRepo) Append(ctx context.Context, roomID, senderID string, body, attachment *string, kind models.MessageKind) (*models.Message, error) {
	switch kind {
	case models.KindText, models.KindImage:
		if body == nil && attachment == nil {
			return nil, fmt.Errorf("%w: message needs a body or an attachment", apperr.ErrInvalidArgument)
		}
	case models.KindSystem:
		if body == nil {
			return nil, fmt.Errorf("%w: system message needs a body", apperr.ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", apperr.ErrInvalidArgument, kind)
	}

	var msg *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := r.room(tx, roomID, senderID)
		if err != nil {
			return err
		}
		m := models.Message{
			ID:            uuid.NewString(),
			RoomID:        room.ID,
			SenderID:      senderID,
			ReceiverID:    room.Counterpart(senderID),
			Body:          body,
			AttachmentURL: attachment,
			Kind:          kind,
			SentAt:        time.Now().UTC(),
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		err = tx.Model(&models.Room{}).
			Where("id = ?", room.ID).
			Updates(map[string]interface{}{
				"last_message":    m.Summary(),
				"last_message_at": m.SentAt,
			}).Error
		if err != nil {
			return err
		}
		msg = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListVisible returns the room's messages for one viewer, oldest first.
// SYSTEM messages are always shown; TEXT and IMAGE messages are dropped
// once the viewer's own hidden flag is set. Ties on sent_at resolve in
// insertion order.
func (r *messageRepo) ListVisible(ctx context.Context, roomID, viewerID string) ([]*models.Message, error) {
	db := r.db.WithContext(ctx)
	if _, err := r.room(db, roomID, viewerID); err != nil {
		return nil, err
	}
	var msgs []*models.Message
	err := db.
		Where("room_id = ?", roomID).
		Where(
			db.Where("kind = ?", models.KindSystem).
				Or("sender_id = ? AND hidden_for_sender = ?", viewerID, false).
				Or("receiver_id = ? AND hidden_for_receiver = ?", viewerID, false),
		).
		Order("sent_at ASC, seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead flips read on everything addressed to the viewer. Read only
// ever transitions false -> true, so repeated calls commute.
func (r *messageRepo) MarkRead(ctx context.Context, roomID, viewerID string) error {
	db := r.db.WithContext(ctx)
	if _, err := r.room(db, roomID, viewerID); err != nil {
		return err
	}
	return db.Model(&models.Message{}).
		Where("room_id = ? AND receiver_id = ? AND is_read = ?", roomID, viewerID, false).
		Update("is_read", true).Error
}

// LeaveRoom hides every message in the room for the caller's side and,
// when no message remains visible to either participant, closes the room.
// The both-hidden check runs inside the same transaction that applied the
// flag updates, so two concurrent leaves cannot race past it. SYSTEM
// messages are exempt from hiding and from the close check.
func (r *messageRepo) LeaveRoom(ctx context.Context, roomID, viewerID string) (bool, error) {
	var closed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room, err := r.room(tx, roomID, viewerID)
		if err != nil {
			return err
		}
		err = tx.Model(&models.Message{}).
			Where("room_id = ? AND kind <> ? AND sender_id = ? AND hidden_for_sender = ?",
				roomID, models.KindSystem, viewerID, false).
			Update("hidden_for_sender", true).Error
		if err != nil {
			return err
		}
		err = tx.Model(&models.Message{}).
			Where("room_id = ? AND kind <> ? AND receiver_id = ? AND hidden_for_receiver = ?",
				roomID, models.KindSystem, viewerID, false).
			Update("hidden_for_receiver", true).Error
		if err != nil {
			return err
		}

		var remaining int64
		err = tx.Model(&models.Message{}).
			Where("room_id = ? AND kind <> ? AND (hidden_for_sender = ? OR hidden_for_receiver = ?)",
				roomID, models.KindSystem, false, false).
			Count(&remaining).Error
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := tx.Model(&models.Room{}).Where("id = ?", room.ID).Update("closed", true).Error; err != nil {
				return err
			}
			closed = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return closed, nil
}
