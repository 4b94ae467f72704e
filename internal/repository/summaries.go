package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/fathima-sithara/marketchat/internal/models"
)

// SummaryRepository produces the per-viewer room listing projection.
// Read-only; it never touches read or hidden state.
type SummaryRepository interface {
	RoomSummaries(ctx context.Context, userID string) ([]*models.RoomSummary, error)
}

type summaryRepo struct {
	db *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepo{db: db}
}

// RoomSummaries lists every room the user participates in, most recent
// last-message first. Rooms the user has fully left (every non-system
// message hidden for their side) are omitted; freshly created rooms with
// no messages yet are kept.
func (r *summaryRepo) RoomSummaries(ctx context.Context, userID string) ([]*models.RoomSummary, error) {
	db := r.db.WithContext(ctx)

	var rooms []*models.Room
	err := db.
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}

	if len(rooms) == 0 {
		return []*models.RoomSummary{}, nil
	}

	// one grouped pass over messages covers every room; rooms absent from
	// the result simply have no messages yet
	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	type roomCounts struct {
		RoomID  string
		Total   int64
		Visible int64
		Unread  int64
	}
	var counts []roomCounts
	err = db.Model(&models.Message{}).
		Select(`room_id,
			count(case when kind <> ? then 1 end) as total,
			count(case when kind = ?
				or (sender_id = ? and hidden_for_sender = ?)
				or (receiver_id = ? and hidden_for_receiver = ?) then 1 end) as visible,
			count(case when receiver_id = ? and is_read = ? and hidden_for_receiver = ? then 1 end) as unread`,
			models.KindSystem,
			models.KindSystem, userID, false, userID, false,
			userID, false, false).
		Where("room_id IN ?", ids).
		Group("room_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byRoom := make(map[string]roomCounts, len(counts))
	for _, rc := range counts {
		byRoom[rc.RoomID] = rc
	}

	out := make([]*models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		rc := byRoom[room.ID]
		if rc.Total > 0 && rc.Visible == 0 {
			// the user left this conversation
			continue
		}
		out = append(out, &models.RoomSummary{
			RoomID:        room.ID,
			ListingID:     room.ListingID,
			CounterpartID: room.Counterpart(userID),
			LastMessage:   room.LastMessage,
			LastMessageAt: room.LastMessageAt,
			UnreadCount:   rc.Unread,
			Closed:        room.Closed,
		})
	}
	return out, nil
}
