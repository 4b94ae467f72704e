package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fathima-sithara/marketchat/internal/apperr"
	"github.com/fathima-sithara/marketchat/internal/models"
)

// RoomRepository is the room registry: identity, idempotent creation and
// closure of negotiation rooms.
type RoomRepository interface {
	// GetOrCreate returns the room for the triple, inserting it on first
	// contact. created reports whether this call performed the insert.
	GetOrCreate(ctx context.Context, listingID, buyerID, sellerID string) (room *models.Room, created bool, err error)
	GetByID(ctx context.Context, roomID string) (*models.Room, error)
	Close(ctx context.Context, roomID string) error
}

type roomRepo struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepo{db: db}
}

// Two near-simultaneous first-contact attempts are serialized by the
// unique index on the triple: the losing insert is a no-op and both
// callers read back the same row.
func (r *roomRepo) GetOrCreate(ctx context.Context, listingID, buyerID, sellerID string) (*models.Room, bool, error) {
	if listingID == "" || buyerID == "" || sellerID == "" {
		return nil, false, fmt.Errorf("%w: empty id", apperr.ErrInvalidArgument)
	}
	if buyerID == sellerID {
		return nil, false, fmt.Errorf("%w: buyer and seller must differ", apperr.ErrInvalidArgument)
	}

	room := models.Room{
		ID:        uuid.NewString(),
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		CreatedAt: time.Now().UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "listing_id"}, {Name: "buyer_id"}, {Name: "seller_id"}},
			DoNothing: true,
		}).
		Create(&room)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0

	var out models.Room
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND buyer_id = ? AND seller_id = ?", listingID, buyerID, sellerID).
		First(&out).Error
	if err != nil {
		return nil, false, err
	}
	return &out, created, nil
}

func (r *roomRepo) GetByID(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: room %s", apperr.ErrNotFound, roomID)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Close marks the room closed. Idempotent; messages are never deleted.
func (r *roomRepo) Close(ctx context.Context, roomID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("closed", true)
	return res.Error
}
