package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fathima-sithara/marketchat/internal/apperr"
	"github.com/fathima-sithara/marketchat/internal/bridge"
	"github.com/fathima-sithara/marketchat/internal/events"
	"github.com/fathima-sithara/marketchat/internal/identity"
	"github.com/fathima-sithara/marketchat/internal/kafka"
	"github.com/fathima-sithara/marketchat/internal/listing"
	"github.com/fathima-sithara/marketchat/internal/metrics"
	"github.com/fathima-sithara/marketchat/internal/models"
	"github.com/fathima-sithara/marketchat/internal/repository"
)

// ChatService wires the room registry, message store, broadcast bridge
// and external collaborators into the operations the API and websocket
// gateway expose. All collaborators arrive through the constructor.
type ChatService struct {
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	summaries repository.SummaryRepository
	bridge    bridge.Bridge
	listings  listing.Store
	directory identity.Directory
	events    *events.Publisher
	producer  *kafka.Producer
	log       *zap.SugaredLogger

	publishMaxElapsed time.Duration
}

type Deps struct {
	Rooms     repository.RoomRepository
	Messages  repository.MessageRepository
	Summaries repository.SummaryRepository
	Bridge    bridge.Bridge
	Listings  listing.Store
	Directory identity.Directory
	Events    *events.Publisher // optional
	Producer  *kafka.Producer   // optional
	Log       *zap.SugaredLogger
}

func New(d Deps) *ChatService {
	return &ChatService{
		rooms:             d.Rooms,
		messages:          d.Messages,
		summaries:         d.Summaries,
		bridge:            d.Bridge,
		listings:          d.Listings,
		directory:         d.Directory,
		events:            d.Events,
		producer:          d.Producer,
		log:               d.Log,
		publishMaxElapsed: 3 * time.Second,
	}
}

// GetOrCreateRoom opens (or returns) the negotiation room between buyer
// and seller over a listing. Creation is idempotent on the triple.
func (s *ChatService) GetOrCreateRoom(ctx context.Context, listingID, buyerID, sellerID string) (*models.Room, error) {
	if buyerID == sellerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", apperr.ErrInvalidArgument)
	}
	exists, err := s.listings.ListingExists(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("listing lookup: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: listing %s", apperr.ErrNotFound, listingID)
	}

	room, created, err := s.rooms.GetOrCreate(ctx, listingID, buyerID, sellerID)
	if err != nil {
		return nil, err
	}
	if created && s.events != nil {
		s.events.RoomCreated(events.RoomCreatedEvent{
			RoomID:    room.ID,
			ListingID: room.ListingID,
			BuyerID:   room.BuyerID,
			SellerID:  room.SellerID,
			CreatedAt: room.CreatedAt,
		})
	}
	return room, nil
}

// SendMessage durably appends the message, then fans it out over the
// bridge. A broadcast failure after retries surfaces as
// ErrBrokerUnavailable together with the stored message: the recipient
// catches up on the next history fetch, nothing is lost or rolled back.
func (s *ChatService) SendMessage(ctx context.Context, roomID, senderID string, body, attachment *string, kind models.MessageKind) (*models.Message, error) {
	msg, err := s.messages.Append(ctx, roomID, senderID, body, attachment, kind)
	if err != nil {
		return nil, err
	}
	metrics.MessagesPersisted.Inc()

	env := s.envelope(ctx, msg)
	if err := s.publishWithRetry(ctx, env); err != nil {
		metrics.PublishFailures.Inc()
		s.log.Warnw("bridge publish failed, message stored", "room_id", roomID, "message_id", msg.ID, "err", err)
		return msg, err
	}

	s.emitMessageSent(env)
	return msg, nil
}

func (s *ChatService) envelope(ctx context.Context, msg *models.Message) *bridge.Envelope {
	name, err := s.directory.DisplayName(ctx, msg.SenderID)
	if err != nil || name == "" {
		name = msg.SenderID
	}
	return &bridge.Envelope{
		MessageID:         msg.ID,
		RoomID:            msg.RoomID,
		SenderID:          msg.SenderID,
		SenderDisplayName: name,
		Body:              msg.Body,
		AttachmentURL:     msg.AttachmentURL,
		Kind:              msg.Kind,
		SentAt:            msg.SentAt,
	}
}

func (s *ChatService) publishWithRetry(ctx context.Context, env *bridge.Envelope) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.publishMaxElapsed
	err := backoff.Retry(func() error {
		return s.bridge.Publish(ctx, env)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, apperr.ErrBrokerUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", apperr.ErrBrokerUnavailable, err)
	}
	return nil
}

func (s *ChatService) emitMessageSent(env *bridge.Envelope) {
	if s.producer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.producer.PublishMessageSent(ctx, env.RoomID, env); err != nil {
			s.log.Warnw("kafka message.sent", "room_id", env.RoomID, "err", err)
		}
	}()
}

// ListMessages returns the room's history visible to the viewer, oldest
// first.
func (s *ChatService) ListMessages(ctx context.Context, roomID, viewerID string) ([]*models.Message, error) {
	return s.messages.ListVisible(ctx, roomID, viewerID)
}

// MarkRead clears the viewer's unread state for the room. Idempotent.
func (s *ChatService) MarkRead(ctx context.Context, roomID, viewerID string) error {
	return s.messages.MarkRead(ctx, roomID, viewerID)
}

// LeaveRoom hides the room's history for the caller's side. When both
// participants have left, the room closes and a room.closed event goes
// out.
func (s *ChatService) LeaveRoom(ctx context.Context, roomID, viewerID string) error {
	closed, err := s.messages.LeaveRoom(ctx, roomID, viewerID)
	if err != nil {
		return err
	}
	if closed && s.events != nil {
		s.events.RoomClosed(events.RoomClosedEvent{RoomID: roomID, ClosedAt: time.Now().UTC()})
	}
	return nil
}

// CheckParticipant verifies userID belongs to the room; used by the
// gateway before a room subscription is accepted.
func (s *ChatService) CheckParticipant(ctx context.Context, roomID, userID string) error {
	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.Participant(userID) {
		return fmt.Errorf("%w: user %s in room %s", apperr.ErrForbidden, userID, roomID)
	}
	return nil
}

// RoomSummaries lists the caller's rooms with unread counts and resolved
// counterpart names, most recent activity first.
func (s *ChatService) RoomSummaries(ctx context.Context, userID string) ([]*models.RoomSummary, error) {
	sums, err := s.summaries.RoomSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sum := range sums {
		name, err := s.directory.DisplayName(ctx, sum.CounterpartID)
		if err != nil || name == "" {
			name = sum.CounterpartID
		}
		sum.CounterpartName = name
	}
	return sums, nil
}
