package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/fathima-sithara/marketchat/internal/apperr"
	"github.com/fathima-sithara/marketchat/internal/models"
)

func seedRoom(t *testing.T, rooms RoomRepository) *models.Room {
	t.Helper()
	room, _, err := rooms.GetOrCreate(context.Background(), "listing-42", "buyer-7", "seller-9")
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

func TestAppendResolvesReceiverAndUpdatesCache(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	m, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("hi"), nil, models.KindText)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if m.ReceiverID != "seller-9" {
		t.Fatalf("receiver = %s, want seller-9", m.ReceiverID)
	}
	if m.IsRead || m.HiddenForSender || m.HiddenForReceiver {
		t.Fatal("new message must start unread and unhidden")
	}

	got, err := rooms.GetByID(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage != "hi" {
		t.Fatalf("last message cache = %q, want %q", got.LastMessage, "hi")
	}
	if !got.LastMessageAt.Equal(m.SentAt) {
		t.Fatalf("last message at = %v, want %v", got.LastMessageAt, m.SentAt)
	}
}

func TestAppendImageUsesPlaceholder(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	if _, err := msgs.Append(ctx, room.ID, "seller-9", nil, strptr("https://img.example/x.jpg"), models.KindImage); err != nil {
		t.Fatalf("append image: %v", err)
	}
	got, err := rooms.GetByID(ctx, room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage != models.ImagePlaceholder {
		t.Fatalf("last message cache = %q, want placeholder", got.LastMessage)
	}
}

func TestAppendValidation(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	if _, err := msgs.Append(ctx, "no-such-room", "buyer-7", strptr("x"), nil, models.KindText); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown room: want ErrNotFound, got %v", err)
	}
	if _, err := msgs.Append(ctx, room.ID, "stranger", strptr("x"), nil, models.KindText); !errors.Is(err, apperr.ErrNotAParticipant) {
		t.Fatalf("stranger: want ErrNotAParticipant, got %v", err)
	}
	if _, err := msgs.Append(ctx, room.ID, "buyer-7", nil, nil, models.KindText); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("empty text: want ErrInvalidArgument, got %v", err)
	}
	if _, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("x"), nil, "VOICE"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("unknown kind: want ErrInvalidArgument, got %v", err)
	}
}

func TestListVisibleOrderingIsStable(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	want := []string{}
	for _, body := range []string{"m1", "m2", "m3"} {
		m, err := msgs.Append(ctx, room.ID, "buyer-7", strptr(body), nil, models.KindText)
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, m.ID)
	}

	for _, viewer := range []string{"buyer-7", "seller-9"} {
		got, err := msgs.ListVisible(ctx, room.ID, viewer)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(want) {
			t.Fatalf("viewer %s: got %d messages, want %d", viewer, len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i] {
				t.Fatalf("viewer %s: position %d = %s, want %s", viewer, i, got[i].ID, want[i])
			}
		}
	}
}

func TestListVisibleAccessChecks(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	if _, err := msgs.ListVisible(ctx, "no-such-room", "buyer-7"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := msgs.ListVisible(ctx, room.ID, "stranger"); !errors.Is(err, apperr.ErrNotAParticipant) {
		t.Fatalf("want ErrNotAParticipant, got %v", err)
	}
}

func TestHiddenMessagesFilteredPerSide(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	if _, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("offer"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("room opened"), nil, models.KindSystem); err != nil {
		t.Fatal(err)
	}

	// buyer leaves: their side of history disappears for them only
	if _, err := msgs.LeaveRoom(ctx, room.ID, "buyer-7"); err != nil {
		t.Fatal(err)
	}

	buyerView, err := msgs.ListVisible(ctx, room.ID, "buyer-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(buyerView) != 1 || buyerView[0].Kind != models.KindSystem {
		t.Fatalf("buyer should only see the system message, got %d messages", len(buyerView))
	}

	sellerView, err := msgs.ListVisible(ctx, room.ID, "seller-9")
	if err != nil {
		t.Fatal(err)
	}
	if len(sellerView) != 2 {
		t.Fatalf("seller should still see both messages, got %d", len(sellerView))
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	if _, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("hi"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := msgs.MarkRead(ctx, room.ID, "seller-9"); err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
		var unread int64
		db.Model(&models.Message{}).
			Where("room_id = ? AND receiver_id = ? AND is_read = ?", room.ID, "seller-9", false).
			Count(&unread)
		if unread != 0 {
			t.Fatalf("after mark read #%d: %d unread, want 0", i+1, unread)
		}
	}

	// read state of the sender's inbound messages is untouched
	var senderUnread int64
	db.Model(&models.Message{}).
		Where("room_id = ? AND receiver_id = ? AND is_read = ?", room.ID, "buyer-7", false).
		Count(&senderUnread)
	if senderUnread != 0 {
		t.Fatalf("buyer had no inbound messages, count = %d", senderUnread)
	}
}

func TestLeaveRoomClosesOnlyWhenBothLeft(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	room := seedRoom(t, rooms)
	ctx := context.Background()

	if _, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("hi"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}

	closed, err := msgs.LeaveRoom(ctx, room.ID, "buyer-7")
	if err != nil {
		t.Fatal(err)
	}
	if closed {
		t.Fatal("one participant leaving must not close the room")
	}
	got, _ := rooms.GetByID(ctx, room.ID)
	if got.Closed {
		t.Fatal("room closed after a single leave")
	}

	closed, err = msgs.LeaveRoom(ctx, room.ID, "seller-9")
	if err != nil {
		t.Fatal(err)
	}
	if !closed {
		t.Fatal("room should close once both sides left")
	}
	got, _ = rooms.GetByID(ctx, room.ID)
	if !got.Closed {
		t.Fatal("room not marked closed")
	}

	// leaving again after closure is a no-op
	if _, err := msgs.LeaveRoom(ctx, room.ID, "seller-9"); err != nil {
		t.Fatalf("repeat leave: %v", err)
	}
}
