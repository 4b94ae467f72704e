package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fathima-sithara/marketchat/internal/models"
)

func TestRoomSummariesUnreadAndOrdering(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	sums := NewSummaryRepository(db)
	ctx := context.Background()

	older, _, err := rooms.GetOrCreate(ctx, "listing-1", "buyer-7", "seller-9")
	if err != nil {
		t.Fatal(err)
	}
	newer, _, err := rooms.GetOrCreate(ctx, "listing-2", "buyer-7", "seller-5")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := msgs.Append(ctx, older.ID, "seller-9", strptr("still for sale?"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond) // keep last_message_at distinct
	if _, err := msgs.Append(ctx, newer.ID, "buyer-7", strptr("I'll take it"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.Append(ctx, newer.ID, "seller-5", strptr("deal"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}

	out, err := sums.RoomSummaries(ctx, "buyer-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d summaries, want 2", len(out))
	}
	if out[0].RoomID != newer.ID {
		t.Fatal("most recently active room must come first")
	}
	if out[0].CounterpartID != "seller-5" || out[1].CounterpartID != "seller-9" {
		t.Fatalf("counterparts = %s, %s", out[0].CounterpartID, out[1].CounterpartID)
	}
	if out[0].UnreadCount != 1 {
		t.Fatalf("newer room unread = %d, want 1", out[0].UnreadCount)
	}
	if out[1].UnreadCount != 1 {
		t.Fatalf("older room unread = %d, want 1", out[1].UnreadCount)
	}
	if out[1].LastMessage != "still for sale?" {
		t.Fatalf("older room last message = %q", out[1].LastMessage)
	}

	if err := msgs.MarkRead(ctx, older.ID, "buyer-7"); err != nil {
		t.Fatal(err)
	}
	out, err = sums.RoomSummaries(ctx, "buyer-7")
	if err != nil {
		t.Fatal(err)
	}
	if out[1].UnreadCount != 0 {
		t.Fatalf("after mark read unread = %d, want 0", out[1].UnreadCount)
	}
}

func TestRoomSummariesExcludeLeftRooms(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	msgs := NewMessageRepository(db)
	sums := NewSummaryRepository(db)
	ctx := context.Background()

	room, _, err := rooms.GetOrCreate(ctx, "listing-1", "buyer-7", "seller-9")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.Append(ctx, room.ID, "buyer-7", strptr("hello"), nil, models.KindText); err != nil {
		t.Fatal(err)
	}
	if _, err := msgs.LeaveRoom(ctx, room.ID, "buyer-7"); err != nil {
		t.Fatal(err)
	}

	buyerRooms, err := sums.RoomSummaries(ctx, "buyer-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(buyerRooms) != 0 {
		t.Fatalf("buyer left, got %d summaries, want 0", len(buyerRooms))
	}

	sellerRooms, err := sums.RoomSummaries(ctx, "seller-9")
	if err != nil {
		t.Fatal(err)
	}
	if len(sellerRooms) != 1 {
		t.Fatalf("seller still participates, got %d summaries, want 1", len(sellerRooms))
	}
}

func TestRoomSummariesIncludeEmptyRooms(t *testing.T) {
	db := newTestDB(t)
	rooms := NewRoomRepository(db)
	sums := NewSummaryRepository(db)
	ctx := context.Background()

	if _, _, err := rooms.GetOrCreate(ctx, "listing-1", "buyer-7", "seller-9"); err != nil {
		t.Fatal(err)
	}
	out, err := sums.RoomSummaries(ctx, "seller-9")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d summaries, want 1", len(out))
	}
	if out[0].UnreadCount != 0 || out[0].LastMessage != "" {
		t.Fatal("empty room should have no unread and no last message")
	}
}
