package bridge

import (
	"context"
	"testing"
)

func TestMemoryBridgeFanOut(t *testing.T) {
	b := NewMemoryBridge()
	ctx := context.Background()

	var gotA, gotB []string
	cancelA, err := b.Subscribe("room-1", func(env *Envelope) { gotA = append(gotA, env.MessageID) })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Subscribe("room-1", func(env *Envelope) { gotB = append(gotB, env.MessageID) }); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"m1", "m2", "m3"} {
		if err := b.Publish(ctx, &Envelope{MessageID: id, RoomID: "room-1"}); err != nil {
			t.Fatal(err)
		}
	}

	for name, got := range map[string][]string{"A": gotA, "B": gotB} {
		if len(got) != 3 {
			t.Fatalf("subscriber %s got %d envelopes, want 3", name, len(got))
		}
		for i, want := range []string{"m1", "m2", "m3"} {
			if got[i] != want {
				t.Fatalf("subscriber %s out of order at %d: %s", name, i, got[i])
			}
		}
	}

	cancelA()
	if err := b.Publish(ctx, &Envelope{MessageID: "m4", RoomID: "room-1"}); err != nil {
		t.Fatal(err)
	}
	if len(gotA) != 3 {
		t.Fatal("cancelled subscriber must not receive")
	}
	if len(gotB) != 4 {
		t.Fatalf("remaining subscriber got %d envelopes, want 4", len(gotB))
	}
}

func TestMemoryBridgeTopicsAreIsolated(t *testing.T) {
	b := NewMemoryBridge()

	var got []string
	if _, err := b.Subscribe("room-1", func(env *Envelope) { got = append(got, env.MessageID) }); err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(context.Background(), &Envelope{MessageID: "other", RoomID: "room-2"}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatal("subscriber received an envelope from a foreign room")
	}
}

func TestTopicNaming(t *testing.T) {
	if Topic("abc") != "room:abc" {
		t.Fatalf("topic = %s", Topic("abc"))
	}
}
