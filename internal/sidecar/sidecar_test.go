package sidecar

import (
	"testing"

	"github.com/frkn-dev/pony/internal/model"
)

func token(s string) *string { return &s }

func TestSidecar_UpsertThenAuthenticate(t *testing.T) {
	s := New("dev")
	s.Upsert("conn-1", "tok-1")

	id, ok := s.Authenticate("tok-1", "1.2.3.4:9000", 0)
	if !ok || id != "conn-1" {
		t.Fatalf("expected conn-1/true, got %s/%v", id, ok)
	}
}

func TestSidecar_AuthenticateUnknownToken(t *testing.T) {
	s := New("dev")
	if _, ok := s.Authenticate("nope", "1.2.3.4:9000", 0); ok {
		t.Fatal("expected miss on unknown token")
	}
}

func TestSidecar_UpsertReplacesOldToken(t *testing.T) {
	s := New("dev")
	s.Upsert("conn-1", "tok-1")
	s.Upsert("conn-1", "tok-2")

	if _, ok := s.Authenticate("tok-1", "", 0); ok {
		t.Fatal("expected old token to be retired after replacement")
	}
	if id, ok := s.Authenticate("tok-2", "", 0); !ok || id != "conn-1" {
		t.Fatalf("expected conn-1/true for new token, got %s/%v", id, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after replacement, got %d", s.Len())
	}
}

func TestSidecar_RemoveIsIdempotent(t *testing.T) {
	s := New("dev")
	s.Upsert("conn-1", "tok-1")

	s.Remove("conn-1")
	s.Remove("conn-1") // second Remove on an absent entry must not panic

	if s.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", s.Len())
	}
	if _, ok := s.Authenticate("tok-1", "", 0); ok {
		t.Fatal("expected removed token to no longer authenticate")
	}
}

func TestSidecar_ApplyMessage_IgnoresNonHysteria2(t *testing.T) {
	s := New("dev")
	s.applyMessage(model.Message{
		Action:   model.ActionCreate,
		ConnID:   "conn-1",
		ProtoTag: model.ProtoShadowsocks,
	})

	if s.Len() != 0 {
		t.Fatalf("expected shadowsocks create to be a no-op, got %d entries", s.Len())
	}
}

func TestSidecar_ApplyMessage_CreateAndDelete(t *testing.T) {
	s := New("dev")
	s.applyMessage(model.Message{
		Action:         model.ActionCreate,
		ConnID:         "conn-1",
		ProtoTag:       model.ProtoHysteria2,
		Hysteria2Token: token("tok-1"),
	})
	if id, ok := s.Authenticate("tok-1", "", 0); !ok || id != "conn-1" {
		t.Fatalf("expected conn-1/true after create, got %s/%v", id, ok)
	}

	s.applyMessage(model.Message{
		Action:   model.ActionDelete,
		ConnID:   "conn-1",
		ProtoTag: model.ProtoHysteria2,
	})
	if _, ok := s.Authenticate("tok-1", "", 0); ok {
		t.Fatal("expected token to be gone after delete")
	}
}

func TestSidecar_ApplyMessage_CreateWithNilTokenIsNoop(t *testing.T) {
	s := New("dev")
	s.applyMessage(model.Message{
		Action:   model.ActionCreate,
		ConnID:   "conn-1",
		ProtoTag: model.ProtoHysteria2,
	})
	if s.Len() != 0 {
		t.Fatalf("expected create with nil token to be a no-op, got %d entries", s.Len())
	}
}

func TestSidecar_SnapshotRoundTrip(t *testing.T) {
	s := New("dev")
	s.Upsert("conn-1", "tok-1")
	s.Upsert("conn-2", "tok-2")

	entries := s.snapshotEntries()

	s2 := New("dev")
	s2.loadEntries(entries)

	if s2.Len() != 2 {
		t.Fatalf("expected 2 entries after load, got %d", s2.Len())
	}
	if id, ok := s2.Authenticate("tok-2", "", 0); !ok || id != "conn-2" {
		t.Fatalf("expected conn-2/true, got %s/%v", id, ok)
	}
}
