package wire

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/frkn-dev/pony/internal/model"
)

func strPtr(s string) *string { return &s }

func TestEncodeDecodeBatch_RoundTrip(t *testing.T) {
	expiry := time.Unix(1_700_000_000, 0).UTC()
	subID := "sub-1"
	batch := model.Batch{
		{
			ConnID:   "11111111-1111-1111-1111-111111111111",
			Action:   model.ActionCreate,
			ProtoTag: model.ProtoVmess,
		},
		{
			ConnID:   "22222222-2222-2222-2222-222222222222",
			Action:   model.ActionCreate,
			ProtoTag: model.ProtoShadowsocks,
			Password: strPtr("hunter2"),
		},
		{
			ConnID:   "33333333-3333-3333-3333-333333333333",
			Action:   model.ActionCreate,
			ProtoTag: model.ProtoWireguard,
			WgParam: &model.WgParam{
				Keys:    model.Keys{Priv: "cHJpdg==", Pub: "cHViCg=="},
				Address: netip.MustParseAddr("10.0.0.2"),
			},
			ExpiresAt:      &expiry,
			SubscriptionID: &subID,
		},
		{
			ConnID:         "44444444-4444-4444-4444-444444444444",
			Action:         model.ActionCreate,
			ProtoTag:       model.ProtoHysteria2,
			Hysteria2Token: strPtr("token-abc"),
		},
	}

	encoded, err := EncodeBatch(batch)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeBatch(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != len(batch) {
		t.Fatalf("expected %d messages, got %d", len(batch), len(decoded))
	}
	for i := range batch {
		if decoded[i].ConnID != batch[i].ConnID {
			t.Errorf("message %d: conn_id mismatch: %q != %q", i, decoded[i].ConnID, batch[i].ConnID)
		}
		if decoded[i].Action != batch[i].Action {
			t.Errorf("message %d: action mismatch", i)
		}
		if decoded[i].ProtoTag != batch[i].ProtoTag {
			t.Errorf("message %d: proto tag mismatch", i)
		}
	}
	if decoded[2].WgParam == nil || decoded[2].WgParam.Address != batch[2].WgParam.Address {
		t.Errorf("wg param round-trip mismatch")
	}
	if decoded[2].ExpiresAt == nil || !decoded[2].ExpiresAt.Equal(expiry) {
		t.Errorf("expires_at round-trip mismatch")
	}
	if decoded[3].Hysteria2Token == nil || *decoded[3].Hysteria2Token != "token-abc" {
		t.Errorf("hysteria2 token round-trip mismatch")
	}
}

func TestDecodeBatch_EmptyBatch(t *testing.T) {
	encoded, err := EncodeBatch(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeBatch(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty batch, got %d", len(decoded))
	}
}

func TestDecodeBatch_VersionMismatch(t *testing.T) {
	encoded, err := EncodeBatch(nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt the version prefix and re-seal the checksum trailer, so the
	// frame reaches the version check instead of failing the checksum.
	encoded[3] = 0xFF
	binary.BigEndian.PutUint64(encoded[len(encoded)-8:], xxh3.Hash(encoded[:len(encoded)-8]))

	_, err = DecodeBatch(encoded)
	if err == nil {
		t.Fatal("expected error for version mismatch")
	}
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeBatch_ChecksumMismatch(t *testing.T) {
	encoded, err := EncodeBatch(model.Batch{{ConnID: "x", Action: model.ActionCreate, ProtoTag: model.ProtoVmess}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Flip a bit in the middle of the body without touching the trailer.
	encoded[len(encoded)/2] ^= 0xFF

	_, err = DecodeBatch(encoded)
	if err != ErrChecksumMismatch {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecodeBatch_TruncatedFrame(t *testing.T) {
	encoded, err := EncodeBatch(model.Batch{{ConnID: "x", Action: model.ActionDelete, ProtoTag: model.ProtoVmess}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = DecodeBatch(encoded[:len(encoded)-2])
	if err == nil {
		t.Fatal("expected error for truncated frame")
	}
}
