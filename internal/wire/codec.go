// Package wire implements the binary envelope for pub/sub event batches: a
// stable 4-byte version prefix followed by a length-prefixed sequence of
// encoded model.Message values. The format is deterministic (field order and
// widths are fixed) so that two processes encoding the same batch produce
// byte-identical frames, matching the framing guarantee in the design notes
// even though the encoder itself is a plain binary.Write pipeline rather than
// a zero-copy archive format.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/frkn-dev/pony/internal/model"
)

// Version is the current batch wire format version.
const Version uint32 = 1

const maxFieldLen = 1 << 16 // guard against runaway allocations on decode

// ErrUnsupportedVersion is returned by DecodeBatch when the frame's version
// prefix does not match a version this build understands.
var ErrUnsupportedVersion = fmt.Errorf("wire: unsupported batch version")

// ErrChecksumMismatch is returned by DecodeBatch when the trailing xxh3
// checksum does not match the frame body, indicating truncation or
// corruption somewhere between the publisher and this subscriber.
var ErrChecksumMismatch = fmt.Errorf("wire: checksum mismatch")

// EncodeBatch serializes a batch into a single byte slice: version prefix,
// message count, each message length-prefixed, then a trailing 8-byte xxh3
// checksum of everything preceding it. The checksum lets a subscriber on a
// raw TCP pub/sub connection (no built-in frame integrity) detect a
// truncated or corrupted delivery instead of decoding garbage.
func EncodeBatch(batch model.Batch) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, Version); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(batch))); err != nil {
		return nil, err
	}
	for i := range batch {
		enc, err := encodeMessage(&batch[i])
		if err != nil {
			return nil, fmt.Errorf("wire: encode message %d: %w", i, err)
		}
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(enc))); err != nil {
			return nil, err
		}
		buf.Write(enc)
	}
	sum := xxh3.Hash(buf.Bytes())
	if err := binary.Write(&buf, binary.BigEndian, sum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBatch parses a frame produced by EncodeBatch. On a version mismatch
// it returns ErrUnsupportedVersion without attempting to parse the body; on
// a checksum mismatch it returns ErrChecksumMismatch.
func DecodeBatch(frame []byte) (model.Batch, error) {
	if len(frame) < 8 {
		return nil, fmt.Errorf("wire: frame too short for checksum trailer")
	}
	body, trailer := frame[:len(frame)-8], frame[len(frame)-8:]
	if xxh3.Hash(body) != binary.BigEndian.Uint64(trailer) {
		return nil, ErrChecksumMismatch
	}

	r := bytes.NewReader(body)

	var version uint32
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("wire: read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, version, Version)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("wire: read count: %w", err)
	}

	batch := make(model.Batch, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("wire: read message %d length: %w", i, err)
		}
		if n > maxFieldLen*8 {
			return nil, fmt.Errorf("wire: message %d too large (%d bytes)", i, n)
		}
		enc := make([]byte, n)
		if _, err := io.ReadFull(r, enc); err != nil {
			return nil, fmt.Errorf("wire: read message %d body: %w", i, err)
		}
		msg, err := decodeMessage(enc)
		if err != nil {
			return nil, fmt.Errorf("wire: decode message %d: %w", i, err)
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

func encodeMessage(m *model.Message) ([]byte, error) {
	var buf bytes.Buffer

	writeString(&buf, m.ConnID)
	writeString(&buf, string(m.Action))
	writeString(&buf, string(m.ProtoTag))

	var flags byte
	if m.Password != nil {
		flags |= 1 << 0
	}
	if m.WgParam != nil {
		flags |= 1 << 1
	}
	if m.Hysteria2Token != nil {
		flags |= 1 << 2
	}
	if m.ExpiresAt != nil {
		flags |= 1 << 3
	}
	if m.SubscriptionID != nil {
		flags |= 1 << 4
	}
	buf.WriteByte(flags)

	if m.Password != nil {
		writeString(&buf, *m.Password)
	}
	if m.WgParam != nil {
		writeString(&buf, m.WgParam.Keys.Priv)
		writeString(&buf, m.WgParam.Keys.Pub)
		writeString(&buf, m.WgParam.Address.String())
	}
	if m.Hysteria2Token != nil {
		writeString(&buf, *m.Hysteria2Token)
	}
	if m.ExpiresAt != nil {
		if err := binary.Write(&buf, binary.BigEndian, m.ExpiresAt.UnixNano()); err != nil {
			return nil, err
		}
	}
	if m.SubscriptionID != nil {
		writeString(&buf, *m.SubscriptionID)
	}

	return buf.Bytes(), nil
}

func decodeMessage(enc []byte) (model.Message, error) {
	r := bytes.NewReader(enc)
	var m model.Message

	connID, err := readString(r)
	if err != nil {
		return m, fmt.Errorf("conn_id: %w", err)
	}
	m.ConnID = connID

	action, err := readString(r)
	if err != nil {
		return m, fmt.Errorf("action: %w", err)
	}
	m.Action = model.Action(action)

	protoTag, err := readString(r)
	if err != nil {
		return m, fmt.Errorf("proto_tag: %w", err)
	}
	m.ProtoTag = model.ProtoTag(protoTag)

	flags, err := r.ReadByte()
	if err != nil {
		return m, fmt.Errorf("flags: %w", err)
	}

	if flags&(1<<0) != 0 {
		s, err := readString(r)
		if err != nil {
			return m, fmt.Errorf("password: %w", err)
		}
		m.Password = &s
	}
	if flags&(1<<1) != 0 {
		priv, err := readString(r)
		if err != nil {
			return m, fmt.Errorf("wg priv: %w", err)
		}
		pub, err := readString(r)
		if err != nil {
			return m, fmt.Errorf("wg pub: %w", err)
		}
		addrStr, err := readString(r)
		if err != nil {
			return m, fmt.Errorf("wg address: %w", err)
		}
		addr, err := netip.ParseAddr(addrStr)
		if err != nil {
			return m, fmt.Errorf("wg address parse: %w", err)
		}
		m.WgParam = &model.WgParam{Keys: model.Keys{Priv: priv, Pub: pub}, Address: addr}
	}
	if flags&(1<<2) != 0 {
		s, err := readString(r)
		if err != nil {
			return m, fmt.Errorf("hysteria2 token: %w", err)
		}
		m.Hysteria2Token = &s
	}
	if flags&(1<<3) != 0 {
		var nanos int64
		if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
			return m, fmt.Errorf("expires_at: %w", err)
		}
		t := time.Unix(0, nanos).UTC()
		m.ExpiresAt = &t
	}
	if flags&(1<<4) != 0 {
		s, err := readString(r)
		if err != nil {
			return m, fmt.Errorf("subscription_id: %w", err)
		}
		m.SubscriptionID = &s
	}

	return m, nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > maxFieldLen {
		return "", fmt.Errorf("field length %d exceeds limit", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
