package catalog

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"

	"github.com/jfloresavalos/InvBF/internal/inventory"
)

// Codec names the compression applied to a persisted catalog.
type Codec string

const (
	CodecSnappy Codec = "snappy"
	CodecZstd   Codec = "zstd"
	CodecLZ4    Codec = "lz4"
	CodecNone   Codec = "none"
)

var (
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic    = []byte{0x04, 0x22, 0x4d, 0x18}
)

// ParseCodec maps a config value to a Codec. Empty means snappy.
func ParseCodec(value string) (Codec, error) {
	switch c := Codec(strings.ToLower(strings.TrimSpace(value))); c {
	case "":
		return CodecSnappy, nil
	case CodecSnappy, CodecZstd, CodecLZ4, CodecNone:
		return c, nil
	default:
		return "", &inventory.ValidationError{Field: "catalog_codec", Reason: fmt.Sprintf("unknown codec %q", value)}
	}
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// encode compresses raw with codec.
func encode(codec Codec, raw []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecZstd:
		enc, _, err := zstdCoders()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	case CodecSnappy, "":
		var buf bytes.Buffer
		w := snappy.NewBufferedWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("snappy write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("snappy close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
}

// decode sniffs the payload format and returns the uncompressed bytes. Plain
// JSON passes through untouched.
func decode(payload []byte) ([]byte, error) {
	switch {
	case len(payload) == 0:
		return nil, fmt.Errorf("%w: empty payload", inventory.ErrCorruptPayload)
	case bytes.HasPrefix(payload, snappyMagic):
		out, err := io.ReadAll(snappy.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("%w: snappy: %v", inventory.ErrCorruptPayload, err)
		}
		return out, nil
	case bytes.HasPrefix(payload, zstdMagic):
		_, dec, err := zstdCoders()
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", inventory.ErrCorruptPayload, err)
		}
		return out, nil
	case bytes.HasPrefix(payload, lz4Magic):
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", inventory.ErrCorruptPayload, err)
		}
		return out, nil
	}
	if trimmed := bytes.TrimLeft(payload, " \t\r\n"); len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return payload, nil
	}
	return nil, fmt.Errorf("%w: unrecognized format", inventory.ErrCorruptPayload)
}
