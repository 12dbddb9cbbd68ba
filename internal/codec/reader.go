package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// payloadReader walks a little-endian binary event payload field by field.
// All reads fail once the payload is exhausted; a short payload is a decode
// error, never a partial field.
type payloadReader struct {
	buf []byte
	off int
}

func newPayloadReader(buf []byte) *payloadReader {
	return &payloadReader{buf: buf}
}

func (r *payloadReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("payload truncated: need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *payloadReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *payloadReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *payloadReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *payloadReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *payloadReader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

// pubkey reads a 32-byte public key and renders it base58.
func (r *payloadReader) pubkey() (string, error) {
	b, err := r.take(32)
	if err != nil {
		return "", err
	}
	return base58.Encode(b), nil
}

// str reads a u32-length-prefixed UTF-8 string.
func (r *payloadReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if n > uint32(len(r.buf)-r.off) {
		return "", fmt.Errorf("string length %d exceeds remaining payload %d", n, len(r.buf)-r.off)
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// enum reads a u8 variant tag and normalizes it to the variant's name.
func (r *payloadReader) enum(variants []string) (string, error) {
	tag, err := r.u8()
	if err != nil {
		return "", err
	}
	if int(tag) >= len(variants) {
		return "", fmt.Errorf("enum tag %d out of range (%d variants)", tag, len(variants))
	}
	return variants[tag], nil
}
