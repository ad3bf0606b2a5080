package binary

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Encoder writes values in the Borsh serialization format used by Anchor
// programs for instruction arguments: fixed width little endian integers,
// one byte booleans, u32 length prefixed strings and byte vectors, and
// options tagged with a leading 0 (None) or 1 (Some) byte.
//
// Reference: https://borsh.io
type Encoder struct {
	buf bytes.Buffer
	err error
}

// NewEncoder returns an Encoder whose output starts with prefix, typically
// an instruction discriminator.
func NewEncoder(prefix []byte) *Encoder {
	e := &Encoder{}
	e.buf.Write(prefix)
	return e
}

func (e *Encoder) WriteUint8(v uint8) *Encoder {
	e.buf.WriteByte(v)
	return e
}

func (e *Encoder) WriteUint16(v uint16) *Encoder {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *Encoder) WriteUint32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *Encoder) WriteUint64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

func (e *Encoder) WriteBool(v bool) *Encoder {
	if v {
		return e.WriteUint8(1)
	}
	return e.WriteUint8(0)
}

// WriteBytes writes a Vec<u8>.
func (e *Encoder) WriteBytes(v []byte) *Encoder {
	if uint64(len(v)) > math.MaxUint32 {
		e.err = errors.Errorf("byte vector too long: %d", len(v))
		return e
	}
	e.WriteUint32(uint32(len(v)))
	e.buf.Write(v)
	return e
}

// WriteString writes a String as its UTF-8 bytes.
func (e *Encoder) WriteString(v string) *Encoder {
	return e.WriteBytes([]byte(v))
}

// WritePublicKey writes a Pubkey, which is 32 raw bytes.
func (e *Encoder) WritePublicKey(v ed25519.PublicKey) *Encoder {
	if len(v) != ed25519.PublicKeySize {
		e.err = errors.Errorf("invalid public key length: %d", len(v))
		return e
	}
	e.buf.Write(v)
	return e
}

// WriteNone writes an Option that is None.
func (e *Encoder) WriteNone() *Encoder {
	return e.WriteUint8(0)
}

// WriteSome writes the tag of an Option that is Some. The value follows.
func (e *Encoder) WriteSome() *Encoder {
	return e.WriteUint8(1)
}

// WriteRaw writes already encoded bytes with no length prefix.
func (e *Encoder) WriteRaw(v []byte) *Encoder {
	e.buf.Write(v)
	return e
}

// Bytes returns the encoded output, or the first error encountered.
func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf.Bytes(), nil
}
