// Package shortvec implements the compact-u16 length prefix used throughout
// the solana wire format.
//
// Reference: https://github.com/solana-labs/solana/blob/master/sdk/program/src/short_vec.rs
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedLen is the most bytes a u16 can take when encoded.
const MaxEncodedLen = 3

var (
	ErrOverflow     = errors.New("shortvec: value exceeds u16")
	ErrAlias        = errors.New("shortvec: non-canonical encoding")
	ErrTooManyBytes = errors.New("shortvec: encoding exceeds 3 bytes")
)

// Encode returns the compact-u16 encoding of n.
func Encode(n int) ([]byte, error) {
	if n < 0 || n > math.MaxUint16 {
		return nil, ErrOverflow
	}

	out := make([]byte, 0, MaxEncodedLen)
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(out, b), nil
		}
		out = append(out, b|0x80)
	}
}

// Write encodes n into w.
func Write(w io.Writer, n int) error {
	encoded, err := Encode(n)
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// Read decodes a compact-u16 value from r, rejecting aliased (zero padded)
// and oversized encodings the same way the runtime does.
func Read(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < MaxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		if i > 0 && b == 0 {
			return 0, ErrAlias
		}

		val |= int(b&0x7f) << (7 * i)
		if val > math.MaxUint16 {
			return 0, ErrOverflow
		}

		if b&0x80 == 0 {
			return val, nil
		}
	}

	return 0, ErrTooManyBytes
}
