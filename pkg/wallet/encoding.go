package wallet

import (
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// EncodeBase58 encodes b with the bitcoin base58 alphabet.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

// DecodeBase58 decodes s, ignoring surrounding whitespace.
func DecodeBase58(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty base58 string")
	}

	b, err := base58.Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base58 string")
	}
	return b, nil
}

// FormatByteArray renders b the way wallet files store keys, e.g. [1,2,3].
func FormatByteArray(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(v)))
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseByteArray parses the output of FormatByteArray. Whitespace between
// elements is ignored, as are the surrounding brackets.
func ParseByteArray(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}, nil
	}

	parts := strings.Split(s, ",")
	b := make([]byte, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid byte at index %d", i)
		}
		b[i] = byte(v)
	}
	return b, nil
}
