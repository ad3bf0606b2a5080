// Package wallet manages the ed25519 keypairs used to sign transactions and
// converts them between the formats wallets exchange them in.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	// ErrKeyNotFound indicates the wallet file does not exist.
	ErrKeyNotFound = errors.New("wallet file not found")

	// ErrInvalidKey indicates key material that is not a consistent ed25519
	// keypair.
	ErrInvalidKey = errors.New("invalid keypair")
)

// Keypair is a signing key and the address derived from it.
type Keypair struct {
	privateKey ed25519.PrivateKey
}

// Generate returns a new random keypair.
func Generate() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "error generating private key")
	}
	return &Keypair{privateKey: priv}, nil
}

// FromBytes returns the keypair encoded as the 64 byte secret seed followed by
// the public key. The embedded public key must match the one derived from the
// seed.
func FromBytes(b []byte) (*Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, errors.Wrapf(ErrInvalidKey, "expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}

	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return nil, errors.Wrap(ErrInvalidKey, "private key doesn't map to public key")
	}

	return &Keypair{privateKey: priv}, nil
}

// FromBase58 decodes a keypair exported as a base58 string.
func FromBase58(s string) (*Keypair, error) {
	b, err := DecodeBase58(s)
	if err != nil {
		return nil, err
	}
	return FromBytes(b)
}

// Load reads a wallet file holding the keypair as a JSON array of 64
// integers. ErrKeyNotFound is returned if the file does not exist.
func Load(path string) (*Keypair, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(ErrKeyNotFound, path)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read wallet file %s", path)
	}

	var values []int
	if err := json.Unmarshal(b, &values); err != nil {
		return nil, errors.Wrapf(ErrInvalidKey, "%s is not a JSON byte array: %v", path, err)
	}

	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, errors.Wrapf(ErrInvalidKey, "byte %d out of range: %d", i, v)
		}
		raw[i] = byte(v)
	}

	return FromBytes(raw)
}

// Save writes the keypair as a JSON byte array, readable only by the owner.
func Save(path string, kp *Keypair) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	if err := os.WriteFile(path, []byte(FormatByteArray(kp.privateKey)), 0600); err != nil {
		return errors.Wrapf(err, "failed to write wallet file %s", path)
	}
	return nil
}

func (k *Keypair) PublicKey() ed25519.PublicKey {
	return k.privateKey.Public().(ed25519.PublicKey)
}

func (k *Keypair) PrivateKey() ed25519.PrivateKey {
	return k.privateKey
}

// Bytes returns the 64 byte wallet encoding: seed followed by public key.
func (k *Keypair) Bytes() []byte {
	return append([]byte(nil), k.privateKey...)
}

// Base58 returns the wallet encoding as base58, the format most wallets
// import and export private keys in.
func (k *Keypair) Base58() string {
	return base58.Encode(k.privateKey)
}

// SignMessage signs an arbitrary off-chain message.
func (k *Keypair) SignMessage(message []byte) []byte {
	return ed25519.Sign(k.privateKey, message)
}

func (k *Keypair) String() string {
	return base58.Encode(k.PublicKey())
}

// Verify reports whether sig is a valid signature of message by pub. Off
// curve addresses have no private key and never verify.
func Verify(pub ed25519.PublicKey, message, sig []byte) bool {
	if !IsOnCurve(pub) || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}

// IsOnCurve reports whether pub is a valid ed25519 point. Addresses that are
// not on the curve, such as program derived addresses, have no private key.
func IsOnCurve(pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}

	_, err := new(edwards25519.Point).SetBytes(pub)
	return err == nil
}
