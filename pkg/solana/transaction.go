package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	// ErrMissingSignature indicates an account the transaction declares as a
	// signer has no signature.
	ErrMissingSignature = errors.New("missing signature")

	ErrUnsupportedVersion = errors.New("versioned messages not supported")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

// SignatureFromString decodes a base58 encoded transaction signature.
func SignatureFromString(s string) (Signature, error) {
	var sig Signature

	b, err := base58.Decode(s)
	if err != nil {
		return sig, errors.Wrap(err, "invalid base58 signature")
	}
	if len(b) != len(sig) {
		return sig, errors.Errorf("invalid signature length: %d", len(b))
	}

	copy(sig[:], b)
	return sig, nil
}

// MissingSignatureError names the first declared signer that was not signed for.
type MissingSignatureError struct {
	Account ed25519.PublicKey
}

func (e *MissingSignatureError) Error() string {
	return fmt.Sprintf("missing signature for account %s", base58.Encode(e.Account))
}

func (e *MissingSignatureError) Is(target error) bool {
	return target == ErrMissingSignature
}

type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

// IsSigner reports whether the account at index is within the signer range.
func (m Message) IsSigner(index int) bool {
	return index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index is writable, as encoded
// by the header counts.
func (m Message) IsWritable(index int) bool {
	if m.IsSigner(index) {
		return index < int(m.Header.NumSignatures-m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

// Signers returns the accounts required to sign the message, in signature order.
func (m Message) Signers() []ed25519.PublicKey {
	n := int(m.Header.NumSignatures)
	if n > len(m.Accounts) {
		n = len(m.Accounts)
	}
	return m.Accounts[:n]
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into an unsigned legacy transaction
// paid for by payer and bound to the provided blockhash.
//
// Instruction order is preserved. Accounts referenced more than once are
// merged, keeping the most permissive signer/writable flags.
func NewTransaction(payer ed25519.PublicKey, blockhash Blockhash, instructions ...Instruction) Transaction {
	accounts := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}

	for _, i := range instructions {
		accounts = append(accounts, i.Accounts...)
		accounts = append(accounts, AccountMeta{
			PublicKey: i.Program,
			isProgram: true,
		})
	}

	accounts = filterUnique(accounts)
	sort.Sort(sortableAccountMeta(accounts))

	m := Message{
		RecentBlockhash: blockhash,
	}
	for _, account := range accounts {
		key := account.PublicKey
		if len(key) == 0 {
			key = make([]byte, ed25519.PublicKeySize)
		}
		m.Accounts = append(m.Accounts, key)

		if account.IsSigner {
			m.Header.NumSignatures++

			if !account.IsWritable {
				m.Header.NumReadonlySigned++
			}
		} else if !account.IsWritable {
			m.Header.NumReadOnly++
		}
	}

	for _, i := range instructions {
		c := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, i.Program)),
			Data:         i.Data,
			Accounts:     make([]byte, 0, len(i.Accounts)),
		}
		for _, a := range i.Accounts {
			c.Accounts = append(c.Accounts, byte(indexOf(m.Accounts, a.PublicKey)))
		}

		m.Instructions = append(m.Instructions, c)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the fee payer's signature, which identifies the transaction.
func (t *Transaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

// SetBlockhash rebinds the transaction to a new blockhash. Existing
// signatures no longer cover the message and are cleared.
func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
	for i := range t.Signatures {
		t.Signatures[i] = Signature{}
	}
}

// Sign signs the message with each of the provided keys, placing each
// signature at the position of the key's account.
//
// Keys may be provided in any order. Every account declared as a signer must
// be covered, either by this call or by a previous one, otherwise a
// *MissingSignatureError naming the first uncovered account is returned and
// the transaction is left unchanged.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return errors.Errorf("signature count mismatch: %d signatures, %d signers", len(t.Signatures), t.Message.Header.NumSignatures)
	}

	messageBytes := t.Message.Marshal()

	signatures := make([]Signature, len(t.Signatures))
	copy(signatures, t.Signatures)

	for _, s := range signers {
		pub := s.Public().(ed25519.PublicKey)
		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(signatures[index][:], ed25519.Sign(s, messageBytes))
	}

	for i, sig := range signatures {
		if sig == (Signature{}) {
			return &MissingSignatureError{Account: t.Message.Accounts[i]}
		}
	}

	t.Signatures = signatures
	return nil
}

// VerifySignatures reports whether every required signature is present and
// valid for the current message.
func (t *Transaction) VerifySignatures() bool {
	if len(t.Signatures) != int(t.Message.Header.NumSignatures) {
		return false
	}

	messageBytes := t.Message.Marshal()
	for i, sig := range t.Signatures {
		if !ed25519.Verify(t.Message.Accounts[i], messageBytes, sig[:]) {
			return false
		}
	}
	return true
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, s))
	}
	sb.WriteString("Message:\n")
	sb.WriteString("  Header:\n")
	sb.WriteString(fmt.Sprintf("    NumSignatures: %d\n", t.Message.Header.NumSignatures))
	sb.WriteString(fmt.Sprintf("    NumReadOnly: %d\n", t.Message.Header.NumReadOnly))
	sb.WriteString(fmt.Sprintf("    NumReadOnlySigned: %d\n", t.Message.Header.NumReadonlySigned))
	sb.WriteString(fmt.Sprintf("  RecentBlockhash: %s\n", t.Message.RecentBlockhash))
	sb.WriteString("  Accounts:\n")
	for i, a := range t.Message.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i, c := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d:\n", i))
		sb.WriteString(fmt.Sprintf("      ProgramIndex: %d\n", c.ProgramIndex))
		sb.WriteString(fmt.Sprintf("      Accounts: %v\n", c.Accounts))
		sb.WriteString(fmt.Sprintf("      Data: %v\n", c.Data))
	}
	return sb.String()
}

func filterUnique(accounts []AccountMeta) []AccountMeta {
	filtered := make([]AccountMeta, 0, len(accounts))

	for _, account := range accounts {
		seen := false
		for j := range filtered {
			if !bytes.Equal(account.PublicKey, filtered[j].PublicKey) {
				continue
			}

			// Promote permissions of the earlier entry.
			filtered[j].IsSigner = filtered[j].IsSigner || account.IsSigner
			filtered[j].IsWritable = filtered[j].IsWritable || account.IsWritable
			filtered[j].isPayer = filtered[j].isPayer || account.isPayer
			filtered[j].isProgram = filtered[j].isProgram || account.isProgram
			seen = true
			break
		}

		if !seen {
			filtered = append(filtered, account)
		}
	}

	return filtered
}

func indexOf(slice []ed25519.PublicKey, item ed25519.PublicKey) int {
	if len(item) == 0 {
		item = make([]byte, ed25519.PublicKeySize)
	}

	for i, val := range slice {
		if bytes.Equal(val, item) {
			return i
		}
	}

	return -1
}
