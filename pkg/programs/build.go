package programs

import (
	"crypto/ed25519"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/binary"
)

var (
	// ErrMissingAccount indicates a role was neither supplied nor resolvable
	// from the table.
	ErrMissingAccount = errors.New("missing account")

	ErrArgumentCount = errors.New("wrong number of arguments")
	ErrArgumentType  = errors.New("wrong argument type")
)

// ArgType is the Borsh type of an instruction argument. Any type other than
// an option may be made optional with the "option:" prefix, for example
// "option:u16".
type ArgType string

const (
	ArgString ArgType = "string"
	ArgBytes  ArgType = "bytes"
	ArgPubkey ArgType = "pubkey"
	ArgBool   ArgType = "bool"
	ArgU8     ArgType = "u8"
	ArgU16    ArgType = "u16"
	ArgU32    ArgType = "u32"
	ArgU64    ArgType = "u64"

	// ArgRaw is a value the caller has already encoded, such as a struct.
	ArgRaw ArgType = "raw"
)

const optionPrefix = "option:"

// Option returns the optional form of t.
func Option(t ArgType) ArgType {
	return ArgType(optionPrefix + string(t))
}

func (t ArgType) optional() (ArgType, bool) {
	if !strings.HasPrefix(string(t), optionPrefix) {
		return "", false
	}
	return ArgType(strings.TrimPrefix(string(t), optionPrefix)), true
}

func (t ArgType) valid() bool {
	if inner, ok := t.optional(); ok {
		_, nested := inner.optional()
		return !nested && inner.valid()
	}

	switch t {
	case ArgString, ArgBytes, ArgPubkey, ArgBool, ArgU8, ArgU16, ArgU32, ArgU64, ArgRaw:
		return true
	}
	return false
}

// Build assembles the named instruction.
//
// accounts maps role names to addresses; roles with a fixed address or seeds
// in the table may be omitted. args are encoded in order after the
// discriminator and must match the declared types: string, []byte,
// ed25519.PublicKey, bool, uint8, uint16, uint32, uint64 and []byte for raw.
// An optional argument is None when nil.
func (p *Interface) Build(name string, accounts map[string]ed25519.PublicKey, args ...interface{}) (solana.Instruction, error) {
	def, err := p.Instruction(name)
	if err != nil {
		return solana.Instruction{}, err
	}

	program, err := p.programKey()
	if err != nil {
		return solana.Instruction{}, err
	}

	resolved, err := newResolver(program, def, accounts).all()
	if err != nil {
		return solana.Instruction{}, errors.Wrapf(err, "%s.%s", p.Name, name)
	}

	data, err := def.encodeArgs(args)
	if err != nil {
		return solana.Instruction{}, errors.Wrapf(err, "%s.%s", p.Name, name)
	}

	metas := make([]solana.AccountMeta, len(def.Accounts))
	for i, role := range def.Accounts {
		metas[i] = solana.AccountMeta{
			PublicKey:  resolved[role.Name],
			IsSigner:   role.Signer,
			IsWritable: role.Writable,
		}
	}

	return solana.NewInstruction(program, data, metas...), nil
}

// ResolveAccounts returns the address of every role of the named
// instruction, as Build would use them.
func (p *Interface) ResolveAccounts(name string, accounts map[string]ed25519.PublicKey) (map[string]ed25519.PublicKey, error) {
	def, err := p.Instruction(name)
	if err != nil {
		return nil, err
	}

	program, err := p.programKey()
	if err != nil {
		return nil, err
	}

	return newResolver(program, def, accounts).all()
}

// ResolveAccount returns the address of a single role of the named
// instruction. Only the roles its seeds reference need to be supplied.
func (p *Interface) ResolveAccount(name, role string, accounts map[string]ed25519.PublicKey) (ed25519.PublicKey, error) {
	def, err := p.Instruction(name)
	if err != nil {
		return nil, err
	}

	program, err := p.programKey()
	if err != nil {
		return nil, err
	}

	return newResolver(program, def, accounts).resolve(role)
}

// ProgramKey returns the decoded program id.
func (p *Interface) ProgramKey() ed25519.PublicKey {
	key, _ := p.programKey()
	return key
}

func (p *Interface) programKey() (ed25519.PublicKey, error) {
	key, err := solana.PublicKeyFromString(p.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid program id")
	}
	return key, nil
}

// resolver resolves account roles on demand, so a role's seeds may
// reference roles declared after it.
type resolver struct {
	program  ed25519.PublicKey
	def      *InstructionDef
	provided map[string]ed25519.PublicKey
	resolved map[string]ed25519.PublicKey
	pending  map[string]struct{}
}

func newResolver(program ed25519.PublicKey, def *InstructionDef, provided map[string]ed25519.PublicKey) *resolver {
	return &resolver{
		program:  program,
		def:      def,
		provided: provided,
		resolved: make(map[string]ed25519.PublicKey, len(def.Accounts)),
		pending:  make(map[string]struct{}),
	}
}

func (r *resolver) all() (map[string]ed25519.PublicKey, error) {
	for _, role := range r.def.Accounts {
		if _, err := r.resolve(role.Name); err != nil {
			return nil, err
		}
	}
	return r.resolved, nil
}

func (r *resolver) resolve(name string) (ed25519.PublicKey, error) {
	if key, ok := r.resolved[name]; ok {
		return key, nil
	}

	role := r.role(name)
	if role == nil {
		return nil, errors.Wrapf(ErrMissingAccount, "unknown role %s", name)
	}
	if _, ok := r.pending[name]; ok {
		return nil, errors.Errorf("seeds of %s depend on themselves", name)
	}

	r.pending[name] = struct{}{}
	key, err := r.derive(role)
	delete(r.pending, name)
	if err != nil {
		return nil, err
	}

	r.resolved[name] = key
	return key, nil
}

func (r *resolver) role(name string) *AccountRole {
	for i := range r.def.Accounts {
		if r.def.Accounts[i].Name == name {
			return &r.def.Accounts[i]
		}
	}
	return nil
}

func (r *resolver) derive(role *AccountRole) (ed25519.PublicKey, error) {
	if key, ok := r.provided[role.Name]; ok && len(key) > 0 {
		if len(key) != ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid address length for %s: %d", role.Name, len(key))
		}
		return key, nil
	}

	switch {
	case role.Address != "":
		key, err := solana.PublicKeyFromString(role.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address for %s", role.Name)
		}
		return key, nil
	case len(role.Seeds) > 0:
		seeds := make([][]byte, len(role.Seeds))
		for i, seed := range role.Seeds {
			kind, value, _ := splitSeed(seed)
			switch kind {
			case seedLiteral:
				seeds[i] = []byte(value)
			case seedAddress:
				key, err := solana.PublicKeyFromString(value)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid address seed of %s", role.Name)
				}
				seeds[i] = key
			default:
				key, err := r.resolve(value)
				if err != nil {
					return nil, errors.Wrapf(err, "seed of %s", role.Name)
				}
				seeds[i] = key
			}
		}

		key, err := solana.FindProgramAddress(r.program, seeds...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive %s", role.Name)
		}
		return key, nil
	}

	return nil, errors.Wrap(ErrMissingAccount, role.Name)
}

func (d *InstructionDef) encodeArgs(args []interface{}) ([]byte, error) {
	if len(args) != len(d.Args) {
		return nil, errors.Wrapf(ErrArgumentCount, "expected %d, got %d", len(d.Args), len(args))
	}

	e := binary.NewEncoder(d.DiscriminatorBytes())
	for i, def := range d.Args {
		if err := encodeArg(e, def.Type, args[i]); err != nil {
			return nil, errors.Wrapf(err, "argument %s", def.Name)
		}
	}

	return e.Bytes()
}

func encodeArg(e *binary.Encoder, t ArgType, v interface{}) error {
	if inner, optional := t.optional(); optional {
		if v == nil {
			e.WriteNone()
			return nil
		}
		e.WriteSome()
		return encodeArg(e, inner, v)
	}

	ok := true

	switch t {
	case ArgString:
		var s string
		if s, ok = v.(string); ok {
			e.WriteString(s)
		}
	case ArgBytes:
		var b []byte
		if b, ok = v.([]byte); ok {
			e.WriteBytes(b)
		}
	case ArgPubkey:
		switch key := v.(type) {
		case ed25519.PublicKey:
			e.WritePublicKey(key)
		case string:
			decoded, err := base58.Decode(key)
			if err != nil {
				return errors.Wrap(err, "invalid base58 public key")
			}
			e.WritePublicKey(decoded)
		default:
			ok = false
		}
	case ArgRaw:
		var b []byte
		if b, ok = v.([]byte); ok {
			e.WriteRaw(b)
		}
	case ArgBool:
		var b bool
		if b, ok = v.(bool); ok {
			e.WriteBool(b)
		}
	case ArgU8:
		var n uint8
		if n, ok = v.(uint8); ok {
			e.WriteUint8(n)
		}
	case ArgU16:
		var n uint16
		if n, ok = v.(uint16); ok {
			e.WriteUint16(n)
		}
	case ArgU32:
		var n uint32
		if n, ok = v.(uint32); ok {
			e.WriteUint32(n)
		}
	case ArgU64:
		var n uint64
		if n, ok = v.(uint64); ok {
			e.WriteUint64(n)
		}
	default:
		return errors.Errorf("unsupported type: %s", t)
	}

	if !ok {
		return errors.Wrapf(ErrArgumentType, "expected %s, got %T", t, v)
	}
	return nil
}
