// Package programs describes the interfaces of on-chain programs as data, so
// instructions can be assembled without hand written builders: a program id,
// and per instruction a discriminator, ordered account roles and arguments.
package programs

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	ErrUnknownProgram     = errors.New("unknown program")
	ErrUnknownInstruction = errors.New("unknown instruction")
)

// DiscriminatorSize is the length of an Anchor instruction discriminator.
const DiscriminatorSize = 8

// Table is a set of program interfaces keyed by name.
type Table struct {
	Programs []Interface `mapstructure:"programs"`
}

type Interface struct {
	Name         string           `mapstructure:"name"`
	ProgramID    string           `mapstructure:"program_id"`
	Instructions []InstructionDef `mapstructure:"instructions"`
}

type InstructionDef struct {
	Name string `mapstructure:"name"`

	// Discriminator prefixes the instruction data. When empty, the Anchor
	// default for Name is used.
	Discriminator []byte `mapstructure:"discriminator"`

	Accounts []AccountRole `mapstructure:"accounts"`
	Args     []ArgDef      `mapstructure:"args"`
}

// AccountRole is a positional account of an instruction.
//
// An account is taken from the caller by role name. Failing that, a fixed
// Address is used, and failing that the address is derived from Seeds with
// the program id. Seeds are "literal:<text>", "account:<role>" for the
// address of another role of the instruction, or "address:<base58>" for a
// fixed address.
type AccountRole struct {
	Name     string   `mapstructure:"name"`
	Signer   bool     `mapstructure:"signer"`
	Writable bool     `mapstructure:"writable"`
	Address  string   `mapstructure:"address"`
	Seeds    []string `mapstructure:"seeds"`
}

type ArgDef struct {
	Name string  `mapstructure:"name"`
	Type ArgType `mapstructure:"type"`
}

// Load reads a table from a yaml, json or toml file.
func Load(path string) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read program table %s", path)
	}

	return unmarshal(v)
}

// LoadBytes reads a table from data in the given format (yaml, json, toml).
func LoadBytes(format string, data []byte) (*Table, error) {
	v := viper.New()
	v.SetConfigType(format)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "failed to read program table")
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Table, error) {
	var table Table
	if err := v.Unmarshal(&table); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal program table")
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// Validate checks every interface is well formed.
func (t *Table) Validate() error {
	seen := make(map[string]struct{})
	for i := range t.Programs {
		p := &t.Programs[i]
		if _, ok := seen[p.Name]; ok {
			return errors.Errorf("duplicate program: %s", p.Name)
		}
		seen[p.Name] = struct{}{}

		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "invalid program %s", p.Name)
		}
	}
	return nil
}

// Get returns the interface with the name.
func (t *Table) Get(name string) (*Interface, error) {
	for i := range t.Programs {
		if t.Programs[i].Name == name {
			return &t.Programs[i], nil
		}
	}
	return nil, errors.Wrap(ErrUnknownProgram, name)
}

// Merge returns a table holding the interfaces of t, with those of other
// replacing any of the same name.
func (t *Table) Merge(other *Table) *Table {
	merged := &Table{}

	for _, p := range t.Programs {
		if _, err := other.Get(p.Name); err == nil {
			continue
		}
		merged.Programs = append(merged.Programs, p)
	}
	merged.Programs = append(merged.Programs, other.Programs...)

	return merged
}

func (p *Interface) Validate() error {
	if p.Name == "" {
		return errors.New("missing name")
	}
	if _, err := p.programKey(); err != nil {
		return err
	}

	seen := make(map[string]struct{})
	for _, def := range p.Instructions {
		if def.Name == "" {
			return errors.New("instruction missing name")
		}
		if _, ok := seen[def.Name]; ok {
			return errors.Errorf("duplicate instruction: %s", def.Name)
		}
		seen[def.Name] = struct{}{}

		if err := def.validate(); err != nil {
			return errors.Wrapf(err, "invalid instruction %s", def.Name)
		}
	}

	return nil
}

// Instruction returns the definition with the name.
func (p *Interface) Instruction(name string) (*InstructionDef, error) {
	for i := range p.Instructions {
		if p.Instructions[i].Name == name {
			return &p.Instructions[i], nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownInstruction, "%s.%s", p.Name, name)
}

func (d *InstructionDef) validate() error {
	roles := make(map[string]struct{})
	for _, role := range d.Accounts {
		if role.Name == "" {
			return errors.New("account role missing name")
		}
		if _, ok := roles[role.Name]; ok {
			return errors.Errorf("duplicate account role: %s", role.Name)
		}
		roles[role.Name] = struct{}{}

		if role.Address != "" && len(role.Seeds) > 0 {
			return errors.Errorf("account role %s has both an address and seeds", role.Name)
		}
	}

	for _, role := range d.Accounts {
		for _, seed := range role.Seeds {
			kind, value, ok := splitSeed(seed)
			if !ok {
				return errors.Errorf("invalid seed %q for account role %s", seed, role.Name)
			}

			switch kind {
			case seedAccount:
				if _, ok := roles[value]; !ok {
					return errors.Errorf("seed of account role %s references unknown role %s", role.Name, value)
				}
			case seedAddress:
				if _, err := base58.Decode(value); err != nil {
					return errors.Errorf("invalid address seed %q for account role %s", value, role.Name)
				}
			}
		}
	}

	if role, ok := d.seedCycle(); ok {
		return errors.Errorf("seeds of account role %s depend on themselves", role)
	}

	for _, arg := range d.Args {
		if !arg.Type.valid() {
			return errors.Errorf("unsupported type %q for argument %s", arg.Type, arg.Name)
		}
	}

	return nil
}

// DiscriminatorBytes returns the configured discriminator, or the Anchor
// default.
func (d *InstructionDef) DiscriminatorBytes() []byte {
	if len(d.Discriminator) > 0 {
		return d.Discriminator
	}
	return AnchorDiscriminator(d.Name)
}

// AnchorDiscriminator returns the first 8 bytes of sha256("global:<name>"),
// which Anchor programs dispatch instructions on.
func AnchorDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:DiscriminatorSize]
}

const (
	seedLiteral = "literal"
	seedAccount = "account"
	seedAddress = "address"
)

// seedCycle returns a role whose seeds transitively reference itself.
func (d *InstructionDef) seedCycle() (string, bool) {
	deps := make(map[string][]string, len(d.Accounts))
	for _, role := range d.Accounts {
		for _, seed := range role.Seeds {
			if kind, value, _ := splitSeed(seed); kind == seedAccount {
				deps[role.Name] = append(deps[role.Name], value)
			}
		}
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}

		state[name] = visiting
		for _, dep := range deps[name] {
			if visit(dep) {
				return true
			}
		}
		state[name] = done
		return false
	}

	for _, role := range d.Accounts {
		if visit(role.Name) {
			return role.Name, true
		}
	}
	return "", false
}

func splitSeed(seed string) (kind, value string, ok bool) {
	parts := strings.SplitN(seed, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", false
	}

	switch parts[0] {
	case seedLiteral, seedAccount, seedAddress:
		return parts[0], parts[1], true
	}
	return "", "", false
}
