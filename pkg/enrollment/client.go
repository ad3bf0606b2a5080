// Package enrollment submits the prerequisite program's enrollment
// instructions.
package enrollment

import (
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-tools/pkg/metrics"
	"github.com/code-payments/wallet-tools/pkg/programs"
	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/solana/computebudget"
	"github.com/code-payments/wallet-tools/pkg/transfer"
)

const metricsStructName = "enrollment.client"

// DefaultCollection is the collection enrollment mints are issued into.
var DefaultCollection = solana.MustPublicKeyFromString("5ebsp5RChCGK7ssRZMVMufgVZhd2kFbNaotcZ5UvytN2")

// DeriveEnrollmentAccount returns the address holding user's enrollment, as
// laid out by the built in program table.
func DeriveEnrollmentAccount(program, user ed25519.PublicKey) (ed25519.PublicKey, error) {
	p, err := defaultInterface(program)
	if err != nil {
		return nil, err
	}
	return enrollmentAccount(p, user)
}

// DeriveCollectionAuthority returns the program's signing authority over
// collection, as laid out by the built in program table.
func DeriveCollectionAuthority(program, collection ed25519.PublicKey) (ed25519.PublicKey, error) {
	p, err := defaultInterface(program)
	if err != nil {
		return nil, err
	}
	return p.ResolveAccount(programs.InstructionSubmitRs, programs.RoleAuthority, map[string]ed25519.PublicKey{
		programs.RoleCollection: collection,
	})
}

func defaultInterface(program ed25519.PublicKey) (*programs.Interface, error) {
	p, err := programs.Default().Get(programs.PrereqProgramName)
	if err != nil {
		return nil, err
	}
	p.ProgramID = base58.Encode(program)
	return p, nil
}

func enrollmentAccount(p *programs.Interface, user ed25519.PublicKey) (ed25519.PublicKey, error) {
	return p.ResolveAccount(programs.InstructionInitialize, programs.RoleAccount, map[string]ed25519.PublicKey{
		programs.RoleUser: user,
	})
}

type Option func(*Client)

// WithComputeBudget prepends compute budget instructions to every
// enrollment transaction.
func WithComputeBudget(budget computebudget.Budget) Option {
	return func(c *Client) {
		c.budget = budget
	}
}

// WithSubmitInstruction selects which submit instruction of the program
// Submit invokes. The default is submit_rs.
func WithSubmitInstruction(name string) Option {
	return func(c *Client) {
		c.submitInstruction = name
	}
}

type Client struct {
	log       *logrus.Entry
	sc        solana.Client
	submitter *transfer.Submitter
	program   *programs.Interface

	budget            computebudget.Budget
	submitInstruction string
}

// NewClient returns a client for the enrollment program described by the
// PrereqProgramName entry of table.
func NewClient(sc solana.Client, submitter *transfer.Submitter, table *programs.Table, opts ...Option) (*Client, error) {
	program, err := table.Get(programs.PrereqProgramName)
	if err != nil {
		return nil, err
	}

	c := &Client{
		log:               logrus.StandardLogger().WithField("type", "enrollment/client"),
		sc:                sc,
		submitter:         submitter,
		program:           program,
		submitInstruction: programs.InstructionSubmitRs,
	}
	for _, o := range opts {
		o(c)
	}

	if _, err := program.Instruction(c.submitInstruction); err != nil {
		return nil, err
	}
	return c, nil
}

// ProgramKey is the address of the enrollment program.
func (c *Client) ProgramKey() ed25519.PublicKey {
	return c.program.ProgramKey()
}

// EnrollmentAccount returns the enrollment address of user that Initialize
// creates.
func (c *Client) EnrollmentAccount(user ed25519.PublicKey) (ed25519.PublicKey, error) {
	return enrollmentAccount(c.program, user)
}

// Initialize creates the enrollment account of user, recording their GitHub
// handle.
func (c *Client) Initialize(ctx context.Context, user ed25519.PrivateKey, github string) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Initialize")
	defer tracer.End()

	userKey := user.Public().(ed25519.PublicKey)
	log := c.log.WithFields(logrus.Fields{
		"method": "Initialize",
		"user":   base58.Encode(userKey),
		"github": github,
	})

	ixn, err := c.program.Build(
		programs.InstructionInitialize,
		map[string]ed25519.PublicKey{programs.RoleUser: userKey},
		github,
	)
	if err != nil {
		tracer.OnError(err)
		return solana.Signature{}, errors.Wrap(err, "failed to build initialize instruction")
	}

	sig, err := c.submitter.Send(ctx, user, nil, c.withBudget(ixn)...)
	if err != nil {
		tracer.OnError(err)
		return sig, err
	}

	log.WithField("signature", sig.String()).Info("enrollment initialized")
	return sig, nil
}

type SubmitResult struct {
	Signature solana.Signature
	Mint      ed25519.PublicKey
}

// Submit completes the enrollment of user, minting a new asset into
// collection. The mint is a fresh keypair that co-signs the transaction.
func (c *Client) Submit(ctx context.Context, user ed25519.PrivateKey, collection ed25519.PublicKey) (*SubmitResult, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Submit")
	defer tracer.End()

	result, err := c.submit(ctx, user, collection)
	tracer.OnError(err)
	return result, err
}

func (c *Client) submit(ctx context.Context, user ed25519.PrivateKey, collection ed25519.PublicKey) (*SubmitResult, error) {
	userKey := user.Public().(ed25519.PublicKey)

	_, mint, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate mint keypair")
	}
	mintKey := mint.Public().(ed25519.PublicKey)

	log := c.log.WithFields(logrus.Fields{
		"method":      "Submit",
		"instruction": c.submitInstruction,
		"user":        base58.Encode(userKey),
		"collection":  base58.Encode(collection),
		"mint":        base58.Encode(mintKey),
	})

	ixn, err := c.program.Build(
		c.submitInstruction,
		map[string]ed25519.PublicKey{
			programs.RoleUser:       userKey,
			programs.RoleMint:       mintKey,
			programs.RoleCollection: collection,
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s instruction", c.submitInstruction)
	}

	sig, err := c.submitter.Send(ctx, user, []ed25519.PrivateKey{mint}, c.withBudget(ixn)...)
	if err != nil {
		return &SubmitResult{Signature: sig, Mint: mintKey}, err
	}

	log.WithField("signature", sig.String()).Info("enrollment submitted")
	return &SubmitResult{Signature: sig, Mint: mintKey}, nil
}

// IsInitialized reports whether the enrollment account of user exists.
func (c *Client) IsInitialized(ctx context.Context, user ed25519.PublicKey) (bool, error) {
	account, err := c.EnrollmentAccount(user)
	if err != nil {
		return false, err
	}

	_, err = c.sc.GetAccountInfo(ctx, account, c.submitter.Commitment())
	if errors.Is(err, solana.ErrAccountNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) withBudget(ixn solana.Instruction) []solana.Instruction {
	return append(c.budget.Instructions(), ixn)
}
