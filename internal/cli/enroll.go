package cli

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/code-payments/wallet-tools/pkg/enrollment"
	"github.com/code-payments/wallet-tools/pkg/programs"
	"github.com/code-payments/wallet-tools/pkg/solana/computebudget"
)

type budgetFlags struct {
	unitLimit uint32
	unitPrice uint64
}

func (f *budgetFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&f.unitLimit, "compute-unit-limit", 0, "compute unit limit (0 uses the runtime default)")
	cmd.Flags().Uint64Var(&f.unitPrice, "compute-unit-price", 0, "compute unit price in micro-lamports")
}

func (f *budgetFlags) budget() computebudget.Budget {
	return computebudget.Budget{UnitLimit: f.unitLimit, UnitPrice: f.unitPrice}
}

func newEnrollCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll with the prerequisite program",
	}
	cmd.AddCommand(
		newEnrollInitializeCommand(opts),
		newEnrollSubmitCommand(opts),
		newEnrollStatusCommand(opts),
	)
	return cmd
}

func newEnrollStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [user]",
		Short: "Show whether a wallet's enrollment account exists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				user, err := addressOrWallet(env, args)
				if err != nil {
					return err
				}

				client, err := enrollment.NewClient(env.client, env.submitter, env.programs)
				if err != nil {
					return err
				}

				account, err := client.EnrollmentAccount(user)
				if err != nil {
					return err
				}
				initialized, err := client.IsInitialized(ctx, user)
				if err != nil {
					return err
				}

				status := "not initialized"
				if initialized {
					status = "initialized"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enrollment account: %s (%s)\n", base58.Encode(account), status)
				return nil
			})
		},
	}
}

func newEnrollInitializeCommand(opts *rootOptions) *cobra.Command {
	var (
		github string
		budget budgetFlags
	)

	cmd := &cobra.Command{
		Use:   "initialize",
		Short: "Create the enrollment account of the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				client, err := enrollment.NewClient(env.client, env.submitter, env.programs, enrollment.WithComputeBudget(budget.budget()))
				if err != nil {
					return err
				}

				sig, err := client.Initialize(ctx, kp.PrivateKey(), github)
				if err != nil {
					return withSignature(err)
				}

				account, err := client.EnrollmentAccount(kp.PublicKey())
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Enrollment account: %s\n", base58.Encode(account))
				printSignature(cmd, "Initialize", sig)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&github, "github", "", "GitHub username")
	_ = cmd.MarkFlagRequired("github")
	budget.register(cmd)

	return cmd
}

func newEnrollSubmitCommand(opts *rootOptions) *cobra.Command {
	var (
		collection  string
		instruction string
		budget      budgetFlags
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Complete enrollment, minting a new asset into the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collectionKey := enrollment.DefaultCollection
			if collection != "" {
				var err error
				if collectionKey, err = parseAddress(collection); err != nil {
					return err
				}
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				client, err := enrollment.NewClient(
					env.client,
					env.submitter,
					env.programs,
					enrollment.WithSubmitInstruction(instruction),
					enrollment.WithComputeBudget(budget.budget()),
				)
				if err != nil {
					return err
				}

				result, err := client.Submit(ctx, kp.PrivateKey(), collectionKey)
				if err != nil {
					return withSignature(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Mint: %s\n", base58.Encode(result.Mint))
				printSignature(cmd, "Submit", result.Signature)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection address (defaults to the enrollment collection)")
	cmd.Flags().StringVar(&instruction, "instruction", programs.InstructionSubmitRs, "submit instruction to invoke")
	budget.register(cmd)

	return cmd
}
