package cli

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/wallet-tools/pkg/solana"
	"github.com/code-payments/wallet-tools/pkg/transfer"
)

const lamportsPerSOL = 1_000_000_000

func newAirdropCommand(opts *rootOptions) *cobra.Command {
	var lamports uint64

	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Request test SOL for the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				sig, err := env.client.RequestAirdrop(ctx, kp.PublicKey(), lamports, env.commitment)
				if err != nil {
					return err
				}
				if err := env.submitter.Confirm(ctx, sig); err != nil {
					return err
				}

				printSignature(cmd, "Airdrop", sig)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&lamports, "lamports", 2*lamportsPerSOL, "lamports to request")

	return cmd
}

func newBalanceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the lamport balance of an address, or of the configured wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				address, err := addressOrWallet(env, args)
				if err != nil {
					return err
				}

				balance, err := env.client.GetBalance(ctx, address, env.commitment)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d lamports\n", base58.Encode(address), balance)
				return nil
			})
		},
	}
}

func newTransferCommand(opts *rootOptions) *cobra.Command {
	var (
		memo        string
		priorityFee uint64
	)

	cmd := &cobra.Command{
		Use:   "transfer <to> <lamports>",
		Short: "Send lamports from the configured wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			lamports, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				client := transfer.NewClient(env.client, env.submitter)
				sig, err := client.Transfer(ctx, kp.PrivateKey(), to, lamports, transferOptions(memo, priorityFee)...)
				if err != nil {
					return withSignature(err)
				}

				printSignature(cmd, "Transfer", sig)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "attach a memo")
	cmd.Flags().Uint64Var(&priorityFee, "priority-fee", 0, "compute unit price in micro-lamports")

	return cmd
}

func newDrainCommand(opts *rootOptions) *cobra.Command {
	var (
		memo        string
		priorityFee uint64
	)

	cmd := &cobra.Command{
		Use:   "drain <to>",
		Short: "Send the entire balance of the configured wallet, less the fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				client := transfer.NewClient(env.client, env.submitter)
				result, err := client.Drain(ctx, kp.PrivateKey(), to, transferOptions(memo, priorityFee)...)
				if err != nil {
					if result != nil && result.FailedAt >= transfer.DrainSubmitted {
						return errors.Wrapf(err, "drain failed after submission of %s", result.Signature)
					}
					return err
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Balance: %d lamports\n", result.Balance)
				fmt.Fprintf(w, "Fee: %d lamports\n", result.Fee)
				fmt.Fprintf(w, "Sent: %d lamports\n", result.Amount)
				printSignature(cmd, "Drain", result.Signature)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "attach a memo")
	cmd.Flags().Uint64Var(&priorityFee, "priority-fee", 0, "compute unit price in micro-lamports")

	return cmd
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <signature>",
		Short: "Show the status of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := solana.SignatureFromString(args[0])
			if err != nil {
				return err
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				status, err := env.submitter.Status(ctx, sig)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if status == nil {
					fmt.Fprintln(w, "Status: unknown")
					return nil
				}

				fmt.Fprintf(w, "Slot: %d\n", status.Slot)
				switch {
				case status.ErrorResult != nil:
					fmt.Fprintf(w, "Status: failed (%v)\n", status.ErrorResult)
				case status.Finalized():
					fmt.Fprintln(w, "Status: finalized")
				case status.Confirmed():
					fmt.Fprintln(w, "Status: confirmed")
				default:
					fmt.Fprintln(w, "Status: processed")
				}
				return nil
			})
		},
	}
}

func transferOptions(memo string, priorityFee uint64) []transfer.Option {
	var opts []transfer.Option
	if memo != "" {
		opts = append(opts, transfer.WithMemo(memo))
	}
	if priorityFee > 0 {
		opts = append(opts, transfer.WithPriorityFee(priorityFee))
	}
	return opts
}

// withSignature names the transaction in errors where its outcome must be
// checked before retrying.
func withSignature(err error) error {
	var timeoutErr *transfer.TimeoutError
	if errors.As(err, &timeoutErr) {
		return errors.Wrapf(err, "check status of %s before retrying", timeoutErr.Signature)
	}
	return err
}

func printSignature(cmd *cobra.Command, what string, sig solana.Signature) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s confirmed: %s\n", what, sig)
}

func parseAddress(s string) (ed25519.PublicKey, error) {
	address, err := solana.PublicKeyFromString(s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %q", s)
	}
	return address, nil
}

func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid amount %q", s)
	}
	return amount, nil
}

func addressOrWallet(env *environment, args []string) (ed25519.PublicKey, error) {
	if len(args) > 0 {
		return parseAddress(args[0])
	}

	kp, err := env.keypair()
	if err != nil {
		return nil, err
	}
	return kp.PublicKey(), nil
}
