package cli

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/code-payments/wallet-tools/pkg/spl"
)

func newSPLCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spl",
		Short: "SPL token operations",
	}
	cmd.AddCommand(
		newSPLCreateMintCommand(opts),
		newSPLMintToCommand(opts),
		newSPLTransferCommand(opts),
		newSPLBalanceCommand(opts),
		newSPLMetadataCommand(opts),
	)
	return cmd
}

func newSPLClient(env *environment) *spl.Client {
	return spl.NewClient(env.client, env.submitter, spl.WithPrograms(env.programs))
}

func newSPLCreateMintCommand(opts *rootOptions) *cobra.Command {
	var decimals uint8

	cmd := &cobra.Command{
		Use:   "create-mint",
		Short: "Create a mint with the configured wallet as authority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				result, err := newSPLClient(env).CreateMint(ctx, kp.PrivateKey(), decimals)
				if err != nil {
					return withSignature(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Mint: %s\n", base58.Encode(result.Mint))
				printSignature(cmd, "Create mint", result.Signature)
				return nil
			})
		},
	}
	cmd.Flags().Uint8Var(&decimals, "decimals", 6, "mint decimals")

	return cmd
}

func newSPLMintToCommand(opts *rootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "mint-to <mint> <amount>",
		Short: "Mint tokens into the associated account of an owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				ownerKey := kp.PublicKey()
				if owner != "" {
					if ownerKey, err = parseAddress(owner); err != nil {
						return err
					}
				}

				client := newSPLClient(env)
				destination, err := client.GetOrCreateAssociatedAccount(ctx, kp.PrivateKey(), mint, ownerKey)
				if err != nil {
					return withSignature(err)
				}

				sig, err := client.MintTo(ctx, kp.PrivateKey(), mint, destination, amount)
				if err != nil {
					return withSignature(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Token account: %s\n", base58.Encode(destination))
				printSignature(cmd, "Mint", sig)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "token owner (defaults to the configured wallet)")

	return cmd
}

func newSPLTransferCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <mint> <to> <amount>",
		Short: "Transfer tokens to the associated account of another wallet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			to, err := parseAddress(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				sig, err := newSPLClient(env).TransferTokens(ctx, kp.PrivateKey(), mint, to, amount)
				if err != nil {
					return withSignature(err)
				}

				printSignature(cmd, "Token transfer", sig)
				return nil
			})
		},
	}
}

func newSPLBalanceCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <mint> [owner]",
		Short: "Show the token balance of an owner's associated account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseAddress(args[0])
			if err != nil {
				return err
			}

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				owner, err := addressOrWallet(env, args[1:])
				if err != nil {
					return err
				}

				balance, err := newSPLClient(env).Balance(ctx, owner, mint)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", base58.Encode(owner), balance)
				return nil
			})
		},
	}
}

func newSPLMetadataCommand(opts *rootOptions) *cobra.Command {
	var (
		md        spl.Metadata
		immutable bool
	)

	cmd := &cobra.Command{
		Use:   "metadata <mint>",
		Short: "Create the token metadata account of a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			md.IsMutable = !immutable

			return run(cmd, opts, func(ctx context.Context, env *environment) error {
				kp, err := env.keypair()
				if err != nil {
					return err
				}

				result, err := newSPLClient(env).CreateMetadata(ctx, kp.PrivateKey(), mint, md)
				if err != nil {
					return withSignature(err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Metadata: %s\n", base58.Encode(result.Metadata))
				printSignature(cmd, "Create metadata", result.Signature)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&md.Name, "name", "", "token name")
	cmd.Flags().StringVar(&md.Symbol, "symbol", "", "token symbol")
	cmd.Flags().StringVar(&md.URI, "uri", "", "URI of the off-chain metadata JSON")
	cmd.Flags().Uint16Var(&md.SellerFeeBasisPoints, "seller-fee-bps", 0, "seller fee in basis points")
	cmd.Flags().BoolVar(&immutable, "immutable", false, "create the metadata as immutable")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("uri")

	return cmd
}
