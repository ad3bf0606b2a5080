// Package cli implements the prereqs command line tool. Each command is a
// thin script over the pkg/ packages.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/code-payments/wallet-tools/pkg/solana"
)

// rootOptions holds what commands need beyond configuration. The --keypair,
// --rpc and --log-level flags are read by loadEnvironment, and only when set.
type rootOptions struct {
	configPath string

	// client replaces the RPC client built from configuration.
	client solana.Client
}

// NewRootCommand returns the prereqs command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prereqs",
		Short: "Solana wallet and enrollment tools",
		Long: `prereqs manages a local Solana wallet and submits transactions with it:
SOL transfers, balance drains, program enrollment and SPL token flows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "configuration file path")
	flags.String("keypair", "", "wallet file (overrides keypair_path)")
	flags.String("rpc", "", "RPC endpoint or cluster moniker (overrides rpc_endpoint)")
	flags.String("log-level", "", "log level (overrides log_level)")

	rootCmd.AddCommand(
		newKeygenCommand(),
		newBase58ToWalletCommand(),
		newWalletToBase58Command(),
		newVerifyCommand(opts),
		newAirdropCommand(opts),
		newBalanceCommand(opts),
		newTransferCommand(opts),
		newDrainCommand(opts),
		newStatusCommand(opts),
		newEnrollCommand(opts),
		newSPLCommand(opts),
	)

	return rootCmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}
