package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/wallet-tools/pkg/wallet"
)

func newKeygenCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := wallet.Generate()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "You've generated a new Solana wallet: %s\n", kp)

			if out != "" {
				if err := wallet.Save(out, kp); err != nil {
					return err
				}
				fmt.Fprintf(w, "Saved to %s\n", out)
				return nil
			}

			fmt.Fprintln(w, "To save your wallet, copy and paste the following into a JSON file:")
			fmt.Fprintln(w, wallet.FormatByteArray(kp.Bytes()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the wallet to this file")

	return cmd
}

func newBase58ToWalletCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "base58-to-wallet",
		Short: "Convert a base58 private key read from stdin to a wallet byte array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := readLine(cmd, "Enter your base58 private key:")
			if err != nil {
				return err
			}

			kp, err := wallet.FromBase58(line)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), wallet.FormatByteArray(kp.Bytes()))
			return nil
		},
	}
}

func newWalletToBase58Command() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet-to-base58",
		Short: "Convert a wallet byte array read from stdin to a base58 private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := readLine(cmd, "Enter your wallet byte array:")
			if err != nil {
				return err
			}

			b, err := wallet.ParseByteArray(line)
			if err != nil {
				return err
			}

			kp, err := wallet.FromBytes(b)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), kp.Base58())
			return nil
		},
	}
}

func newVerifyCommand(opts *rootOptions) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the configured wallet loads and signs correctly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			kp, err := env.keypair()
			if err != nil {
				return err
			}

			sig := kp.SignMessage([]byte(message))
			if !wallet.Verify(kp.PublicKey(), []byte(message), sig) {
				return errors.New("signature verification failed")
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Wallet: %s\n", kp)
			fmt.Fprintf(w, "Signature: %s\n", wallet.EncodeBase58(sig))
			fmt.Fprintln(w, "Signature verified")
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "I verify my solana keypair!", "message to sign")

	return cmd
}

// readLine prompts on stderr and reads a single line from the command's
// input.
func readLine(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprintln(cmd.ErrOrStderr(), prompt)

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrap(err, "failed to read input")
	}
	return strings.TrimSpace(line), nil
}
