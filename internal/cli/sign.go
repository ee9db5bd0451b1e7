package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"line-memo-relay/internal/signature"
)

// NewSignCommand creates the sign command.
func NewSignCommand() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:          "sign [file]",
		Short:        "Print the base64 HMAC-SHA256 signature of a payload",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signature.Sign([]byte(secret), payload))
			return err
		},
	}

	cmd.Flags().StringVarP(&secret, "secret", "s", "", "signing secret")
	return cmd
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	var secret, sig string

	cmd := &cobra.Command{
		Use:          "verify [file]",
		Short:        "Check a payload against a base64 signature",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}
			payload, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			if !signature.Verify([]byte(secret), payload, sig) {
				return ErrSignatureMismatch
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "signature valid")
			return err
		},
	}

	cmd.Flags().StringVarP(&secret, "secret", "s", "", "signing secret")
	cmd.Flags().StringVar(&sig, "signature", "", "base64 signature to check")
	return cmd
}
