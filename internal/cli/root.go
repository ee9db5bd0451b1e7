package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ErrSignatureMismatch is returned by verify when the signature does not match.
var ErrSignatureMismatch = errors.New("signature invalid")

// NewRootCommand creates the root command for relayctl.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Inspect and forge webhook relay payloads",
		Long: `relayctl signs and verifies webhook bodies the way the platform and the
edge receiver do, and builds relay envelopes for replaying deliveries to the
backend by hand.`,
	}

	cmd.AddCommand(NewSignCommand())
	cmd.AddCommand(NewVerifyCommand())
	cmd.AddCommand(NewEnvelopeCommand())

	return cmd
}

// readPayload reads the named file, or stdin when no file is given or the
// name is "-". The bytes are returned untouched.
func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
