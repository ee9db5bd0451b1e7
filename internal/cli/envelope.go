package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"line-memo-relay/internal/relay"
)

// EnvelopeOptions holds flags for the envelope command.
type EnvelopeOptions struct {
	RelaySecret string
	ReceivedAt  string
	Indent      bool
}

// NewEnvelopeCommand creates the envelope command.
func NewEnvelopeCommand() *cobra.Command {
	opts := &EnvelopeOptions{}

	cmd := &cobra.Command{
		Use:   "envelope [file]",
		Short: "Wrap a webhook body in a signed relay envelope",
		Long: `Wrap a raw webhook body in the relay envelope the edge receiver sends to
the backend. The output can be POSTed to the backend directly.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvelope(opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.RelaySecret, "relay-secret", "", "relay signing secret")
	cmd.Flags().StringVar(&opts.ReceivedAt, "received-at", "", "receipt time in RFC 3339 (default now)")
	cmd.Flags().BoolVar(&opts.Indent, "indent", false, "pretty-print the envelope")
	return cmd
}

func runEnvelope(opts *EnvelopeOptions, cmd *cobra.Command, args []string) error {
	if opts.RelaySecret == "" {
		return errors.New("--relay-secret is required")
	}
	receivedAt := time.Now()
	if opts.ReceivedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, opts.ReceivedAt)
		if err != nil {
			return fmt.Errorf("invalid --received-at: %w", err)
		}
		receivedAt = ts
	}

	payload, err := readPayload(cmd, args)
	if err != nil {
		return err
	}

	env := relay.Seal([]byte(opts.RelaySecret), payload, receivedAt)
	var out []byte
	if opts.Indent {
		out, err = json.MarshalIndent(env, "", "  ")
	} else {
		out, err = json.Marshal(env)
	}
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
