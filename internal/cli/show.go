package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/johnbchron/kith/internal/store"
	"github.com/johnbchron/kith/internal/vcard"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	AsOf     string
	V3       bool
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <subject-uuid>",
		Short: "Print a subject's materialized view as a vCard",
		Long: `Materialize a subject and print it as a vCard. With --as-of, materialize
the view as it stood at that instant (RFC 3339).

Example:
  kith show --db ~/kith.db 6dbe2a4f-6f51-4a21-9c35-1a0be5b934b0
  kith show --db ~/kith.db --as-of 2024-01-01T00:00:00Z 6dbe2a4f-…`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "materialize as of this RFC 3339 instant")
	cmd.Flags().BoolVar(&opts.V3, "v3", false, "emit vCard 3.0 instead of 4.0")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid subject uuid %q: %w", rawID, err)
	}

	var asOf time.Time
	if opts.AsOf != "" {
		asOf, err = time.Parse(time.RFC3339, opts.AsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of value %q: %w", opts.AsOf, err)
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	view, err := st.Materialize(cmd.Context(), id, asOf)
	if err != nil {
		return err
	}
	if view == nil {
		return fmt.Errorf("subject %s not found", id)
	}

	out := vcard.Serialize(view)
	if opts.V3 {
		out = vcard.SerializeV3(view)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
