package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnbchron/kith/internal/fact"
	"github.com/johnbchron/kith/internal/store"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
	Kind     string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [text]",
		Short: "List subjects, optionally filtered by text",
		Long: `List subjects in the store. With a text argument, only subjects having
a fact whose value matches the text are shown.

Example:
  kith list --db ~/kith.db
  kith list --db ~/kith.db alice`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runList(cmd, opts, text)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by kind (person|organization|group)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, text string) error {
	var kind fact.SubjectKind
	if opts.Kind != "" {
		parsed, err := fact.ParseSubjectKind(opts.Kind)
		if err != nil {
			return err
		}
		kind = parsed
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	subjects, err := st.Search(cmd.Context(), store.SubjectQuery{Text: text, Kind: kind})
	if err != nil {
		return err
	}

	for _, subject := range subjects {
		view, err := st.Materialize(cmd.Context(), subject.SubjectID, time.Time{})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s  %s\n",
			subject.SubjectID, subject.Kind, displayName(view))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d subject(s)\n", len(subjects))
	return nil
}

// displayName picks the Name fact's full form, or "(no name)".
func displayName(view *fact.ContactView) string {
	if view == nil {
		return "(no name)"
	}
	for _, rf := range view.ActiveFacts {
		if n, ok := rf.Fact.Value.(fact.Name); ok {
			return n.Full
		}
	}
	return "(no name)"
}
