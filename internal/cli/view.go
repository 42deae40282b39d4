package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/anchorstack/pkg/document"
	"github.com/matzehuels/anchorstack/pkg/host/term"
)

// viewCommand creates the view command: an interactive terminal preview
// of a document with its cards stacked in the right margin.
func (c *CLI) viewCommand() *cobra.Command {
	var (
		gap      float64
		selected string
	)

	cmd := &cobra.Command{
		Use:   "view [file]",
		Short: "Preview a document in the terminal",
		Long: `View shows the document text with its cards in the right margin.

Keys: j/k select the next/previous card, esc clears the selection,
g/G jump to the top/bottom, pgup/pgdown and the mouse wheel scroll,
q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := document.Read(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("selected") {
				doc.Selected = selected
			}

			// The preview owns the terminal; scheduler logs only show up with -v.
			var opts []term.Option
			if c.verbose {
				opts = append(opts, term.WithLogger(loggerFromContext(ctx)))
			}
			if cmd.Flags().Changed("gap") {
				opts = append(opts, term.WithGap(gap))
			}
			return term.Run(ctx, doc, opts...)
		},
	}

	cmd.Flags().Float64Var(&gap, "gap", term.DefaultGap, "rows between cards (default: document)")
	cmd.Flags().StringVar(&selected, "selected", "", "card selected at start (default: document)")

	return cmd
}
