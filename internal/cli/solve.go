package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/anchorstack/pkg/document"
	"github.com/matzehuels/anchorstack/pkg/pipeline"
	"github.com/matzehuels/anchorstack/pkg/render/sink"
)

// solveOpts holds the command-line flags for the solve command.
type solveOpts struct {
	output   string  // output file (single format) or base path (multiple)
	formats  string  // comma-separated artifact formats
	gap      float64 // gap override; only used when set on the command line
	selected string  // selection override; only used when set on the command line
	noLabels bool    // omit author and body text from SVG based output
	noCache  bool
	refresh  bool
}

// solveCommand creates the solve command: place the cards of a document
// and print the result or write it to files.
func (c *CLI) solveCommand() *cobra.Command {
	var opts solveOpts

	cmd := &cobra.Command{
		Use:   "solve [file]",
		Short: "Place the cards of a document",
		Long: `Solve places the cards of a TOML or JSON document next to their anchors.

Without --format the layout is printed as a table. With --format the layout
is rendered to each format and written next to the document, or to --output.
Use --output - to write a single format to stdout.`,
		Example: `  anchorstack solve review.toml
  anchorstack solve review.toml --selected c2
  anchorstack solve review.toml -f svg,json -o out/review`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSolve(cmd, args[0], opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	fs.StringVarP(&opts.formats, "format", "f", "", "artifact format(s): json, svg, png, pdf (comma-separated)")
	fs.Float64Var(&opts.gap, "gap", 0, "minimum space between cards (default: document, then config)")
	fs.StringVar(&opts.selected, "selected", "", "card to place on its anchor (default: document)")
	fs.Float64("width", pipeline.DefaultWidth, "SVG width in pixels")
	fs.BoolVar(&opts.noLabels, "no-labels", false, "omit card text from rendered output")
	fs.BoolVar(&opts.noCache, "no-cache", false, "disable the layout cache")
	fs.BoolVar(&opts.refresh, "refresh", false, "solve again even when the layout is cached")

	bindConfig(fs, "gap", "solve.gap")
	bindConfig(fs, "width", "solve.width")

	return cmd
}

func (c *CLI) runSolve(cmd *cobra.Command, path string, opts solveOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	formats := parseFormats(opts.formats)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}
	if opts.output == "-" && len(formats) != 1 {
		return fmt.Errorf("--output - needs exactly one --format")
	}

	doc, err := document.Read(path)
	if err != nil {
		return err
	}

	popts := pipeline.Options{
		Formats: formats,
		Width:   c.Config.Solve.Width,
		Refresh: opts.refresh,
		Logger:  logger,
	}
	gap := c.Config.Solve.Gap
	if doc.Gap != nil && !cmd.Flags().Changed("gap") {
		gap = *doc.Gap
	}
	popts.Gap = &gap
	if cmd.Flags().Changed("selected") {
		popts.Selected = &opts.selected
	}
	if opts.noLabels {
		labels := false
		popts.Labels = &labels
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	result, err := runner.Execute(ctx, doc, popts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Solved %d cards", result.Stats.CardCount),
		"stacked", result.Stats.StackedCount, "cached", result.CacheInfo.SolveHit)

	if len(formats) == 0 {
		fmt.Fprintln(stdout, sink.RenderTable(result.Layout))
		printStats(stderr, result.Stats.CardCount, result.Stats.StackedCount, result.CacheInfo.SolveHit)
		return nil
	}

	if opts.output == "-" {
		_, err := stdout.Write(result.Artifacts[formats[0]])
		return err
	}

	paths := outputPaths(path, opts.output, formats)
	if err := writeArtifacts(ctx, result.Artifacts, formats, paths); err != nil {
		return err
	}
	printSuccess(stderr, "Solved %s", path)
	for _, p := range paths {
		printFile(stderr, p)
	}
	printStats(stderr, result.Stats.CardCount, result.Stats.StackedCount, result.CacheInfo.SolveHit)
	return nil
}

// outputPaths returns where each format is written. A single format with
// an explicit output file uses it verbatim; otherwise the format becomes
// the extension of the base path.
func outputPaths(docPath, output string, formats []string) []string {
	if len(formats) == 1 && filepath.Ext(output) != "" {
		return []string{output}
	}
	base := output
	if base == "" {
		base = docPath
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	paths := make([]string, len(formats))
	for i, f := range formats {
		paths[i] = base + "." + f
	}
	return paths
}

// writeArtifacts writes artifacts[formats[i]] to paths[i].
func writeArtifacts(ctx context.Context, artifacts map[string][]byte, formats, paths []string) error {
	for i, f := range formats {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := paths[i]
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(p, artifacts[f], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
