package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/DiscourseLens/internal/application/analysis"
	"github.com/turtacn/DiscourseLens/internal/domain/coherence"
	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

type analyzeOptions struct {
	file         string
	object       string
	clusters     string
	local        string
	sortByCount  bool
	pronouns     bool
	postVerb     bool
	minTopics    int
	windowOffset int
	windowMax    int
}

func newAnalyzeCmd() *cobra.Command {
	o := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the topical progression of a parsed document",
		Long: "Analyze reads a parsed document (JSON, as produced by the linguistic\n" +
			"pipeline) from a file, stdin or the object store and prints its topics,\n" +
			"paragraph lemma sets and progression matrix.",
		Example: "  dlens analyze --file essay.json --clusters clusters.yaml\n" +
			"  cat essay.json | dlens analyze --file - -o table\n" +
			"  dlens analyze --object parsed-documents/essay.json --local 0,2 -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.file, "file", "f", "", "parsed document file, - for stdin")
	f.StringVar(&o.object, "object", "", "parsed document object reference (bucket/key or key)")
	f.StringVar(&o.clusters, "clusters", "", "cluster definition file (overrides clusters.file)")
	f.StringVar(&o.local, "local", "", "comma-separated paragraph positions for local topics")
	f.BoolVar(&o.sortByCount, "sort-by-count", false, "order topics by descending left count")
	f.BoolVar(&o.pronouns, "pronouns", false, "let personal pronouns match each other and appear as topics")
	f.BoolVar(&o.postVerb, "post-verb-subjects-left", false, "mark subjects after the main verb as left")
	f.IntVar(&o.minTopics, "min-topics", 2, "minimum effective left count of a topic")
	f.IntVar(&o.windowOffset, "window-offset", 0, "first paragraph of the analysis window")
	f.IntVar(&o.windowMax, "window-max", 0, "maximum paragraphs in the window, 0 for all")
	cmd.MarkFlagsMutuallyExclusive("file", "object")
	cmd.MarkFlagsOneRequired("file", "object")
	return cmd
}

func runAnalyze(cmd *cobra.Command, o *analyzeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	log := cliCtx.Logger

	local, err := parseLocal(o.local)
	if err != nil {
		return err
	}

	req := &analysis.Request{
		Object:         o.object,
		Options:        o.apply(cmd, analysisOptions(cliCtx.Config.Analysis)),
		LocalPositions: local,
	}
	if o.file != "" {
		if req.Document, err = readDocument(cmd, o.file); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	defer cancel()

	rt, err := newRuntime(ctx, cliCtx.Config, o.clusters, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.service.Analyze(ctx, req)
	if err != nil {
		return err
	}
	log.Debug("analysis finished",
		logging.String("run_id", res.Report.RunID),
		logging.Duration("duration", res.Duration))
	return PrintResult(cmd, &reportView{Result: res})
}

// apply overrides opts with the flags that were set on cmd.
func (o *analyzeOptions) apply(cmd *cobra.Command, opts coherence.Options) coherence.Options {
	f := cmd.Flags()
	if f.Changed("sort-by-count") {
		opts.SortByCount = o.sortByCount
	}
	if f.Changed("pronouns") {
		opts.PronounVisible = o.pronouns
	}
	if f.Changed("post-verb-subjects-left") {
		opts.PostVerbSubjectsLeft = o.postVerb
	}
	if f.Changed("min-topics") {
		opts.MinTopics = o.minTopics
	}
	if f.Changed("window-offset") {
		opts.Window.Offset = o.windowOffset
	}
	if f.Changed("window-max") {
		opts.Window.Max = o.windowMax
	}
	return opts
}

func readDocument(cmd *cobra.Command, path string) (*document.ParsedDocument, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidDocument, "failed to open document").WithDetail(path)
		}
		defer f.Close()
		r = f
	}
	return document.Decode(r)
}

// parseLocal parses "0,2,5".  Empty input selects every paragraph.
func parseLocal(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, errors.InvalidParam(fmt.Sprintf("invalid paragraph position %q", part))
		}
		out = append(out, n)
	}
	return out, nil
}

// reportView renders an analysis result as text, a matrix table or JSON.
type reportView struct {
	*analysis.Result
}

func (v *reportView) String() string {
	r := v.Report
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document:   %s (%s)\n", orDash(r.DocumentID), orDash(r.Language))
	fmt.Fprintf(&sb, "Run:        %s  cached=%t  %s\n", orDash(r.RunID), v.Cached, v.Duration.Round(time.Microsecond))
	fmt.Fprintf(&sb, "Window:     offset %d, max %d\n", r.Window.Offset, r.Window.Max)
	fmt.Fprintf(&sb, "Global:     %s\n", formatTopics(r.GlobalTopics))
	fmt.Fprintf(&sb, "Local:      %s\n", formatTopics(r.LocalTopics))
	if len(r.UndefinedClusters) > 0 {
		fmt.Fprintf(&sb, "Undefined:  %s\n", strings.Join(r.UndefinedClusters, ", "))
	}
	for _, p := range r.Paragraphs {
		fmt.Fprintf(&sb, "\n[%d] %s\n", p.Position, orDash(p.ID))
		fmt.Fprintf(&sb, "    given: %s\n", strings.Join(p.Given, " "))
		fmt.Fprintf(&sb, "    new:   %s\n", strings.Join(p.New, " "))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&sb, "\nwarning: %s\n", w)
	}
	if v.ArchiveKey != "" {
		fmt.Fprintf(&sb, "\nArchived:   %s\n", v.ArchiveKey)
	}
	return sb.String()
}

// TableHeaders are the paragraph and sentence columns followed by one
// column per matrix topic.
func (v *reportView) TableHeaders() []string {
	h := []string{"P", "S"}
	if m := v.Report.Matrix; m != nil {
		for _, t := range m.Header {
			h = append(h, t.Lemma)
		}
	}
	return h
}

// TableRows renders matrix cells as L (left) or R (right), suffixed with +
// for new occurrences, and ~ for skippable sentences.  Sentinel rows become
// separators.
func (v *reportView) TableRows() [][]string {
	m := v.Report.Matrix
	if m == nil {
		return nil
	}
	rows := make([][]string, 0, len(m.Rows))
	for _, r := range m.Rows {
		row := make([]string, 2+len(m.Header))
		if r.Sentinel {
			for i := range row {
				row[i] = "."
			}
			rows = append(rows, row)
			continue
		}
		row[0] = strconv.Itoa(r.Paragraph)
		row[1] = strconv.Itoa(r.Sentence)
		for i, c := range r.Cells {
			if i >= len(m.Header) {
				break
			}
			row[2+i] = cellMark(c)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellMark(c *coherence.Cell) string {
	switch {
	case c == nil:
		return ""
	case c.IsSkippable:
		return "~"
	}
	mark := "R"
	if c.Left {
		mark = "L"
	}
	if c.IsNew {
		mark += "+"
	}
	return mark
}

func formatTopics(topics []coherence.Topic) string {
	if len(topics) == 0 {
		return "-"
	}
	parts := make([]string, len(topics))
	for i, t := range topics {
		parts[i] = fmt.Sprintf("%s(%d)", t.Lemma, t.LeftCount)
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
