package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/DiscourseLens/internal/domain/cluster"
)

func newClustersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Inspect cluster definition files",
	}
	cmd.AddCommand(newClustersCheckCmd(), newClustersExportCmd())
	return cmd
}

// clusterSummary is the result of loading a cluster file.
type clusterSummary struct {
	Path      string   `json:"path"`
	Synonyms  int      `json:"synonyms"`
	Clusters  []string `json:"clusters"`
	Topics    []string `json:"topics"`
	Undefined []string `json:"undefined"`
}

func (s *clusterSummary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "File:       %s\n", s.Path)
	fmt.Fprintf(&sb, "Clusters:   %d (%d lookup entries)\n", len(s.Clusters), s.Synonyms)
	fmt.Fprintf(&sb, "Topics:     %d\n", len(s.Topics))
	if len(s.Undefined) > 0 {
		fmt.Fprintf(&sb, "Undefined:  %s\n", strings.Join(s.Undefined, ", "))
	}
	return sb.String()
}

func (s *clusterSummary) TableHeaders() []string { return []string{"KIND", "NAME", "STATUS"} }

func (s *clusterSummary) TableRows() [][]string {
	undefined := make(map[string]bool, len(s.Undefined))
	for _, u := range s.Undefined {
		undefined[u] = true
	}
	rows := make([][]string, 0, len(s.Clusters)+len(s.Topics))
	for _, c := range s.Clusters {
		status := "ok"
		if undefined[c] {
			status = "no surface forms"
		}
		rows = append(rows, []string{"cluster", c, status})
	}
	for _, t := range s.Topics {
		rows = append(rows, []string{"topic", t, "ok"})
	}
	return rows
}

// loadClusterFile applies path to a fresh registry.
func loadClusterFile(path string) (*cluster.Snapshot, error) {
	f, err := cluster.ReadFile(path)
	if err != nil {
		return nil, err
	}
	reg := cluster.NewRegistry()
	if err := f.Apply(reg); err != nil {
		return nil, err
	}
	return reg.Snapshot(), nil
}

func newClustersCheckCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a cluster file and summarize its contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadClusterFile(path)
			if err != nil {
				return err
			}
			synonyms, _, _ := snap.Counts()
			topics := append(snap.Topics(), snap.MultiWordTopics()...)
			return PrintResult(cmd, &clusterSummary{
				Path:      path,
				Synonyms:  synonyms,
				Clusters:  nonNil(snap.ClusterNames()),
				Topics:    nonNil(topics),
				Undefined: nonNil(snap.UndefinedClusters()),
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "cluster definition file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newClustersExportCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a cluster file in normalized form",
		Long: "Export loads a cluster file and prints it back the way the registry\n" +
			"stores it, with cluster names lowercased and form whitespace collapsed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadClusterFile(path)
			if err != nil {
				return err
			}
			out := cluster.Export(snap)
			if cliCtx, err := GetCLIContext(cmd); err == nil && cliCtx.OutputFormat == "json" {
				return printJSON(cmd, out)
			}
			return out.Encode(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "cluster definition file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
