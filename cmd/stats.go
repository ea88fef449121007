package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"chatgraph/internal/analytics"
)

var statsFull bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counts, or a full analytics report with --full",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		if !statsFull {
			s, err := d.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("conversations: %d\n", s.Conversations)
			fmt.Printf("turns:         %d\n", s.Turns)
			fmt.Printf("code blocks:   %d\n", s.CodeBlocks)
			fmt.Printf("links:         %d\n", s.Links)
			fmt.Printf("nodes:         %d\n", s.Nodes)
			fmt.Printf("edges:         %d\n", s.Edges)
			printCounts("by source", s.BySource)
			return nil
		}

		r, err := analytics.Collect(d)
		if err != nil {
			return err
		}
		fmt.Printf("conversations: %d (avg %.1f turns)\n", r.Conversations, r.AvgTurns)
		fmt.Printf("turns:         %d\n", r.Turns)
		fmt.Printf("code blocks:   %d\n", r.CodeBlocks)
		fmt.Printf("links:         %d\n", r.Links)
		printCounts("by source", r.BySource)
		printCounts("by role", r.ByRole)
		if len(r.Languages) > 0 {
			fmt.Println("top languages:")
			for _, c := range r.Languages {
				fmt.Printf("  %-16s %d\n", c.Label, c.N)
			}
		}
		if len(r.Domains) > 0 {
			fmt.Println("top domains:")
			for _, c := range r.Domains {
				fmt.Printf("  %-24s %d\n", c.Label, c.N)
			}
		}
		if r.FirstDate != "" {
			fmt.Printf("active: %s to %s\n", r.FirstDate, r.LastDate)
			for _, c := range r.ByMonth {
				fmt.Printf("  %s %d\n", c.Label, c.N)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsFull, "full", false, "Include roles, languages, domains, and activity over time")
	rootCmd.AddCommand(statsCmd)
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-16s %d\n", k, counts[k])
	}
}
