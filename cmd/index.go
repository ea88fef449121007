package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"chatgraph/internal/ingest"
)

var (
	indexAccount string
	indexEmbed   bool
)

var indexCmd = &cobra.Command{
	Use:   "index <export.json> [export.json...]",
	Short: "Ingest chat export files into the knowledge store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		opts := ingest.Options{
			Account:     indexAccount,
			CommitEvery: cfg.Ingest.CommitEvery,
		}
		if indexEmbed {
			store, provider, err := openVectors()
			if err != nil {
				return err
			}
			defer store.Close()
			opts.Vectors = store
			opts.Embedder = provider
		}

		for _, path := range args {
			report, err := ingest.RunFile(cmd.Context(), d, path, opts)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			printReport(path, report)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexAccount, "account", "", "Account to attribute conversations to")
	indexCmd.Flags().BoolVar(&indexEmbed, "embed", false, "Also embed turns into the vector store")
	rootCmd.AddCommand(indexCmd)
}

func printReport(path string, r *ingest.Report) {
	fmt.Printf("%s (%s, run %s)\n", path, r.Format, r.RunID)
	fmt.Printf("  conversations: %d indexed, %d skipped\n", r.Processed, r.Skipped)
	fmt.Printf("  turns: %d\n", r.Turns)
	if r.Embedded > 0 {
		fmt.Printf("  embedded: %d\n", r.Embedded)
	}
	if len(r.Reasons) > 0 {
		reasons := make([]string, 0, len(r.Reasons))
		for reason := range r.Reasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  skipped %d: %s\n", r.Reasons[reason], reason)
		}
	}
}
