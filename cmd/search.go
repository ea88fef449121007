package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"chatgraph/internal/search"
)

var (
	searchProvider string
	searchRole     string
	searchAccount  string
	searchFrom     string
	searchTo       string
	searchSort     string
	searchPage     int
	searchHybrid   bool
	searchTopK     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search indexed turns with boolean operators and filters",
	Long: `Search indexed turns. Queries support AND, OR, NOT, parentheses, and
"quoted phrases"; plain terms match as prefixes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		svc := search.New(d)
		raw := strings.Join(args, " ")
		opts := search.Options{
			Provider: searchProvider,
			Role:     searchRole,
			Account:  searchAccount,
			DateFrom: searchFrom,
			DateTo:   searchTo,
			Sort:     searchSort,
			Page:     searchPage,
			PageSize: cfg.Search.PageSize,
		}

		if searchHybrid {
			store, provider, err := openVectors()
			if err != nil {
				return err
			}
			defer store.Close()
			svc.WithVectors(store, provider)

			hits, err := svc.SearchHybrid(cmd.Context(), raw, opts, searchTopK)
			if err != nil {
				return err
			}
			for i, h := range hits {
				fmt.Printf("%2d. %.4f (lex %.4f, vec %.4f) %s\n", i+1, h.Score, h.Lexical, h.Vector, h.TurnID)
				fmt.Printf("    %s\n", firstLine(h.Content))
			}
			return nil
		}

		res, err := svc.Search(raw, opts)
		if err != nil {
			return err
		}
		fmt.Printf("%d matches (page %d)\n", res.Total, res.Page)
		for _, row := range res.Rows {
			date := row.Date
			if date == "" {
				date = "????-??-??"
			}
			fmt.Printf("  [%s] %s / %s (%s)\n", date, row.Title, row.Role, row.Source)
			fmt.Printf("    %s\n", row.Snippet)
		}
		if res.HasNext {
			fmt.Printf("more results: rerun with --page %d\n", res.Page+1)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "Filter by provider (claude, chatgpt, or a source name)")
	searchCmd.Flags().StringVar(&searchRole, "role", "", "Filter by role (user, assistant)")
	searchCmd.Flags().StringVar(&searchAccount, "account", "", "Filter by account")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "Earliest date, YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "Latest date, YYYY-MM-DD")
	searchCmd.Flags().StringVar(&searchSort, "sort", "", "Sort order: relevance (default), newest, oldest")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page, 1-based")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "Blend vector similarity into ranking")
	searchCmd.Flags().IntVar(&searchTopK, "top", 10, "Number of hybrid results")
	rootCmd.AddCommand(searchCmd)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
