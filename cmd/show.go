package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a stored conversation with its turns and artifacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		conv, err := d.GetConversation(args[0])
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("no conversation with id %s", args[0])
		}

		fmt.Printf("%s (%s, account %s)\n", conv.Title, conv.Source, conv.Account)
		if conv.CreatedAt > 0 {
			fmt.Printf("created %s\n", time.Unix(int64(conv.CreatedAt), 0).UTC().Format(time.RFC3339))
		}
		for i, turn := range conv.Turns {
			fmt.Printf("\n[%d] %s\n%s\n", i, turn.Role, turn.Content)
			for _, cb := range turn.CodeBlocks {
				fmt.Printf("  code block %s (line %d)\n", cb.Language, cb.StartLine)
			}
			for _, l := range turn.Links {
				fmt.Printf("  link %s\n", l.URL)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
