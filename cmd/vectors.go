package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Inspect the vector store",
}

var vectorsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored embeddings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openVectors()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Count()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

var vectorsDeleteCmd = &cobra.Command{
	Use:   "delete <turn-id>",
	Short: "Remove one embedding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openVectors()
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(args[0])
	},
}

func init() {
	vectorsCmd.AddCommand(vectorsCountCmd)
	vectorsCmd.AddCommand(vectorsDeleteCmd)
	rootCmd.AddCommand(vectorsCmd)
}
