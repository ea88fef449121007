package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"chatgraph/internal/db"
	"chatgraph/internal/model"
)

var (
	neighborTypes     []string
	neighborDirection string
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <node-id>",
	Short: "List nodes one hop from a graph node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		var types []model.EdgeType
		for _, t := range neighborTypes {
			types = append(types, model.EdgeType(t))
		}
		dir := db.Direction(neighborDirection)
		switch dir {
		case db.DirIn, db.DirOut, db.DirBoth:
		default:
			return fmt.Errorf("invalid direction %q (want in, out, or both)", neighborDirection)
		}

		neighbors, err := d.Neighbors(args[0], types, dir)
		if err != nil {
			return err
		}
		if len(neighbors) == 0 {
			fmt.Println("no neighbors")
			return nil
		}
		for _, nb := range neighbors {
			fmt.Printf("%-10s %-12s %s  %s\n", nb.Edge.Type, nb.Node.Type, nb.Node.ID, nb.Node.Label)
		}
		return nil
	},
}

func init() {
	neighborsCmd.Flags().StringSliceVar(&neighborTypes, "type", nil, "Edge types to follow (contains, follows, produces)")
	neighborsCmd.Flags().StringVar(&neighborDirection, "direction", "out", "Traversal direction: out, in, or both")
	rootCmd.AddCommand(neighborsCmd)
}
