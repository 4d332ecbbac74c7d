package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/cayenne/sorter"
)

// NewSortCommand returns the sort command.
func NewSortCommand(root *RootOptions) *cobra.Command {
	var deleteOrder bool
	cmd := &cobra.Command{
		Use:   "sort [entity...]",
		Short: "Print entities in the order their rows are inserted or deleted",
		Long: `Print entities in commit order: masters before their dependents for
inserts and the reverse with --delete. All entities of the data map are
sorted when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := root.formatter(cmd)
			m, err := root.load()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = m.EntityNames()
			}
			for _, name := range names {
				if _, err := root.entity(m, name); err != nil {
					return err
				}
			}
			sorter.New(m).SortEntities(names, deleteOrder)
			return f.result(names, func(w io.Writer) {
				for _, name := range names {
					fmt.Fprintln(w, name)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&deleteOrder, "delete", false, "print the delete order")
	return cmd
}
