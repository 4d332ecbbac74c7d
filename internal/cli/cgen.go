package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/cayenne/cgen"
)

// NewCgenCommand returns the cgen command.
func NewCgenCommand(root *RootOptions) *cobra.Command {
	var (
		pkg     string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "cgen <dir>",
		Short: "Generate Go classes for the entities of a data map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := root.formatter(cmd)
			m, err := root.load()
			if err != nil {
				return err
			}
			g, err := cgen.New(m, args[0], cgen.WithPackage(pkg), cgen.WithWorkers(workers))
			if err != nil {
				return WrapExitError(ExitCommandError, "cgen", err)
			}
			f.verbosef("generating %d entities into %s", len(m.Entities), args[0])
			if err := g.Generate(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "cgen", err)
			}
			return f.result(map[string]any{"dir": args[0], "entities": len(m.Entities)}, func(w io.Writer) {
				fmt.Fprintf(w, "generated %d entities into %s\n", len(m.Entities), args[0])
			})
		},
	}
	cmd.Flags().StringVar(&pkg, "package", "", "package name, defaults to the directory name")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of files written in parallel")
	return cmd
}
