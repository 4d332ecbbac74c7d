// Package cli implements the cayenne command.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/syssam/cayenne/mapping"
)

// RootOptions holds the flags shared by all commands.
type RootOptions struct {
	DataMap string
	Format  string
	Verbose bool
}

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "json"}

// NewRootCommand returns the cayenne command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:           "cayenne",
		Short:         "Work with cayenne data maps",
		Long:          "Translate qualifiers, order entities, validate data maps and generate DDL and Go classes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flag", fmt.Errorf("format %q must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.DataMap, "datamap", "m", "datamap.yaml", "data map file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output on stderr")

	cmd.AddCommand(
		NewTranslateCommand(opts),
		NewSortCommand(opts),
		NewValidateCommand(opts),
		NewDDLCommand(opts),
		NewCgenCommand(opts),
	)
	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *formatter {
	return &formatter{
		format: o.Format,
		out:    cmd.OutOrStdout(),
		err:    cmd.ErrOrStderr(),
		debug:  o.Verbose,
	}
}

// load reads and validates the data map.
func (o *RootOptions) load() (*mapping.DataMap, error) {
	m, err := mapping.Load(o.DataMap)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load data map", err)
	}
	return m, nil
}

func (o *RootOptions) entity(m *mapping.DataMap, name string) (*mapping.Entity, error) {
	e := m.Entity(name)
	if e == nil {
		return nil, WrapExitError(ExitCommandError, "invalid argument", fmt.Errorf("%w: %s", mapping.ErrUnknownEntity, name))
	}
	return e, nil
}
