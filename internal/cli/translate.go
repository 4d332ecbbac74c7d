package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/exp"
)

// Translation is the result of the translate command.
type Translation struct {
	SQL      string    `json:"sql"`
	Bindings []Binding `json:"bindings,omitempty"`
	EJBQL    string    `json:"ejbql,omitempty"`
}

// Binding is a bound statement parameter.
type Binding struct {
	Value  any    `json:"value"`
	Type   string `json:"type"`
	Column string `json:"column,omitempty"`
}

type translateOptions struct {
	dialect string
	params  map[string]string
	order   []string
	limit   int
	offset  int
	ejbql   bool
}

// NewTranslateCommand returns the translate command.
func NewTranslateCommand(root *RootOptions) *cobra.Command {
	opts := &translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <entity> [qualifier]",
		Short: "Translate a qualifier to the SELECT of a dialect",
		Long: `Translate a qualifier expression to the SELECT statement a dialect
runs for it, and print the statement with its bindings.

Orderings are property paths. A leading "-" sorts descending and a
leading "~" ignores case, e.g. --order -estimatedPrice --order ~paintingTitle.`,
		Example: `  cayenne translate -m gallery.yaml Painting 'toArtist.artistName like $name' --param name=P% --dialect mysql`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, root, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.dialect, "dialect", "d", dialect.Postgres, "target dialect")
	cmd.Flags().StringToStringVarP(&opts.params, "param", "p", nil, "named parameter values")
	cmd.Flags().StringArrayVar(&opts.order, "order", nil, "ordering path")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of rows")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "number of rows to skip")
	cmd.Flags().BoolVar(&opts.ejbql, "ejbql", false, "also print the qualifier as EJBQL")
	return cmd
}

func runTranslate(cmd *cobra.Command, root *RootOptions, opts *translateOptions, args []string) error {
	f := root.formatter(cmd)
	m, err := root.load()
	if err != nil {
		return err
	}
	e, err := root.entity(m, args[0])
	if err != nil {
		return err
	}
	a, err := adapter.Lookup(opts.dialect)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	}
	var qualifier exp.Expression
	if len(args) == 2 {
		if qualifier, err = exp.Parse(args[1]); err != nil {
			return WrapExitError(ExitCommandError, "parse qualifier", err)
		}
	}
	spec := adapter.SelectSpec{
		Entity:    e,
		Qualifier: qualifier,
		Params:    paramValues(opts.params),
		Orderings: orderings(opts.order),
		Limit:     opts.limit,
		Offset:    opts.offset,
	}
	f.verbosef("translating %s for %s", e.Name, a.Name)
	stmt, err := a.SelectSQL(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "translate", err)
	}
	res := Translation{SQL: stmt.SQL}
	for _, b := range stmt.Bindings {
		res.Bindings = append(res.Bindings, Binding{Value: b.Value, Type: b.Type.String(), Column: b.Column})
	}
	if opts.ejbql && qualifier != nil {
		if res.EJBQL, err = exp.EJBQL(qualifier, e.Name); err != nil {
			return WrapExitError(ExitCommandError, "encode EJBQL", err)
		}
	}
	return f.result(res, func(w io.Writer) {
		fmt.Fprintln(w, res.SQL)
		for i, b := range res.Bindings {
			fmt.Fprintf(w, "%d: %v %s %s\n", i+1, b.Value, b.Type, b.Column)
		}
		if res.EJBQL != "" {
			fmt.Fprintln(w, res.EJBQL)
		}
	})
}

// paramValues converts parameter flags to int64, float64 or bool values
// where they parse as one, and keeps them as strings otherwise.
func paramValues(params map[string]string) map[string]any {
	if len(params) == 0 {
		return nil
	}
	values := make(map[string]any, len(params))
	for k, s := range params {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			values[k] = n
		} else if x, err := strconv.ParseFloat(s, 64); err == nil {
			values[k] = x
		} else if b, err := strconv.ParseBool(s); err == nil {
			values[k] = b
		} else {
			values[k] = s
		}
	}
	return values
}

func orderings(specs []string) []adapter.Ordering {
	var out []adapter.Ordering
	for _, s := range specs {
		var o adapter.Ordering
		for len(s) > 0 && (s[0] == '-' || s[0] == '~') {
			if s[0] == '-' {
				o.Desc = true
			} else {
				o.IgnoreCase = true
			}
			s = s[1:]
		}
		o.Path = strings.TrimSpace(s)
		out = append(out, o)
	}
	return out
}
