package cli

import (
	stdsql "database/sql"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/dialect/sql/schema"
)

type ddlOptions struct {
	dialect        string
	drop           bool
	apply          bool
	check          bool
	driver         string
	dsn            string
	foreignKeys    bool
	allowDropIndex bool
}

// SchemaReport is the result of ddl --check.
type SchemaReport struct {
	InSync   bool     `json:"inSync"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewDDLCommand returns the ddl command.
func NewDDLCommand(root *RootOptions) *cobra.Command {
	opts := &ddlOptions{}
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print or apply the schema of a data map",
		Long: `Print the CREATE TABLE script of a data map for a dialect, or the DROP
script with --drop. With --apply the statements run in one transaction
against the database at --dsn instead. With --check the schema of the
database at --dsn is compared with the data map, and changes that would
drop tables, columns or data fail the command.`,
		Example: `  cayenne ddl -m gallery.yaml --dialect mysql
  cayenne ddl -m gallery.yaml --apply --driver sqlite --dsn file:gallery.db
  cayenne ddl -m gallery.yaml --check --driver postgres --dsn "$DATABASE_URL"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDDL(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.dialect, "dialect", "d", "", "target dialect, defaults to the dialect of --driver or postgres")
	cmd.Flags().BoolVar(&opts.drop, "drop", false, "drop the tables instead of creating them")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "run the statements against --dsn")
	cmd.Flags().BoolVar(&opts.check, "check", false, "compare the schema of the database at --dsn with the data map")
	cmd.Flags().BoolVar(&opts.allowDropIndex, "allow-drop-index", true, "report indexes missing from the data map as warnings with --check")
	cmd.Flags().StringVar(&opts.driver, "driver", "", "database/sql driver name, e.g. postgres, mysql, sqlite or sqlite3")
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "data source name")
	cmd.Flags().BoolVar(&opts.foreignKeys, "foreign-keys", true, "create foreign key constraints")
	return cmd
}

func runDDL(cmd *cobra.Command, root *RootOptions, opts *ddlOptions) error {
	f := root.formatter(cmd)
	switch {
	case opts.apply && opts.check:
		return WrapExitError(ExitCommandError, "invalid flag", fmt.Errorf("--apply and --check are exclusive"))
	case (opts.apply || opts.check) && (opts.driver == "" || opts.dsn == ""):
		return WrapExitError(ExitCommandError, "invalid flag", fmt.Errorf("--apply and --check require --driver and --dsn"))
	}
	name := opts.dialect
	switch {
	case name == "" && opts.driver != "":
		name = dialect.Normalize(opts.driver)
	case name == "":
		name = dialect.Postgres
	}
	a, err := adapter.Lookup(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flag", err)
	}
	m, err := root.load()
	if err != nil {
		return err
	}
	g, err := schema.NewGenerator(m, a, schema.WithForeignKeys(opts.foreignKeys))
	if err != nil {
		return WrapExitError(ExitCommandError, "schema", err)
	}
	ctx := cmd.Context()
	if opts.check {
		return checkSchema(cmd, f, g, opts)
	}
	if opts.apply {
		drv, err := sql.Open(opts.driver, opts.dsn)
		if err != nil {
			return WrapExitError(ExitCommandError, "open database", err)
		}
		defer drv.Close()
		f.verbosef("applying schema of %s to %s", m.Name, drv.Dialect())
		if opts.drop {
			err = g.Drop(ctx, drv)
		} else {
			err = g.Create(ctx, drv)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "apply schema", err)
		}
		return f.result(map[string]int{"tables": len(m.Entities)}, func(w io.Writer) {
			fmt.Fprintf(w, "applied %d tables\n", len(m.Entities))
		})
	}
	var stmts []string
	if opts.drop {
		stmts = g.DropSQL()
	} else if stmts, err = g.CreateSQL(ctx); err != nil {
		return WrapExitError(ExitCommandError, "schema", err)
	}
	return f.result(stmts, func(w io.Writer) {
		for _, s := range stmts {
			fmt.Fprintf(w, "%s;\n", s)
		}
	})
}

// checkSchema inspects the database and validates the change to the tables
// of the data map.
func checkSchema(cmd *cobra.Command, f *formatter, g *schema.Generator, opts *ddlOptions) error {
	db, err := stdsql.Open(opts.driver, opts.dsn)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer db.Close()
	current, err := schema.Inspect(cmd.Context(), db, opts.driver)
	if err != nil {
		return WrapExitError(ExitCommandError, "inspect schema", err)
	}
	desired, err := g.Tables()
	if err != nil {
		return WrapExitError(ExitCommandError, "schema", err)
	}
	var vopts []schema.ValidateOption
	if opts.allowDropIndex {
		vopts = append(vopts, schema.AllowDropIndex())
	}
	f.verbosef("checking %d tables against %d in the database", len(desired), len(current))
	res := schema.ValidateDiff(current, desired, vopts...)
	report := SchemaReport{InSync: !res.HasErrors()}
	for _, e := range res.Errors {
		report.Errors = append(report.Errors, e.Error())
	}
	for _, w := range res.Warnings {
		report.Warnings = append(report.Warnings, w.Error())
	}
	text := func(w io.Writer) { fmt.Fprintln(w, res.String()) }
	if res.HasErrors() {
		return f.failure(ExitFailure, fmt.Sprintf("schema check failed with %d error(s)", len(res.Errors)), report, text)
	}
	return f.result(report, text)
}
