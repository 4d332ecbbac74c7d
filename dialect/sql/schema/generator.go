package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
	"github.com/syssam/cayenne/sorter"
)

// Generator creates the tables of a DataMap. Tables are created in insert
// order, so referenced tables exist before the tables referencing them,
// and dropped in the reverse order.
type Generator struct {
	dataMap *mapping.DataMap
	adapter *adapter.Adapter
	sorter  *sorter.EntitySorter
	logger  *slog.Logger
	planner migrate.PlanApplier
	fks     bool
}

// Option configures a Generator.
type Option func(*Generator) error

// WithLogger sets the logger of executed statements.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) error {
		if l == nil {
			return fmt.Errorf("schema: nil logger")
		}
		g.logger = l
		return nil
	}
}

// WithForeignKeys enables or disables foreign key constraints. They are
// enabled by default.
func WithForeignKeys(enable bool) Option {
	return func(g *Generator) error {
		g.fks = enable
		return nil
	}
}

// WithPlanner sets the atlas planner used to render the statements,
// replacing the default planner of the dialect.
func WithPlanner(p migrate.PlanApplier) Option {
	return func(g *Generator) error {
		g.planner = p
		return nil
	}
}

// NewGenerator returns a generator of the tables of m for the adapter's
// dialect.
func NewGenerator(m *mapping.DataMap, a *adapter.Adapter, opts ...Option) (*Generator, error) {
	if m == nil || a == nil {
		return nil, fmt.Errorf("schema: generator needs a data map and an adapter")
	}
	g := &Generator{
		dataMap: m,
		adapter: a,
		sorter:  sorter.New(m),
		logger:  slog.Default(),
		planner: defaultPlanner(a.Name),
		fks:     true,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// defaultPlanner returns the offline atlas planner of a dialect, or nil
// for dialects atlas does not support.
func defaultPlanner(name string) migrate.PlanApplier {
	switch name {
	case dialect.Postgres:
		return postgres.DefaultPlan
	case dialect.MySQL:
		return mysql.DefaultPlan
	case dialect.SQLite:
		return sqlite.DefaultPlan
	}
	return nil
}

// entities returns the entities in insert order.
func (g *Generator) entities() []*mapping.Entity {
	names := g.dataMap.EntityNames()
	g.sorter.SortEntities(names, false)
	out := make([]*mapping.Entity, len(names))
	for i, n := range names {
		out[i] = g.dataMap.Entity(n)
	}
	return out
}

// Realm returns the atlas realm of the DataMap. Entities without a schema
// are put in a schema with an empty name, so their tables are not
// qualified.
func (g *Generator) Realm() (*schema.Realm, error) {
	tables, err := g.Tables()
	if err != nil {
		return nil, err
	}
	var (
		realm   = schema.NewRealm()
		schemas = make(map[string]*schema.Schema)
	)
	for i, e := range g.entities() {
		s, ok := schemas[e.Schema]
		if !ok {
			s = schema.New(e.Schema)
			schemas[e.Schema] = s
			realm.AddSchemas(s)
		}
		s.AddTables(tables[i])
	}
	return realm, nil
}

// Tables returns the tables of the DataMap in insert order.
func (g *Generator) Tables() ([]*schema.Table, error) {
	entities := g.entities()
	tables := make([]*schema.Table, len(entities))
	byEntity := make(map[string]*schema.Table, len(entities))
	for i, e := range entities {
		t, err := g.table(e)
		if err != nil {
			return nil, err
		}
		tables[i], byEntity[e.Name] = t, t
	}
	if !g.fks {
		return tables, nil
	}
	for i, e := range entities {
		for _, r := range e.Relationships {
			if r.ToMany || !r.ForeignKey() {
				continue
			}
			ref := byEntity[r.Target]
			if ref == nil {
				return nil, fmt.Errorf("schema: relationship %s targets unknown entity %q", r, r.Target)
			}
			fk := schema.NewForeignKey(fkSymbol(e, r)).SetTable(tables[i]).SetRefTable(ref)
			for _, j := range r.Joins {
				c, ok := tables[i].Column(j.Source)
				if !ok {
					return nil, fmt.Errorf("schema: join column %s of %s is not mapped", j.Source, r)
				}
				rc, ok := ref.Column(j.Target)
				if !ok {
					return nil, fmt.Errorf("schema: join column %s of %s is not mapped", j.Target, r)
				}
				fk.AddColumns(c).AddRefColumns(rc)
			}
			tables[i].AddForeignKeys(fk)
		}
	}
	return tables, nil
}

func fkSymbol(e *mapping.Entity, r *mapping.Relationship) string {
	return e.Table + "_" + mapping.DBName(r.Name) + "_FK"
}

func (g *Generator) table(e *mapping.Entity) (*schema.Table, error) {
	t := schema.NewTable(e.Table)
	var pk []*schema.Column
	for _, a := range e.Attributes {
		typ, err := g.columnType(a)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", a, err)
		}
		c := schema.NewColumn(a.Column).SetType(typ).SetNull(!a.PrimaryKey && !a.Mandatory)
		if a.Generated && g.adapter.Name == dialect.MySQL {
			c.AddAttrs(&mysql.AutoIncrement{})
		}
		t.AddColumns(c)
		if a.PrimaryKey {
			pk = append(pk, c)
		}
	}
	if len(pk) > 0 {
		t.SetPrimaryKey(schema.NewPrimaryKey(pk...))
	}
	return t, nil
}

// columnType maps an attribute to the atlas column type of the dialect.
func (g *Generator) columnType(a *mapping.Attribute) (schema.Type, error) {
	name := g.adapter.Name
	switch a.Type {
	case field.TypeBool:
		return &schema.BoolType{T: pick(name, "boolean", "boolean", "bool")}, nil
	case field.TypeInt:
		return &schema.IntegerType{T: pick(name, "integer", "int", "integer")}, nil
	case field.TypeInt64:
		if a.Generated && name == dialect.Postgres {
			return &postgres.SerialType{T: "bigserial"}, nil
		}
		return &schema.IntegerType{T: pick(name, "bigint", "bigint", "integer")}, nil
	case field.TypeFloat64:
		return &schema.FloatType{T: pick(name, "double precision", "double", "real")}, nil
	case field.TypeDecimal:
		return &schema.DecimalType{T: pick(name, "numeric", "decimal", "decimal"), Precision: a.Length, Scale: a.Scale}, nil
	case field.TypeString:
		return &schema.StringType{T: "varchar", Size: size(a.Length)}, nil
	case field.TypeChar:
		return &schema.StringType{T: "char", Size: size(a.Length)}, nil
	case field.TypeLongVarchar:
		return &schema.StringType{T: pick(name, "text", "mediumtext", "text")}, nil
	case field.TypeClob:
		return &schema.StringType{T: pick(name, "text", "longtext", "text")}, nil
	case field.TypeBytes:
		return &schema.BinaryType{T: pick(name, "bytea", "varbinary", "blob"), Size: sizePtr(name, a.Length)}, nil
	case field.TypeBlob:
		return &schema.BinaryType{T: pick(name, "bytea", "longblob", "blob")}, nil
	case field.TypeDate:
		return &schema.TimeType{T: "date"}, nil
	case field.TypeTime:
		return &schema.TimeType{T: pick(name, "timestamp", "datetime", "datetime")}, nil
	case field.TypeUUID:
		if name == dialect.Postgres {
			return &schema.UUIDType{T: "uuid"}, nil
		}
		return &schema.StringType{T: "char", Size: 36}, nil
	}
	return nil, fmt.Errorf("unsupported type %s", a.Type)
}

// pick returns the type name of the dialect: PostgreSQL, MySQL or SQLite.
// Other dialects never reach atlas and use the PostgreSQL name.
func pick(name, pg, my, lite string) string {
	switch name {
	case dialect.MySQL:
		return my
	case dialect.SQLite:
		return lite
	}
	return pg
}

func size(n int) int {
	if n <= 0 {
		return 255
	}
	return n
}

func sizePtr(name string, n int) *int {
	if name != dialect.MySQL {
		return nil
	}
	n = size(n)
	return &n
}

// CreateSQL returns the statements creating the tables.
func (g *Generator) CreateSQL(ctx context.Context) ([]string, error) {
	if g.planner == nil {
		return g.createFallback()
	}
	tables, err := g.Tables()
	if err != nil {
		return nil, err
	}
	// Tables are attached to an unnamed schema so the planner does not
	// qualify them.
	schemas := make(map[string]*schema.Schema)
	changes := make([]schema.Change, len(tables))
	for i, t := range tables {
		e := g.dataMap.EntityForTable(t.Name)
		s, ok := schemas[e.Schema]
		if !ok {
			s = schema.New(e.Schema)
			schemas[e.Schema] = s
		}
		s.AddTables(t)
		changes[i] = &schema.AddTable{T: t}
	}
	plan, err := g.planner.PlanChanges(ctx, "create", changes)
	if err != nil {
		return nil, fmt.Errorf("schema: plan: %w", err)
	}
	stmts := make([]string, len(plan.Changes))
	for i, c := range plan.Changes {
		stmts[i] = c.Cmd
	}
	return stmts, nil
}

// createFallback renders CREATE TABLE statements with the adapter's type
// names. Foreign keys are added once every table exists.
func (g *Generator) createFallback() ([]string, error) {
	b := sql.NewBuilder(g.adapter.Name).SetQuote(g.adapter.Quote)
	var creates, alters []string
	for _, e := range g.entities() {
		var sb strings.Builder
		sb.WriteString("CREATE TABLE ")
		sb.WriteString(qualified(b, e))
		sb.WriteString(" (")
		var pk []string
		for i, a := range e.Attributes {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(b.Quote(a.Column))
			sb.WriteByte(' ')
			sb.WriteString(g.adapter.TypeName(a.Type, a.Length, a.Scale))
			if a.PrimaryKey || a.Mandatory {
				sb.WriteString(" NOT NULL")
			}
			if a.PrimaryKey {
				pk = append(pk, b.Quote(a.Column))
			}
		}
		if len(pk) > 0 {
			sb.WriteString(", PRIMARY KEY (")
			sb.WriteString(strings.Join(pk, ", "))
			sb.WriteByte(')')
		}
		sb.WriteByte(')')
		creates = append(creates, sb.String())
		if !g.fks {
			continue
		}
		for _, r := range e.Relationships {
			if r.ToMany || !r.ForeignKey() {
				continue
			}
			target := r.TargetEntity()
			if target == nil {
				return nil, fmt.Errorf("schema: relationship %s targets unknown entity %q", r, r.Target)
			}
			src, dst := make([]string, len(r.Joins)), make([]string, len(r.Joins))
			for i, j := range r.Joins {
				src[i], dst[i] = b.Quote(j.Source), b.Quote(j.Target)
			}
			alters = append(alters, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
				qualified(b, e), b.Quote(fkSymbol(e, r)), strings.Join(src, ", "), qualified(b, target), strings.Join(dst, ", ")))
		}
	}
	return append(creates, alters...), nil
}

func qualified(b *sql.Builder, e *mapping.Entity) string {
	if e.Schema != "" {
		return b.Quote(e.Schema) + "." + b.Quote(e.Table)
	}
	return b.Quote(e.Table)
}

// DropSQL returns the statements dropping the tables, referencing tables
// first.
func (g *Generator) DropSQL() []string {
	b := sql.NewBuilder(g.adapter.Name).SetQuote(g.adapter.Quote)
	names := g.dataMap.EntityNames()
	g.sorter.SortEntities(names, true)
	stmts := make([]string, len(names))
	for i, n := range names {
		stmts[i] = "DROP TABLE " + qualified(b, g.dataMap.Entity(n))
	}
	return stmts
}

// Create executes the CREATE TABLE statements in one transaction.
func (g *Generator) Create(ctx context.Context, drv dialect.Driver) error {
	stmts, err := g.CreateSQL(ctx)
	if err != nil {
		return err
	}
	return g.exec(ctx, drv, stmts)
}

// Drop executes the DROP TABLE statements in one transaction.
func (g *Generator) Drop(ctx context.Context, drv dialect.Driver) error {
	return g.exec(ctx, drv, g.DropSQL())
}

func (g *Generator) exec(ctx context.Context, drv dialect.Driver, stmts []string) (rerr error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("schema: begin: %w", err)
	}
	defer func() {
		if rerr != nil {
			if err := tx.Rollback(); err != nil {
				rerr = fmt.Errorf("%w: rollback: %v", rerr, err)
			}
		}
	}()
	for _, s := range stmts {
		g.logger.DebugContext(ctx, "schema: exec", "sql", s)
		if err := tx.Exec(ctx, s, []any{}, nil); err != nil {
			return fmt.Errorf("schema: %s: %w", s, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema: commit: %w", err)
	}
	g.logger.InfoContext(ctx, "schema: executed", "dialect", drv.Dialect(), "statements", len(stmts))
	return nil
}
