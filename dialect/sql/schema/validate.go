package schema

import (
	"fmt"
	"strings"

	"ariga.io/atlas/sql/schema"
)

// ValidationError is a problem found comparing a database schema with
// the tables of a DataMap.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates if this is a breaking change.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of schema validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if there are any breaking changes.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowDropIndex     bool
	allowNullToNotNull bool
}

// AllowDropColumn allows dropping columns without error.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable allows dropping tables without error.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowDropIndex allows dropping indexes without error.
func AllowDropIndex() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropIndex = true
	}
}

// AllowNullToNotNull allows changing nullable columns to not null.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateDiff compares the tables of a database with the tables a DataMap
// needs. Dropped tables and columns, NULL to NOT NULL changes and dropped
// indexes are errors unless allowed; other risky changes are warnings.
// Names are compared case-insensitively.
//
//	current, err := schema.Inspect(ctx, db, dialect.Postgres)
//	desired, err := gen.Tables()
//	if res := schema.ValidateDiff(current, desired); res.HasErrors() {
//		log.Fatal(res)
//	}
func ValidateDiff(current, desired []*schema.Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	result := &ValidationResult{}
	desiredMap := make(map[string]*schema.Table, len(desired))
	for _, t := range desired {
		desiredMap[strings.ToUpper(t.Name)] = t
	}
	for _, cur := range current {
		want, ok := desiredMap[strings.ToUpper(cur.Name)]
		if !ok {
			result.add(&ValidationError{
				Table:    cur.Name,
				Message:  "table will be dropped",
				Breaking: true,
			}, cfg.allowDropTable)
			continue
		}
		validateTableDiff(cur, want, cfg, result)
	}
	return result
}

// add records a breaking problem as an error, or as a warning when allowed.
func (r *ValidationResult) add(err *ValidationError, allowed bool) {
	if allowed {
		r.Warnings = append(r.Warnings, err)
	} else {
		r.Errors = append(r.Errors, err)
	}
}

func validateTableDiff(current, desired *schema.Table, cfg *validateConfig, result *ValidationResult) {
	desiredCols := make(map[string]*schema.Column, len(desired.Columns))
	for _, c := range desired.Columns {
		desiredCols[strings.ToUpper(c.Name)] = c
	}
	currentCols := make(map[string]*schema.Column, len(current.Columns))
	for _, c := range current.Columns {
		currentCols[strings.ToUpper(c.Name)] = c
		if _, ok := desiredCols[strings.ToUpper(c.Name)]; !ok {
			result.add(&ValidationError{
				Table:    current.Name,
				Column:   c.Name,
				Message:  "column will be dropped",
				Breaking: true,
			}, cfg.allowDropColumn)
		}
	}
	for _, want := range desired.Columns {
		cur, ok := currentCols[strings.ToUpper(want.Name)]
		if !ok {
			if !nullable(want) && want.Default == nil {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   current.Name,
					Column:  want.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
			continue
		}
		if from, to := typeName(cur), typeName(want); !strings.EqualFold(from, to) {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  want.Name,
				Message: fmt.Sprintf("column type changing from %s to %s", from, to),
			})
		}
		if nullable(cur) && !nullable(want) {
			result.add(&ValidationError{
				Table:    current.Name,
				Column:   want.Name,
				Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
				Breaking: true,
			}, cfg.allowNullToNotNull)
		}
		if from, to := stringSize(cur), stringSize(want); from > 0 && to > 0 && to < from {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  want.Name,
				Message: fmt.Sprintf("column size reducing from %d to %d may truncate data", from, to),
			})
		}
	}
	for _, idx := range current.Indexes {
		if _, ok := desired.Index(idx.Name); ok {
			continue
		}
		result.add(&ValidationError{
			Table:   current.Name,
			Message: fmt.Sprintf("index %q will be dropped", idx.Name),
		}, cfg.allowDropIndex)
	}
}

func nullable(c *schema.Column) bool {
	return c.Type != nil && c.Type.Null
}

func stringSize(c *schema.Column) int {
	if c.Type == nil {
		return 0
	}
	if t, ok := c.Type.Type.(*schema.StringType); ok {
		return t.Size
	}
	return 0
}

// typeName returns a comparable name of the column type. Raw types
// reported by inspection are preferred.
func typeName(c *schema.Column) string {
	if c.Type == nil {
		return ""
	}
	if c.Type.Raw != "" {
		return c.Type.Raw
	}
	switch t := c.Type.Type.(type) {
	case *schema.StringType:
		if t.Size > 0 {
			return fmt.Sprintf("%s(%d)", t.T, t.Size)
		}
		return t.T
	case *schema.DecimalType:
		if t.Precision > 0 {
			return fmt.Sprintf("%s(%d,%d)", t.T, t.Precision, t.Scale)
		}
		return t.T
	case *schema.IntegerType:
		return t.T
	case *schema.FloatType:
		return t.T
	case *schema.BoolType:
		return t.T
	case *schema.BinaryType:
		return t.T
	case *schema.TimeType:
		return t.T
	case *schema.UUIDType:
		return t.T
	case nil:
		return ""
	}
	return fmt.Sprintf("%T", c.Type.Type)
}

// ValidateTables checks the generated tables for problems that would make
// their creation fail: missing primary keys, duplicate names and foreign
// keys referencing unknown tables or columns.
func ValidateTables(tables []*schema.Table) *ValidationResult {
	result := &ValidationResult{}
	names := make(map[string]bool, len(tables))
	for _, t := range tables {
		if names[strings.ToUpper(t.Name)] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: "duplicate table name",
			})
		}
		names[strings.ToUpper(t.Name)] = true
		if t.PrimaryKey == nil || len(t.PrimaryKey.Parts) == 0 {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   t.Name,
				Message: "table has no primary key",
			})
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if cols[strings.ToUpper(c.Name)] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Column:  c.Name,
					Message: "duplicate column name",
				})
			}
			cols[strings.ToUpper(c.Name)] = true
		}
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == nil || !names[strings.ToUpper(fk.RefTable.Name)] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %s references an unknown table", fk.Symbol),
				})
			}
			if len(fk.Columns) != len(fk.RefColumns) {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %s has %d columns and %d referenced columns", fk.Symbol, len(fk.Columns), len(fk.RefColumns)),
				})
			}
		}
	}
	return result
}
