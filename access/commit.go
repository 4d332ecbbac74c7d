package access

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/dialect/sql/sqlerr"
	"github.com/syssam/cayenne/graph"
	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/sorter"
	"github.com/syssam/cayenne/validation"
)

// rowOp is the insert, update or delete of the row of one object.
type rowOp struct {
	op  validation.Op
	obj *DataObject
	// values are keyed by column. Foreign keys to objects inserted in the
	// same commit hold a fkRef until the target row exists.
	values  map[string]any
	key     map[string]any
	changed []string
}

// fkRef is a foreign key value read from a column of target.
type fkRef struct {
	target *DataObject
	column string
}

// Commit writes the uncommitted changes of the context to the database in
// one transaction. Rows are inserted in dependency order, then updated,
// then deleted in reverse dependency order. Generated keys are read back
// and propagated to the foreign keys of dependent rows.
//
// Update and delete statements that affect no row fail with
// cayenne.ErrOptimisticLock. MySQL reports rows matched rather than rows
// changed only with the clientFoundRows=true DSN parameter.
//
// On failure the transaction is rolled back, the context keeps its changes
// and a *cayenne.CommitError is returned.
func (c *DataContext) Commit(ctx context.Context) error {
	if !c.graph.HasChanges() {
		return nil
	}
	start := time.Now()
	ops, err := c.plan()
	if err != nil {
		return &cayenne.CommitError{Err: err}
	}
	if err := c.validate(ctx, ops); err != nil {
		return &cayenne.CommitError{Err: err}
	}
	if len(ops) == 0 {
		c.finish(nil)
		return nil
	}
	tx, err := c.domain.driver.Tx(ctx)
	if err != nil {
		return &cayenne.CommitError{Err: fmt.Errorf("starting transaction: %w", err)}
	}
	generated := make(map[*DataObject]map[string]any)
	for _, op := range ops {
		if err := c.execute(ctx, tx, op, generated); err != nil {
			return &cayenne.CommitError{
				Entity: op.obj.entity.Name,
				Op:     op.op.String(),
				Err:    errors.Join(sqlerr.Wrap(err), rollback(tx)),
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return &cayenne.CommitError{Err: fmt.Errorf("committing transaction: %w", err)}
	}
	c.finish(ops)
	c.domain.logger.DebugContext(ctx, "access: committed",
		"inserts", count(ops, validation.OpInsert),
		"updates", count(ops, validation.OpUpdate),
		"deletes", count(ops, validation.OpDelete),
		"duration", time.Since(start),
	)
	return nil
}

func rollback(tx dialect.Tx) error {
	if err := tx.Rollback(); err != nil {
		return &cayenne.RollbackError{Err: err}
	}
	return nil
}

func count(ops []*rowOp, op validation.Op) int {
	n := 0
	for _, o := range ops {
		if o.op == op {
			n++
		}
	}
	return n
}

// plan turns the merged changes into ordered row operations.
func (c *DataContext) plan() ([]*rowOp, error) {
	var (
		inserts = make(map[string][]*DataObject)
		updates = make(map[string][]*rowOp)
		deletes = make(map[string][]*DataObject)
		// snapshots of deleted objects, for their locking values
		snapshots = make(map[*DataObject]map[string]any)
		ents      []string
	)
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			ents = append(ents, name)
		}
	}
	for _, ch := range c.graph.ObjectChanges() {
		n, ok := c.graph.Node(ch.ID)
		if !ok {
			continue
		}
		o := n.(*DataObject)
		switch o.state {
		case cayenne.New:
			inserts[o.entity.Name] = append(inserts[o.entity.Name], o)
		case cayenne.Deleted:
			deletes[o.entity.Name] = append(deletes[o.entity.Name], o)
			snapshots[o] = ch.Snapshot
		case cayenne.Modified, cayenne.Committed:
			op, err := updateOp(o, ch)
			if err != nil {
				return nil, err
			}
			if op == nil {
				continue
			}
			updates[o.entity.Name] = append(updates[o.entity.Name], op)
		default:
			continue
		}
		add(o.entity.Name)
	}
	s := c.domain.sorter
	var ops []*rowOp
	insertOrder := slices.Clone(ents)
	s.SortEntities(insertOrder, false)
	for _, name := range insertOrder {
		objs := inserts[name]
		if err := sorter.SortObjectsForEntity(s, name, objs, false); err != nil {
			return nil, err
		}
		for _, o := range objs {
			ops = append(ops, insertOp(o))
		}
	}
	for _, name := range insertOrder {
		ops = append(ops, updates[name]...)
	}
	deleteOrder := slices.Clone(ents)
	s.SortEntities(deleteOrder, true)
	for _, name := range deleteOrder {
		objs := deletes[name]
		if err := sorter.SortObjectsForEntity(s, name, objs, true); err != nil {
			return nil, err
		}
		for _, o := range objs {
			op, err := deleteOp(o, snapshots[o])
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func insertOp(o *DataObject) *rowOp {
	op := &rowOp{op: validation.OpInsert, obj: o, values: make(map[string]any)}
	for _, a := range o.entity.Attributes {
		if v, ok := o.values[a.Name]; ok && v != nil {
			op.values[a.Column] = v
			op.changed = append(op.changed, a.Name)
		}
	}
	for _, rel := range o.entity.Relationships {
		if rel.ToMany || !rel.ForeignKey() {
			continue
		}
		if t := o.toOne[rel.Name]; t != nil {
			setForeignKey(op.values, rel, t)
		}
	}
	return op
}

func updateOp(o *DataObject, ch *graph.ObjectChange) (*rowOp, error) {
	op := &rowOp{op: validation.OpUpdate, obj: o, values: make(map[string]any)}
	for _, a := range o.entity.Attributes {
		if v, ok := ch.Properties[a.Name]; ok {
			op.values[a.Column] = v
			op.changed = append(op.changed, a.Name)
		}
	}
	for _, rel := range o.entity.Relationships {
		if rel.ToMany || !rel.ForeignKey() {
			continue
		}
		if len(ch.Added(rel.Name)) == 0 && len(ch.Removed(rel.Name)) == 0 {
			continue
		}
		if t := o.toOne[rel.Name]; t != nil {
			setForeignKey(op.values, rel, t)
		} else {
			for _, j := range rel.Joins {
				op.values[j.Source] = nil
			}
		}
	}
	if len(op.values) == 0 {
		return nil, nil
	}
	key, err := rowKey(o, ch.Snapshot)
	if err != nil {
		return nil, err
	}
	op.key = key
	return op, nil
}

func deleteOp(o *DataObject, snapshot map[string]any) (*rowOp, error) {
	key, err := rowKey(o, snapshot)
	if err != nil {
		return nil, err
	}
	return &rowOp{op: validation.OpDelete, obj: o, key: key}, nil
}

// setForeignKey sets the columns of rel to the keys of t, or to a fkRef
// when t is not inserted yet.
func setForeignKey(values map[string]any, rel *mapping.Relationship, t *DataObject) {
	for _, j := range rel.Joins {
		if v, ok := t.keyValue(j.Target); ok {
			values[j.Source] = v
		} else {
			values[j.Source] = fkRef{target: t, column: j.Target}
		}
	}
}

// rowKey returns the primary key of the committed row of o, preferring the
// value an attribute had before it was changed. Locking attributes are
// added with their committed values.
func rowKey(o *DataObject, snapshot map[string]any) (map[string]any, error) {
	pks := o.entity.PrimaryKeys()
	if len(pks) == 0 {
		return nil, fmt.Errorf("access: %s has no primary key", o.entity.Name)
	}
	key := make(map[string]any, len(pks))
	for _, pk := range pks {
		if v, ok := snapshot[pk.Name]; ok && v != nil {
			key[pk.Column] = v
			continue
		}
		v, ok := o.keyValue(pk.Column)
		if !ok {
			return nil, fmt.Errorf("access: unknown primary key %s of %s", pk.Column, o)
		}
		key[pk.Column] = v
	}
	for _, a := range o.entity.LockingAttributes() {
		v, ok := snapshot[a.Name]
		if !ok {
			v = o.values[a.Name]
		}
		key[a.Column] = v
	}
	return key, nil
}

// validate runs the domain policy over the planned operations.
func (c *DataContext) validate(ctx context.Context, ops []*rowOp) error {
	if c.domain.policy == nil {
		return nil
	}
	changes := make([]*validation.Change, len(ops))
	for i, op := range ops {
		vals := make(map[string]any, len(op.obj.values))
		maps.Copy(vals, op.obj.values)
		for col, v := range op.values {
			a := op.obj.entity.AttributeForColumn(col)
			if a == nil {
				continue
			}
			if ref, ok := v.(fkRef); ok {
				v = ref.target.id
			}
			vals[a.Name] = v
		}
		changes[i] = &validation.Change{
			Op:      op.op,
			Entity:  op.obj.entity,
			ID:      op.obj.id,
			Values:  vals,
			Changed: op.changed,
		}
	}
	return validation.Validate(ctx, c.domain.policy, changes)
}

// execute runs one row operation. Keys generated by inserts are recorded
// in generated to resolve the foreign keys of later operations.
func (c *DataContext) execute(ctx context.Context, ex dialect.ExecQuerier, op *rowOp, generated map[*DataObject]map[string]any) error {
	a := c.domain.adapter
	e := op.obj.entity
	for col, v := range op.values {
		ref, ok := v.(fkRef)
		if !ok {
			continue
		}
		kv, ok := generated[ref.target][ref.column]
		if !ok {
			if kv, ok = ref.target.keyValue(ref.column); !ok {
				return fmt.Errorf("access: unresolved foreign key %s of %s to %s", col, op.obj, ref.target)
			}
		}
		op.values[col] = kv
	}
	switch op.op {
	case validation.OpInsert:
		ins, err := a.InsertSQL(e, op.values)
		if err != nil {
			return err
		}
		keys, err := insert(ctx, ex, ins)
		if err != nil {
			return err
		}
		maps.Copy(op.values, keys)
		generated[op.obj] = op.values
		return nil
	case validation.OpUpdate:
		stmt, err := a.UpdateSQL(e, op.values, op.key)
		if err != nil {
			return err
		}
		return execLocked(ctx, ex, stmt, op.obj)
	default:
		stmt, err := a.DeleteSQL(e, op.key)
		if err != nil {
			return err
		}
		return execLocked(ctx, ex, stmt, op.obj)
	}
}

func execLocked(ctx context.Context, ex dialect.ExecQuerier, stmt *sql.Statement, o *DataObject) error {
	n, err := sql.ExecStatement(ctx, ex, stmt)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: no row of %s matched", cayenne.ErrOptimisticLock, o)
	}
	return nil
}

// insert runs an insert and returns the generated key values by column.
func insert(ctx context.Context, ex dialect.ExecQuerier, ins *adapter.InsertStatement) (map[string]any, error) {
	keys := make(map[string]any, len(ins.Generated))
	if ins.Returning {
		rows, err := sql.QueryStatement(ctx, ex, ins.Statement)
		if err != nil {
			return nil, err
		}
		out, err := sql.ScanMaps(rows)
		if err != nil {
			return nil, err
		}
		if len(out) != 1 {
			return nil, fmt.Errorf("access: insert returned %d rows", len(out))
		}
		for _, attr := range ins.Generated {
			for col, v := range out[0] {
				if !strings.EqualFold(col, attr.Column) {
					continue
				}
				if keys[attr.Column], err = columnValue(attr, v); err != nil {
					return nil, err
				}
			}
		}
		return keys, nil
	}
	var res sql.Result
	if err := ex.Exec(ctx, ins.SQL, ins.Args(), &res); err != nil {
		return nil, err
	}
	switch len(ins.Generated) {
	case 0:
	case 1:
		id, err := generatedKey(ctx, ex, ins, res)
		if err != nil {
			return nil, fmt.Errorf("access: reading generated key: %w", err)
		}
		if keys[ins.Generated[0].Column], err = columnValue(ins.Generated[0], id); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("access: %d generated key columns can not be read back", len(ins.Generated))
	}
	return keys, nil
}

// generatedKey reads the key of a single generated column, from the
// identity query of the adapter when it has one.
func generatedKey(ctx context.Context, ex dialect.ExecQuerier, ins *adapter.InsertStatement, res sql.Result) (any, error) {
	if ins.IdentityQuery == "" {
		return res.LastInsertId()
	}
	rows := &sql.Rows{}
	if err := ex.Query(ctx, ins.IdentityQuery, []any{}, rows); err != nil {
		return nil, err
	}
	vals, err := sql.ScanValues(rows, 1)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 || vals[0][0] == nil {
		return nil, errors.New("identity query returned no key")
	}
	return vals[0][0], nil
}

// finish promotes the committed objects after the transaction succeeded.
func (c *DataContext) finish(ops []*rowOp) {
	touched := make(map[string]bool)
	for _, op := range ops {
		o := op.obj
		touched[o.entity.Name] = true
		switch op.op {
		case validation.OpDelete:
			c.graph.UnregisterNode(o.id)
			o.state, o.context = cayenne.Transient, nil
			continue
		case validation.OpInsert, validation.OpUpdate:
			for col, v := range op.values {
				if a := o.entity.AttributeForColumn(col); a != nil {
					o.values[a.Name] = v
				}
			}
		}
	}
	for _, op := range ops {
		if op.op != validation.OpInsert {
			continue
		}
		o := op.obj
		keys := make(map[string]any)
		for _, pk := range o.entity.PrimaryKeys() {
			if v, ok := o.values[pk.Name]; ok {
				keys[pk.Column] = v
			}
		}
		if len(keys) == 0 {
			continue
		}
		id := cayenne.NewCompositeID(o.entity.Name, keys)
		c.graph.NodeIDChanged(o.id, id)
		o.id = id
	}
	c.graph.Reset()
	c.settle()
	c.invalidate(touched)
}

func (c *DataContext) invalidate(entities map[string]bool) {
	if c.domain.cache == nil {
		return
	}
	for name := range entities {
		key := cayenne.CacheKey{Entity: name}
		if err := c.domain.cache.DeletePrefix(context.Background(), key.Prefix()); err != nil {
			c.domain.logger.Warn("access: invalidating query cache", "entity", name, "error", err)
		}
	}
}
