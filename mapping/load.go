package mapping

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"
)

// Parse decodes a DataMap from YAML. Unknown fields are rejected.
// Defaults are applied and the result is validated.
func Parse(data []byte) (*DataMap, error) {
	var m DataMap
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("mapping: parse: %w", err)
	}
	m.ApplyDefaults()
	if err := m.Validate().Err(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads a DataMap from a YAML file.
func Load(path string) (*DataMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Marshal encodes the DataMap as YAML.
func (m *DataMap) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("mapping: marshal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DBName returns the default database name of a property or entity name,
// e.g. "ARTIST_NAME" for "artistName".
func DBName(name string) string {
	return strings.ToUpper(inflect.Underscore(name))
}

// ApplyDefaults fills in missing table and column names, joins of
// relationships that can be inferred, and the default delete rule.
//
// A to-one relationship without joins is joined from a column named like
// the target primary key column. A to-many relationship without joins
// mirrors the joins of the target's to-one relationship back to this
// entity.
func (m *DataMap) ApplyDefaults() {
	m.Link()
	for _, e := range m.Entities {
		if e.Table == "" {
			e.Table = DBName(e.Name)
		}
		for _, a := range e.Attributes {
			if a.Column == "" {
				a.Column = DBName(a.Name)
			}
		}
	}
	// To-one joins first, so that to-many relationships can mirror them.
	for _, toMany := range []bool{false, true} {
		for _, e := range m.Entities {
			for _, r := range e.Relationships {
				if r.ToMany == toMany {
					defaultRelationship(e, r)
				}
			}
		}
	}
}

func defaultRelationship(e *Entity, r *Relationship) {
	if r.DeleteRule == NoAction && r.ToMany {
		r.DeleteRule = Nullify
	}
	target := r.TargetEntity()
	if len(r.Joins) > 0 || target == nil {
		return
	}
	if !r.ToMany {
		for _, pk := range target.PrimaryKeys() {
			r.Joins = append(r.Joins, Join{Source: pk.Column, Target: pk.Column})
		}
		return
	}
	for _, back := range target.ToOne() {
		if back.Target == e.Name && len(back.Joins) > 0 {
			for _, j := range back.Joins {
				r.Joins = append(r.Joins, Join{Source: j.Target, Target: j.Source})
			}
			return
		}
	}
}

// Watch reloads the DataMap file whenever it changes on disk and passes
// the result to fn, until ctx is done. Failed reloads are passed as errors
// and watching continues.
func Watch(ctx context.Context, path string, fn func(*DataMap, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("mapping: watch: %w", err)
	}
	defer w.Close()
	path = filepath.Clean(path)
	// Editors often replace files, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("mapping: watch %s: %w", path, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || (!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create)) {
				continue
			}
			slog.Debug("mapping: reloading data map", "path", path, "op", ev.Op.String())
			fn(Load(path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, fmt.Errorf("mapping: watch %s: %w", path, err))
		}
	}
}
