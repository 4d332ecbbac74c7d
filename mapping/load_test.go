package mapping_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/internal/fixture"
	"github.com/syssam/cayenne/mapping"
)

func TestParse(t *testing.T) {
	_, err := mapping.Parse([]byte("name: x\nentitys: []\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = mapping.Parse([]byte(`
name: x
entities:
  - name: A
    attributes:
      - {name: id, type: nosuchtype, primaryKey: true}
`))
	assert.Error(t, err)

	_, err = mapping.Parse([]byte(`
name: x
entities:
  - name: A
    attributes:
      - {name: id, type: int}
`))
	assert.ErrorContains(t, err, "A: no primary key")
}

func TestMarshalRoundTrip(t *testing.T) {
	m := fixture.DataMap()
	data, err := m.Marshal()
	require.NoError(t, err)

	again, err := mapping.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, m.EntityNames(), again.EntityNames())
	assert.Equal(t, m.Entity("Painting").Relationship("toArtist").Joins, again.Entity("Painting").Relationship("toArtist").Joins)
	assert.Equal(t, "ESTIMATED_PRICE", again.Entity("Painting").Attribute("estimatedPrice").Column)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, fixture.YAML(), 0o600))

	m, err := mapping.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gallery", m.Name)

	_, err = mapping.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	require.NoError(t, os.WriteFile(path, fixture.YAML(), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loaded := make(chan *mapping.DataMap, 8)
	done := make(chan error, 1)
	go func() {
		done <- mapping.Watch(ctx, path, func(m *mapping.DataMap, err error) {
			if err == nil {
				loaded <- m
			}
		})
	}()

	// Rewrite until the watcher is registered and picks up a change.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case m := <-loaded:
			assert.Equal(t, "gallery", m.Name)
			cancel()
			assert.ErrorIs(t, <-done, context.Canceled)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, fixture.YAML(), 0o600))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
