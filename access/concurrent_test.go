package access

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/cayenne/dialect"
	"github.com/syssam/cayenne/dialect/sql/adapter"
)

func TestSQLiteConcurrentContexts(t *testing.T) {
	cache := NewMemoryCache()
	d, db := sqliteDomain(t, WithCache(cache, 0))
	ctx := t.Context()
	const n = 8

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			c := d.NewContext()
			a, err := c.NewObject("Artist")
			if err != nil {
				return err
			}
			if err := c.Set(a, "artistName", fmt.Sprintf("Artist %d", i)); err != nil {
				return err
			}
			p, err := c.NewObject("Painting")
			if err != nil {
				return err
			}
			if err := c.Set(p, "paintingTitle", fmt.Sprintf("Painting %d", i)); err != nil {
				return err
			}
			if err := c.SetToOne(p, "toArtist", a); err != nil {
				return err
			}
			return c.Commit(ctx)
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, n, count(t, db, "ARTIST"))
	assert.Equal(t, n, count(t, db, "PAINTING"))

	results := make([][]*DataObject, n)
	for i := range n {
		g.Go(func() error {
			objs, err := d.NewContext().Select(ctx, SelectQuery{
				Entity:     "Painting",
				Orderings:  []adapter.Ordering{adapter.Asc("paintingTitle")},
				Cache:      true,
				Prefetches: []string{"toArtist"},
			})
			results[i] = objs
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, objs := range results {
		require.Len(t, objs, n)
		assert.Equal(t, titles(results[0]), titles(objs))
		for _, p := range objs {
			require.NotNil(t, p.ToOne("toArtist"), p.String())
			assert.Equal(t, p.Get("artistId"), p.ToOne("toArtist").Get("artistId"))
		}
	}
	assert.Equal(t, 1, cache.Len())
	assert.NotSame(t, results[0][0], results[1][0], "every context holds its own objects")
}

// gateDriver holds queries until released and counts them.
type gateDriver struct {
	dialect.Driver
	queries atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (d *gateDriver) Query(ctx context.Context, query string, args, v any) error {
	if d.queries.Add(1) == 1 {
		close(d.started)
	}
	select {
	case <-d.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.Driver.Query(ctx, query, args, v)
}

func TestCachedSelectSharesLoad(t *testing.T) {
	base, _ := sqliteDomain(t)
	ctx := t.Context()
	c := base.NewContext()
	newObject(t, c, "Gallery", "galleryName", "Louvre")
	newObject(t, c, "Gallery", "galleryName", "Tate")
	require.NoError(t, c.Commit(ctx))

	gate := &gateDriver{Driver: base.Driver(), started: make(chan struct{}), release: make(chan struct{})}
	cache := NewMemoryCache()
	d, err := NewDataDomain(base.DataMap(), gate, WithCache(cache, time.Minute))
	require.NoError(t, err)

	const n = 6
	q := SelectQuery{Entity: "Gallery", Orderings: []adapter.Ordering{adapter.Asc("galleryName")}, Cache: true}
	results := make([][]*DataObject, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			objs, err := d.NewContext().Select(ctx, q)
			results[i] = objs
			return err
		})
	}
	<-gate.started
	time.Sleep(50 * time.Millisecond)
	close(gate.release)
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, gate.queries.Load(), "concurrent misses share one query")
	for _, objs := range results {
		require.Len(t, objs, 2)
		assert.Equal(t, "Louvre", objs[0].Get("galleryName"))
		assert.Equal(t, "Tate", objs[1].Get("galleryName"))
	}

	_, err = d.NewContext().Select(ctx, q)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gate.queries.Load(), "served from the cache")
}
