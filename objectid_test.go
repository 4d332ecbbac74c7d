package cayenne_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/cayenne"
)

func TestObjectID(t *testing.T) {
	t.Run("Temporary", func(t *testing.T) {
		a := cayenne.NewTemporaryID("Artist")
		b := cayenne.NewTemporaryID("Artist")
		assert.True(t, a.IsTemporary())
		assert.NotEqual(t, a, b)
		assert.Equal(t, "Artist", a.Entity())
		assert.Contains(t, a.String(), "<Artist:temp:")
	})

	t.Run("Permanent", func(t *testing.T) {
		a := cayenne.NewObjectID("Artist", 5)
		b := cayenne.NewObjectID("Artist", int64(5))
		c := cayenne.NewObjectID("Artist", int32(5))
		assert.False(t, a.IsTemporary())
		assert.Equal(t, a, b)
		assert.Equal(t, a, c)
		assert.NotEqual(t, a, cayenne.NewObjectID("Painting", 5))
		assert.Equal(t, "<Artist:5>", a.String())
	})

	t.Run("MapKey", func(t *testing.T) {
		m := map[cayenne.ObjectID]int{}
		m[cayenne.NewObjectID("Artist", 1)] = 1
		m[cayenne.NewObjectID("Artist", int64(1))]++
		assert.Len(t, m, 1)
		assert.Equal(t, 2, m[cayenne.NewObjectID("Artist", uint8(1))])
	})

	t.Run("Composite", func(t *testing.T) {
		a := cayenne.NewCompositeID("ArtistExhibit", map[string]any{"EXHIBIT_ID": 2, "ARTIST_ID": 1})
		b := cayenne.NewCompositeID("ArtistExhibit", map[string]any{"ARTIST_ID": int64(1), "EXHIBIT_ID": int64(2)})
		assert.Equal(t, a, b)
		assert.Equal(t, cayenne.CompositeKey("ARTIST_ID=1,EXHIBIT_ID=2"), a.Key())

		single := cayenne.NewCompositeID("Artist", map[string]any{"ID": 9})
		assert.Equal(t, cayenne.NewObjectID("Artist", 9), single)
	})

	t.Run("Decimal", func(t *testing.T) {
		a := cayenne.NewObjectID("Painting", decimal.NewFromInt(5))
		b := cayenne.NewObjectID("Painting", decimal.RequireFromString("5.00"))
		assert.Equal(t, a, b)
		assert.Equal(t, cayenne.NewObjectID("Painting", 5), a)
		m := map[cayenne.ObjectID]bool{a: true}
		assert.True(t, m[b])

		x := cayenne.NewObjectID("Painting", decimal.RequireFromString("1.50"))
		y := cayenne.NewObjectID("Painting", decimal.NewFromFloat(1.5))
		assert.Equal(t, x, y)
		assert.Equal(t, cayenne.DecimalKey("1.5"), x.Key())
	})

	t.Run("Time", func(t *testing.T) {
		utc := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		local := utc.In(time.FixedZone("CEST", 2*60*60))
		assert.Equal(t, cayenne.NewObjectID("Exhibit", utc), cayenne.NewObjectID("Exhibit", local))
	})

	t.Run("Unsigned", func(t *testing.T) {
		big := cayenne.NewObjectID("Artist", uint64(math.MaxUint64))
		assert.Equal(t, uint64(math.MaxUint64), big.Key())
		assert.NotEqual(t, cayenne.NewObjectID("Artist", int64(-1)), big)
		assert.Equal(t, cayenne.NewObjectID("Artist", 7), cayenne.NewObjectID("Artist", uint64(7)))
	})

	t.Run("Zero", func(t *testing.T) {
		assert.True(t, cayenne.ObjectID{}.IsZero())
		assert.False(t, cayenne.NewTemporaryID("A").IsZero())
	})
}

func TestPersistenceState(t *testing.T) {
	assert.Equal(t, "new", cayenne.New.String())
	assert.Equal(t, "hollow", cayenne.Hollow.String())
	assert.Equal(t, "unknown", cayenne.PersistenceState(99).String())
	assert.True(t, cayenne.Modified.Dirty())
	assert.False(t, cayenne.Committed.Dirty())
}

func TestCacheKey(t *testing.T) {
	k := cayenne.CacheKey{Entity: "Artist", Dialect: "postgres", Qualifier: `name = "a"`, Limit: 10}
	assert.Equal(t, "Artist:", k.Prefix())
	assert.Equal(t, `Artist:postgres:name = "a"::10:0`, k.String())
}
