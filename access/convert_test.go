package access

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
)

func TestColumnValue(t *testing.T) {
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	tests := []struct {
		typ  field.Type
		in   any
		want any
	}{
		{field.TypeInt64, []byte("42"), int64(42)},
		{field.TypeInt64, uint64(7), int64(7)},
		{field.TypeInt, int32(-3), int64(-3)},
		{field.TypeFloat64, "2.5", 2.5},
		{field.TypeFloat64, int64(2), 2.0},
		{field.TypeDecimal, "10.25", decimal.RequireFromString("10.25")},
		{field.TypeDecimal, int64(3), decimal.NewFromInt(3)},
		{field.TypeBool, int64(1), true},
		{field.TypeBool, "false", false},
		{field.TypeString, []byte("Dali"), "Dali"},
		{field.TypeString, int64(5), "5"},
		{field.TypeDate, "1904-05-11", time.Date(1904, 5, 11, 0, 0, 0, 0, time.UTC)},
		{field.TypeUUID, id.String(), id},
		{field.TypeUUID, id[:], id},
		{field.TypeBlob, "raw", []byte("raw")},
		{field.TypeInt64, nil, nil},
	}
	for _, tt := range tests {
		got, err := columnValue(&mapping.Attribute{Name: "x", Type: tt.typ}, tt.in)
		require.NoError(t, err, "%s %v", tt.typ, tt.in)
		if d, ok := tt.want.(decimal.Decimal); ok {
			assert.True(t, d.Equal(got.(decimal.Decimal)), "%s %v", tt.typ, tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, "%s %v", tt.typ, tt.in)
	}

	_, err := columnValue(&mapping.Attribute{Name: "x", Type: field.TypeInt64}, "many")
	assert.Error(t, err)
	_, err = columnValue(&mapping.Attribute{Name: "x", Type: field.TypeDate}, "yesterday")
	assert.Error(t, err)
	_, err = columnValue(&mapping.Attribute{Name: "x", Type: field.TypeInt64}, uint64(1<<63))
	assert.Error(t, err)
}
