package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/syssam/cayenne/schema/field"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want field.Type
	}{
		{"VARCHAR", field.TypeString},
		{"char", field.TypeChar},
		{"text", field.TypeLongVarchar},
		{"CLOB", field.TypeClob},
		{"bigint", field.TypeInt64},
		{"numeric", field.TypeDecimal},
		{"timestamp", field.TypeTime},
		{" boolean ", field.TypeBool},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := field.ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := field.ParseType("geometry")
	assert.Error(t, err)
}

func TestTypeClassification(t *testing.T) {
	assert.True(t, field.TypeDecimal.Numeric())
	assert.False(t, field.TypeString.Numeric())
	assert.True(t, field.TypeChar.Textual())
	assert.True(t, field.TypeClob.Textual())
	assert.True(t, field.TypeClob.LOB())
	assert.True(t, field.TypeBlob.LOB())
	assert.False(t, field.TypeBytes.LOB())
	assert.False(t, field.TypeInvalid.Valid())
	assert.True(t, field.TypeUUID.Valid())
	assert.Equal(t, "invalid", field.Type(200).String())
}

func TestTypeYAML(t *testing.T) {
	var v struct {
		Type field.Type `yaml:"type"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("type: clob\n"), &v))
	assert.Equal(t, field.TypeClob, v.Type)

	out, err := yaml.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, "type: clob\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("type: nope\n"), &v))
}
