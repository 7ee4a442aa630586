package tileid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{name: "wrs pathrow", input: "044023", want: KindWRS},
		{name: "wrs with surrounding space", input: " 044024 ", want: KindWRS},
		{name: "mgrs id", input: "11UNU", want: KindMGRS},
		{name: "mgrs single digit zone", input: "04QFJ", want: KindMGRS},
		{name: "mgrs zone 60", input: "60WUT", want: KindMGRS},
		{name: "mgrs zone 61 rejected", input: "61WUT", want: KindUnknown},
		{name: "mgrs zone 00 rejected", input: "00UNU", want: KindUnknown},
		{name: "mgrs band I rejected", input: "11INU", want: KindUnknown},
		{name: "mgrs band O rejected", input: "11ONU", want: KindUnknown},
		{name: "mgrs band Y rejected", input: "11YNU", want: KindUnknown},
		{name: "mgrs column O rejected", input: "11UOU", want: KindUnknown},
		{name: "mgrs row W rejected", input: "11UNW", want: KindUnknown},
		{name: "mgrs row V accepted", input: "11UNV", want: KindMGRS},
		{name: "lowercase rejected", input: "11unu", want: KindUnknown},
		{name: "malformed", input: "AAB003", want: KindUnknown},
		{name: "five digits", input: "04402", want: KindUnknown},
		{name: "seven digits", input: "0440231", want: KindUnknown},
		{name: "mgrs with trailing junk", input: "11UNUX", want: KindUnknown},
		{name: "empty", input: "", want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.input))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "wrs", KindWRS.String())
	assert.Equal(t, "mgrs", KindMGRS.String())
	assert.Equal(t, "unknown", KindUnknown.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestParseWRS(t *testing.T) {
	tile, err := ParseWRS("044023")
	require.NoError(t, err)
	assert.Equal(t, "044", tile.Path)
	assert.Equal(t, "023", tile.Row)
	assert.Equal(t, "044023", tile.String())

	_, err = ParseWRS("11UNU")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParseMGRS(t *testing.T) {
	tile, err := ParseMGRS("11UNU")
	require.NoError(t, err)
	assert.Equal(t, "11U", tile.GZD)
	assert.Equal(t, "NU", tile.Square)
	assert.Equal(t, "11U", tile.Zone())
	assert.Equal(t, "11UNU", tile.String())

	_, err = ParseMGRS("AAB003")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestIsZone(t *testing.T) {
	assert.True(t, IsZone("11U"))
	assert.True(t, IsZone("10U"))
	assert.False(t, IsZone("11"))
	assert.False(t, IsZone("11I"))
	assert.False(t, IsZone("11UNU"))
}

func TestNormalizePathRow(t *testing.T) {
	assert.Equal(t, "044023", NormalizePathRow("44023"))
	assert.Equal(t, "044023", NormalizePathRow("044023"))
	assert.Equal(t, "001001", NormalizePathRow(" 1001 "))
	assert.Equal(t, "abc", NormalizePathRow("abc"))
	assert.Equal(t, "", NormalizePathRow(""))
}
