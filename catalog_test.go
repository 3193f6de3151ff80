package nibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePumpModel(t *testing.T) {
	m, err := ParsePumpModel("F1245")
	require.NoError(t, err)
	assert.Equal(t, F1245, m)

	m, err = ParsePumpModel("f1145")
	require.NoError(t, err)
	assert.Equal(t, F1145, m)

	_, err = ParsePumpModel("XXXX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid pump model")
}

func TestLookup(t *testing.T) {
	info, ok := Lookup(F1245, 40004)
	require.True(t, ok)
	assert.Equal(t, VariableInfo{Name: "BT1 Outdoor temp", Factor: 10, Type: S16, Kind: Sensor}, info)

	info, ok = Lookup(F1145, 40004)
	require.True(t, ok)
	assert.Equal(t, "BT1 Outdoor temp", info.Name)

	_, ok = Lookup(F1245, 1)
	assert.False(t, ok)
	_, ok = Lookup(PumpModel("VVM310"), 40004)
	assert.False(t, ok)
}

func TestCoilsSorted(t *testing.T) {
	coils := Coils(F1245)
	require.NotEmpty(t, coils)
	for i := 1; i < len(coils); i++ {
		assert.Less(t, coils[i-1], coils[i])
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name     string
		info     VariableInfo
		raw      int32
		expected float64
	}{
		{"s16 positive", VariableInfo{Factor: 10, Type: S16}, 125, 12.5},
		{"s16 negative from 16 bit read-out", VariableInfo{Factor: 10, Type: S16}, 0xFF85, -12.3},
		{"s8 negative", VariableInfo{Factor: 1, Type: S8}, 0xFE, -2},
		{"u8 masks", VariableInfo{Factor: 1, Type: U8}, 0x1FF, 255},
		{"u16 masks", VariableInfo{Factor: 10, Type: U16}, 0x1FFFF, 6553.5},
		{"u32", VariableInfo{Factor: 1, Type: U32}, -1, 4294967295},
		{"s32", VariableInfo{Factor: 100, Type: S32}, -12345, -123.45},
		{"unsigned not rounded", VariableInfo{Factor: 1000, Type: U16}, 1, 0.001},
		{"signed rounds half to even", VariableInfo{Factor: 1000, Type: S16}, 125, 0.12},
		{"signed rounds half to even up", VariableInfo{Factor: 1000, Type: S16}, 135, 0.14},
		{"zero factor", VariableInfo{Type: S16}, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.info.Scale(tt.raw), 1e-9)
		})
	}
}

func TestRaw(t *testing.T) {
	info := VariableInfo{Name: "Heat Offset S1", Factor: 1, Type: S8, Kind: Setting}
	raw, err := info.Raw(-3)
	require.NoError(t, err)
	assert.Equal(t, int32(-3), raw)

	_, err = info.Raw(200)
	assert.Error(t, err)

	info = VariableInfo{Name: "Min Supply System 1", Factor: 10, Type: S16, Kind: Setting}
	raw, err = info.Raw(22.5)
	require.NoError(t, err)
	assert.Equal(t, int32(225), raw)
	assert.Equal(t, 22.5, info.Scale(raw))
}

func TestDataTypeString(t *testing.T) {
	assert.Equal(t, "S16", S16.String())
	assert.Equal(t, "DataType(9)", DataType(9).String())
	assert.Equal(t, "Setting", Setting.String())
}
