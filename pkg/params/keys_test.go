package params

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/reflectx/internal/types"
)

func TestFormatOpacityTableKey(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "+000"},
		{-50, "-050"},
		{50, "+050"},
		{10, "+010"},
		{100, "+100"},
		{-150, "-150"},
		{999, "+999"},
	}

	for _, tt := range tests {
		got, err := FormatOpacityTableKey(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		back, err := ParseOpacityTableKey(got)
		require.NoError(t, err)
		assert.Equal(t, tt.in, back)
	}
}

func TestFormatOpacityTableKeyRejectsAmbiguousWidth(t *testing.T) {
	for _, in := range []float64{5, -3, 1000, -1200, 12.5, math.NaN(), math.Inf(1)} {
		_, err := FormatOpacityTableKey(in)
		assert.True(t, errors.Is(err, types.ErrFormat), "input %v: %v", in, err)
	}
}

func TestParseOpacityTableKeyRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "000", "+05", "+005", "-000", "+0a0", "*050", "+0500"} {
		_, err := ParseOpacityTableKey(in)
		assert.True(t, errors.Is(err, types.ErrFormat), "input %q: %v", in, err)
	}
}

func TestFormatCarbonToOxygenKey(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "050"},
		{0.25, "025"},
		{0.29, "029"},
		{0.57, "057"},
		{0.05, "05"},
		{1, "100"},
		{1.5, "150"},
		{2.5, "250"},
	}

	for _, tt := range tests {
		got, err := FormatCarbonToOxygenKey(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)

		back, err := ParseCarbonToOxygenKey(got)
		require.NoError(t, err)
		assert.InDelta(t, tt.in, back, 1e-12)
	}
}

func TestFormatCarbonToOxygenKeyRejects(t *testing.T) {
	for _, in := range []float64{0, -0.5, 0.455, 0.001, 10, math.NaN()} {
		_, err := FormatCarbonToOxygenKey(in)
		assert.True(t, errors.Is(err, types.ErrFormat), "input %v: %v", in, err)
	}
}

func TestOpacityTableName(t *testing.T) {
	assert.Equal(t, "sonora_2020_feh+000_co_100.data.196", OpacityTableName("+000", "100", false))
	assert.Equal(t, "sonora_2020_feh-050_co_050_noTiOVO.data.196", OpacityTableName("-050", "050", true))
}
