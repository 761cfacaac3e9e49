package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"github.com/oxygene76/reflectx/internal/types"
)

// FormatOpacityTableKey formats a metallicity, given as 100×[M/H], as the signed
// three-digit key used in correlated-k table names: 0 -> "+000", -50 -> "-050",
// 150 -> "+150". Magnitudes that would not produce exactly three digits fail.
func FormatOpacityTableKey(m float64) (string, error) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return "", errorsmod.Wrapf(types.ErrFormat, "metallicity %v is not finite", m)
	}
	if m != math.Trunc(m) {
		return "", errorsmod.Wrapf(types.ErrFormat, "metallicity %v is not an integer", m)
	}

	magnitude := int64(math.Abs(m))
	prefix := "+"
	if m < 0 {
		prefix = "-"
	}

	switch {
	case magnitude == 0:
		return "+000", nil
	case magnitude >= 10 && magnitude <= 99:
		return prefix + "0" + strconv.FormatInt(magnitude, 10), nil
	case magnitude >= 100 && magnitude <= 999:
		return prefix + strconv.FormatInt(magnitude, 10), nil
	}

	return "", errorsmod.Wrapf(types.ErrFormat, "metallicity %v has no three-digit key", m)
}

// ParseOpacityTableKey is the inverse of FormatOpacityTableKey
func ParseOpacityTableKey(key string) (float64, error) {
	if len(key) != 4 || (key[0] != '+' && key[0] != '-') {
		return 0, errorsmod.Wrapf(types.ErrFormat, "malformed metallicity key %q", key)
	}
	n, err := strconv.ParseUint(key[1:], 10, 16)
	if err != nil {
		return 0, errorsmod.Wrapf(types.ErrFormat, "malformed metallicity key %q", key)
	}

	value := float64(n)
	if key[0] == '-' {
		value = -value
	}

	// Reject keys the formatter would never produce, e.g. "+005" or "-000"
	canonical, err := FormatOpacityTableKey(value)
	if err != nil || canonical != key {
		return 0, errorsmod.Wrapf(types.ErrFormat, "non-canonical metallicity key %q", key)
	}
	return value, nil
}

// FormatCarbonToOxygenKey formats a C/O ratio as its percentage: 0.5 -> "050",
// 0.25 -> "025", 1 -> "100", 2.5 -> "250". The percentage is computed in exact decimal
// arithmetic so ratios like 0.29 do not pick up binary rounding noise.
func FormatCarbonToOxygenKey(ratio float64) (string, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return "", errorsmod.Wrapf(types.ErrFormat, "C/O ratio %v must be positive", ratio)
	}

	dec, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(ratio, 'f', -1, 64))
	if err != nil {
		return "", errorsmod.Wrapf(types.ErrFormat, "C/O ratio %v: %s", ratio, err)
	}
	pct := dec.MulInt64(100)
	if !pct.IsInteger() {
		return "", errorsmod.Wrapf(types.ErrFormat, "C/O ratio %v is not a whole percentage", ratio)
	}

	p := pct.TruncateInt64()
	switch {
	case p >= 1 && p <= 99:
		return "0" + strconv.FormatInt(p, 10), nil
	case p >= 100 && p <= 999:
		return strconv.FormatInt(p, 10), nil
	}
	return "", errorsmod.Wrapf(types.ErrFormat, "C/O percentage %d has no key", p)
}

// ParseCarbonToOxygenKey is the inverse of FormatCarbonToOxygenKey
func ParseCarbonToOxygenKey(key string) (float64, error) {
	if len(key) < 2 || len(key) > 3 {
		return 0, errorsmod.Wrapf(types.ErrFormat, "malformed C/O key %q", key)
	}
	p, err := strconv.ParseUint(key, 10, 16)
	if err != nil {
		return 0, errorsmod.Wrapf(types.ErrFormat, "malformed C/O key %q", key)
	}

	ratio, err := sdkmath.LegacyNewDec(int64(p)).QuoInt64(100).Float64()
	if err != nil {
		return 0, errorsmod.Wrapf(types.ErrFormat, "C/O key %q: %s", key, err)
	}
	canonical, err := FormatCarbonToOxygenKey(ratio)
	if err != nil || canonical != key {
		return 0, errorsmod.Wrapf(types.ErrFormat, "non-canonical C/O key %q", key)
	}
	return ratio, nil
}

// OpacityTableName returns the file name of the Sonora 2020 correlated-k table for a
// metallicity key and C/O key.
func OpacityTableName(mhKey, coKey string, noTiOVO bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "sonora_2020_feh%s_co_%s", mhKey, coKey)
	if noTiOVO {
		b.WriteString("_noTiOVO")
	}
	b.WriteString(".data.196")
	return b.String()
}
