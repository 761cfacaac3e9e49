package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/astronomy/orbital"
)

// Row is one line of the parameter table, keyed by column name
type Row map[string]string

// RequiredColumns lists the columns every row must carry
var RequiredColumns = []string{
	"name", "planet_type", "tint", "st_teff", "rstar", "au",
	"logg", "feh", "nlevel", "nofczns", "nstr_upper", "rfacv", "mh", "mh_str", "cto",
	"p_bottom", "p_top", "noTiOVO", "guess", "wave_range",
}

// GravityColumns give surface gravity as a radius/mass pair. An explicit gravity column
// replaces both.
var GravityColumns = []string{"pl_rad", "pl_mass"}

// OrbitColumns can replace the phase column
var OrbitColumns = []string{"mean_anomaly", "ecc", "inc", "argp"}

// Has reports whether the column is present and non-blank
func (r Row) Has(key string) bool {
	return strings.TrimSpace(r[key]) != ""
}

// String returns a required text column
func (r Row) String(key string) (string, error) {
	v := strings.TrimSpace(r[key])
	if v == "" {
		return "", errorsmod.Wrapf(types.ErrMissingField, "column %q", key)
	}
	return v, nil
}

// Float returns a required numeric column
func (r Row) Float(key string) (float64, error) {
	s, err := r.String(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errorsmod.Wrapf(types.ErrInvalidParameter, "column %q: %q is not a number", key, s)
	}
	return v, nil
}

// Int returns a required integer column. Values like "90.0" are accepted.
func (r Row) Int(key string) (int, error) {
	v, err := r.Float(key)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, errorsmod.Wrapf(types.ErrInvalidParameter, "column %q: %v is not an integer", key, v)
	}
	return int(v), nil
}

// Bool returns a required boolean column
func (r Row) Bool(key string) (bool, error) {
	s, err := r.String(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errorsmod.Wrapf(types.ErrInvalidParameter, "column %q: %q is not a boolean", key, s)
	}
	return b, nil
}

// OptionalFloat returns nil when the column is absent or blank
func (r Row) OptionalFloat(key string) (*float64, error) {
	if !r.Has(key) {
		return nil, nil
	}
	v, err := r.Float(key)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseWaveRange parses a bracketed pair like "[0.5, 1.8]"
func ParseWaveRange(s string) ([2]float64, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "[")
	trimmed = strings.TrimSuffix(trimmed, "]")

	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return [2]float64{}, errorsmod.Wrapf(types.ErrInvalidParameter, "wave range %q is not a pair", s)
	}

	var out [2]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [2]float64{}, errorsmod.Wrapf(types.ErrInvalidParameter, "wave range %q: %s", s, err)
		}
		out[i] = v
	}
	if !(out[0] > 0 && out[0] < out[1]) {
		return [2]float64{}, errorsmod.Wrapf(types.ErrInvalidParameter, "wave range %q must be positive and ascending", s)
	}
	return out, nil
}

// Deriver turns table rows into run parameters. Zero angle counts, resolution and
// redistribution factor fall back to DefaultDeriver.
type Deriver struct {
	NumTangle      int
	NumGangle      int
	Resolution     float64
	CKPath         string
	BondAlbedo     float64
	Redistribution float64
}

// DefaultDeriver returns the settings used by the base-model grid
func DefaultDeriver() Deriver {
	return Deriver{
		NumTangle:      6,
		NumGangle:      6,
		Resolution:     150,
		BondAlbedo:     DefaultBondAlbedo,
		Redistribution: DefaultRedistribution,
	}
}

// DeriveRunParameters derives run parameters with the default settings
func DeriveRunParameters(row Row) (*RunParameters, error) {
	return DefaultDeriver().Derive(row)
}

// Derive validates a row and computes every derived quantity. It performs no I/O.
func (d Deriver) Derive(row Row) (*RunParameters, error) {
	for _, col := range RequiredColumns {
		if !row.Has(col) {
			return nil, errorsmod.Wrapf(types.ErrMissingField, "column %q", col)
		}
	}

	rp := &RunParameters{}
	rp.Grid, _ = row.String("name")
	rp.PlanetType, _ = row.String("planet_type")

	star, err := deriveStar(row)
	if err != nil {
		return nil, err
	}
	rp.Star = star

	planet, err := d.derivePlanet(row, star)
	if err != nil {
		return nil, err
	}
	rp.Planet = planet

	climate, err := deriveClimate(row)
	if err != nil {
		return nil, err
	}
	rp.Climate = climate

	spec, err := d.deriveSpectrum(row)
	if err != nil {
		return nil, err
	}
	rp.Spectrum = spec

	rp.Directory = DirectoryName(rp)
	return rp, nil
}

func deriveStar(row Row) (StarParameters, error) {
	var s StarParameters
	var err error

	if s.Teff, err = row.Float("st_teff"); err != nil {
		return s, err
	}
	if s.LogG, err = row.Float("logg"); err != nil {
		return s, err
	}
	if s.Radius, err = row.Float("rstar"); err != nil {
		return s, err
	}
	if s.Metallicity, err = row.Float("feh"); err != nil {
		return s, err
	}
	if s.Metallicity <= 0 {
		return s, errorsmod.Wrapf(types.ErrInvalidParameter, "stellar metallicity %v must be positive (linear, solar = 1)", s.Metallicity)
	}
	s.MH = math.Log10(s.Metallicity)
	return s, nil
}

func (d Deriver) derivePlanet(row Row, star StarParameters) (PlanetParameters, error) {
	def := DefaultDeriver()
	p := PlanetParameters{
		NumTangle:   firstPositive(d.NumTangle, def.NumTangle),
		NumGangle:   firstPositive(d.NumGangle, def.NumGangle),
		LocalCKPath: d.CKPath,
	}
	var err error

	if p.TInt, err = row.Float("tint"); err != nil {
		return p, err
	}
	if p.SemiMajor, err = row.Float("au"); err != nil {
		return p, err
	}
	if err := p.deriveGravity(row); err != nil {
		return p, err
	}
	if p.MH, err = row.Float("mh"); err != nil {
		return p, err
	}
	if p.CtoO, err = row.Float("cto"); err != nil {
		return p, err
	}
	if p.NoTiOVO, err = row.Bool("noTiOVO"); err != nil {
		return p, err
	}
	if row.Has("local_ck_path") {
		p.LocalCKPath, _ = row.String("local_ck_path")
	}

	raw, _ := row.String("mh_str")
	mhStr, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return p, errorsmod.Wrapf(types.ErrFormat, "column %q: %q is not an opacity table metallicity", "mh_str", raw)
	}
	if p.MHKey, err = FormatOpacityTableKey(mhStr); err != nil {
		return p, err
	}
	if p.COKey, err = FormatCarbonToOxygenKey(p.CtoO); err != nil {
		return p, err
	}

	albedo := d.BondAlbedo
	redistribution := firstPositiveFloat(d.Redistribution, def.Redistribution)
	if p.Teq, err = ComputeEquilibriumTemperature(star.Teff, star.Radius, p.SemiMajor, albedo, redistribution); err != nil {
		return p, err
	}

	if p.Phase, err = derivePhase(row); err != nil {
		return p, err
	}

	if row.Has("num_tangle") {
		if p.NumTangle, err = row.Int("num_tangle"); err != nil {
			return p, err
		}
	}
	if row.Has("num_gangle") {
		if p.NumGangle, err = row.Int("num_gangle"); err != nil {
			return p, err
		}
	}
	if p.NumTangle < 1 || p.NumGangle < 1 {
		return p, errorsmod.Wrapf(types.ErrInvalidParameter, "integration angles %d/%d must be positive", p.NumTangle, p.NumGangle)
	}
	// Full phase is symmetric in azimuth
	if p.Phase == 0 {
		p.NumTangle = 1
	}

	return p, nil
}

// deriveGravity reads either the radius/mass pair or the explicit gravity column.
// A row carrying both is a configuration error.
func (p *PlanetParameters) deriveGravity(row Row) error {
	gravity, err := row.OptionalFloat("gravity")
	if err != nil {
		return err
	}
	if gravity == nil {
		for _, col := range GravityColumns {
			if !row.Has(col) {
				return errorsmod.Wrapf(types.ErrMissingField, "column %q (or %q)", col, "gravity")
			}
		}
	}
	radius, err := row.OptionalFloat("pl_rad")
	if err != nil {
		return err
	}
	mass, err := row.OptionalFloat("pl_mass")
	if err != nil {
		return err
	}

	if _, err := ResolveGravity(radius, mass, gravity); err != nil {
		return err
	}
	if radius != nil {
		p.Radius, p.Mass = *radius, *mass
	}
	p.Gravity = gravity
	return nil
}

// derivePhase reads the phase column, or computes it from orbital elements when the
// column is blank.
func derivePhase(row Row) (float64, error) {
	if row.Has("phase") {
		phase, err := row.Float("phase")
		if err != nil {
			return 0, err
		}
		if phase < 0 || phase > 180 {
			return 0, errorsmod.Wrapf(types.ErrInvalidParameter, "phase %v outside [0,180]", phase)
		}
		return phase, nil
	}

	var elems [4]float64
	for i, col := range OrbitColumns {
		v, err := row.Float(col)
		if err != nil {
			if errorsmod.IsOf(err, types.ErrMissingField) {
				return 0, errorsmod.Wrapf(types.ErrMissingField, "column %q (or %s)", "phase", strings.Join(OrbitColumns, ", "))
			}
			return 0, err
		}
		elems[i] = v
	}
	alpha, err := orbital.PhaseAngle(elems[0], elems[1], elems[2], elems[3])
	if err != nil {
		return 0, err
	}
	// Keep directory names short and let exact full phase trigger the symmetry shortcut
	return math.Round(alpha*1e4) / 1e4, nil
}

func deriveClimate(row Row) (ClimateRunConfig, error) {
	var c ClimateRunConfig
	var err error

	if c.NLevel, err = row.Int("nlevel"); err != nil {
		return c, err
	}
	if c.NoFCZns, err = row.Int("nofczns"); err != nil {
		return c, err
	}
	if c.NstrUpper, err = row.Int("nstr_upper"); err != nil {
		return c, err
	}
	if c.RFacV, err = row.Float("rfacv"); err != nil {
		return c, err
	}
	if c.PBottom, err = row.Float("p_bottom"); err != nil {
		return c, err
	}
	if c.PTop, err = row.Float("p_top"); err != nil {
		return c, err
	}

	if c.NLevel < 3 {
		return c, errorsmod.Wrapf(types.ErrInvalidParameter, "nlevel %d must be at least 3", c.NLevel)
	}
	c.NstrDeep = c.NLevel - 2
	if c.NstrUpper < 1 || c.NstrUpper >= c.NstrDeep {
		return c, errorsmod.Wrapf(types.ErrInvalidParameter, "nstr_upper %d outside [1,%d)", c.NstrUpper, c.NstrDeep)
	}
	if c.NoFCZns < 1 {
		return c, errorsmod.Wrapf(types.ErrInvalidParameter, "nofczns %d must be positive", c.NoFCZns)
	}
	if c.PBottom <= c.PTop {
		return c, errorsmod.Wrapf(types.ErrInvalidParameter, "p_bottom %v must exceed p_top %v", c.PBottom, c.PTop)
	}

	guess, _ := row.String("guess")
	switch strings.ToLower(guess) {
	case "guillot":
		c.Guess = GuessGuillot
	case "user", "supplied", "user_supplied":
		c.Guess = GuessSupplied
	default:
		return c, errorsmod.Wrapf(types.ErrInvalidParameter, "unknown initial guess %q", guess)
	}
	return c, nil
}

func (d Deriver) deriveSpectrum(row Row) (SpectrumConfig, error) {
	s := SpectrumConfig{
		Resolution:  firstPositiveFloat(d.Resolution, DefaultDeriver().Resolution),
		Calculation: CalculationReflected,
	}

	raw, _ := row.String("wave_range")
	wr, err := ParseWaveRange(raw)
	if err != nil {
		return s, err
	}
	s.WaveRange = wr

	if row.Has("R") {
		if s.Resolution, err = row.Float("R"); err != nil {
			return s, err
		}
		if s.Resolution <= 0 {
			return s, errorsmod.Wrapf(types.ErrInvalidParameter, "resolution %v must be positive", s.Resolution)
		}
	}
	if row.Has("opa_file") {
		s.OpacityDB, _ = row.String("opa_file")
	}
	return s, nil
}

// DirectoryName builds the deterministic run directory name from the identifying parameters
func DirectoryName(rp *RunParameters) string {
	body := "rad" + formatNumber(rp.Planet.Radius) + "-mass" + formatNumber(rp.Planet.Mass)
	if rp.Planet.Gravity != nil {
		body = "grav" + formatNumber(*rp.Planet.Gravity)
	}
	return fmt.Sprintf("%s-%s-Tstar%s-Rstar%s-Teq%d-sep%s-%s-mh%s-co%s-phase%s",
		rp.Grid, rp.PlanetType,
		formatNumber(rp.Star.Teff),
		formatNumber(rp.Star.Radius),
		int64(math.Round(rp.Planet.Teq)),
		formatNumber(rp.Planet.SemiMajor),
		body,
		formatNumber(rp.Planet.MH),
		formatNumber(rp.Planet.CtoO),
		formatNumber(rp.Planet.Phase),
	)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstPositiveFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
