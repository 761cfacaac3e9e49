package params

import (
	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/reflectx/internal/types"
)

// CalculationReflected is the only spectrum calculation the pipeline requests
const CalculationReflected = "reflected"

// GravityKind selects how surface gravity is given to the engine
type GravityKind string

const (
	GravityByMass   GravityKind = "mass"
	GravityExplicit GravityKind = "explicit"
)

// GravitySpec is either a radius/mass pair (Jupiter units) or an explicit gravity in m/s².
type GravitySpec struct {
	Kind   GravityKind `json:"kind" yaml:"kind"`
	Radius float64     `json:"radius,omitempty" yaml:"radius,omitempty"` // R_jup
	Mass   float64     `json:"mass,omitempty" yaml:"mass,omitempty"`     // M_jup
	Value  float64     `json:"value,omitempty" yaml:"value,omitempty"`   // m/s²
}

// ResolveGravity builds a GravitySpec from the optional inputs. Exactly one of the
// radius/mass pair or the explicit gravity must be supplied.
func ResolveGravity(radius, mass, gravity *float64) (GravitySpec, error) {
	hasPair := radius != nil && mass != nil
	hasPartialPair := (radius != nil) != (mass != nil)
	hasExplicit := gravity != nil

	switch {
	case hasPartialPair:
		return GravitySpec{}, errorsmod.Wrap(types.ErrConfiguration, "gravity needs both radius and mass")
	case hasPair && hasExplicit:
		return GravitySpec{}, errorsmod.Wrap(types.ErrConfiguration, "both explicit gravity and radius/mass supplied")
	case hasExplicit:
		if *gravity <= 0 {
			return GravitySpec{}, errorsmod.Wrapf(types.ErrInvalidParameter, "gravity %v must be positive", *gravity)
		}
		return GravitySpec{Kind: GravityExplicit, Value: *gravity}, nil
	case hasPair:
		if *radius <= 0 || *mass <= 0 {
			return GravitySpec{}, errorsmod.Wrapf(types.ErrInvalidParameter, "radius %v and mass %v must be positive", *radius, *mass)
		}
		return GravitySpec{Kind: GravityByMass, Radius: *radius, Mass: *mass}, nil
	}
	return GravitySpec{}, errorsmod.Wrap(types.ErrConfiguration, "neither explicit gravity nor radius/mass supplied")
}

// GuessKind selects the initial pressure-temperature profile
type GuessKind string

const (
	GuessGuillot  GuessKind = "guillot"
	GuessSupplied GuessKind = "supplied"
)

// PlanetParameters describes the planet being modelled
type PlanetParameters struct {
	TInt        float64  `json:"tint"`         // K
	Teq         float64  `json:"teq"`          // K, derived
	Radius      float64  `json:"radius"`       // R_jup
	Mass        float64  `json:"mass"`         // M_jup
	Gravity     *float64 `json:"gravity"`      // m/s², overrides radius/mass when set
	SemiMajor   float64  `json:"semi_major"`   // AU
	Phase       float64  `json:"phase"`        // degrees, [0,180]
	MH          float64  `json:"mh"`           // bulk metallicity as tabulated
	MHKey       string   `json:"mh_key"`       // correlated-k metallicity key
	CtoO        float64  `json:"ctoo"`         // carbon-to-oxygen ratio
	COKey       string   `json:"co_key"`       // correlated-k C/O key
	NoTiOVO     bool     `json:"no_tio_vo"`    // drop TiO/VO opacity
	NumTangle   int      `json:"num_tangle"`   // azimuthal integration angles
	NumGangle   int      `json:"num_gangle"`   // zenith integration angles
	LocalCKPath string   `json:"local_ck_path"`
}

// GravitySpec resolves the planet's gravity variant
func (p PlanetParameters) GravitySpec() (GravitySpec, error) {
	var radius, mass *float64
	if p.Radius != 0 {
		radius = &p.Radius
	}
	if p.Mass != 0 {
		mass = &p.Mass
	}
	return ResolveGravity(radius, mass, p.Gravity)
}

// OpacityTableName returns the correlated-k table file name for this planet
func (p PlanetParameters) OpacityTableName() string {
	return OpacityTableName(p.MHKey, p.COKey, p.NoTiOVO)
}

// StarParameters describes the host star. It is read-only once derived.
type StarParameters struct {
	Teff        float64 `json:"teff"`        // K
	LogG        float64 `json:"logg"`        // cgs
	Metallicity float64 `json:"metallicity"` // linear, relative to solar
	MH          float64 `json:"mh"`          // [M/H] dex, log10(Metallicity)
	Radius      float64 `json:"radius"`      // R_sun
}

// ClimateRunConfig sizes the climate grid and its convergence controls
type ClimateRunConfig struct {
	NLevel    int       `json:"nlevel"`
	NoFCZns   int       `json:"nofczns"`
	NstrUpper int       `json:"nstr_upper"`
	NstrDeep  int       `json:"nstr_deep"` // always NLevel-2
	PBottom   float64   `json:"p_bottom"`  // log10 bar
	PTop      float64   `json:"p_top"`     // log10 bar
	RFacV     float64   `json:"rfacv"`
	Guess     GuessKind `json:"guess"`
}

// Nstr returns the engine's convective-zone guess vector
func (c ClimateRunConfig) Nstr() [6]int {
	return [6]int{0, c.NstrUpper, c.NstrDeep, 0, 0, 0}
}

// SpectrumConfig controls the reflected-light spectrum
type SpectrumConfig struct {
	WaveRange   [2]float64 `json:"wave_range"` // microns, ascending
	Resolution  float64    `json:"resolution"` // R
	Calculation string     `json:"calculation"`
	OpacityDB   string     `json:"opacity_db,omitempty"`
}

// RunParameters is everything derived from one table row
type RunParameters struct {
	Grid       string           `json:"grid"`
	PlanetType string           `json:"planet_type"`
	Planet     PlanetParameters `json:"planet"`
	Star       StarParameters   `json:"star"`
	Climate    ClimateRunConfig `json:"climate"`
	Spectrum   SpectrumConfig   `json:"spectrum"`
	Directory  string           `json:"directory"`
}
