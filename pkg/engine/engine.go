// Package engine defines the call/response contracts of the external atmosphere engine
// (climate, spectrum, cloud properties) and cloud recommender, and a subprocess bridge
// that speaks them.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"

	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/reflectx/internal/types"
	"github.com/oxygene76/reflectx/pkg/params"
)

// ConvergenceMarker is printed by the climate solver when it converges
const ConvergenceMarker = "YAY ! ENDING WITH CONVERGENCE"

// Operation names understood by the bridge
const (
	OpClimate         = "climate"
	OpSpectrum        = "spectrum"
	OpCloudProperties = "cloud_properties"
	OpRecommendGas    = "recommend_gas"
)

// Star is the stellar input of a model setup
type Star struct {
	Teff     float64 `json:"teff"`
	MH       float64 `json:"mh"` // dex
	LogG     float64 `json:"logg"`
	Radius   float64 `json:"radius"` // R_sun
	Database string  `json:"database"`
}

// Setup is the planet geometry shared by every engine call
type Setup struct {
	Calculation   string             `json:"calculation"`
	EffectiveTemp float64            `json:"effective_temp"` // K, internal temperature
	Gravity       params.GravitySpec `json:"gravity"`
	Star          Star               `json:"star"`
	SemiMajor     float64            `json:"semi_major"` // AU
	Phase         float64            `json:"phase"`      // radians
	NumTangle     int                `json:"num_tangle"`
	NumGangle     int                `json:"num_gangle"`
}

// NewSetup configures engine geometry from derived run parameters
func NewSetup(rp *params.RunParameters) (Setup, error) {
	gravity, err := rp.Planet.GravitySpec()
	if err != nil {
		return Setup{}, err
	}

	numTangle := rp.Planet.NumTangle
	if rp.Planet.Phase == 0 {
		numTangle = 1
	}

	return Setup{
		Calculation:   "planet",
		EffectiveTemp: rp.Planet.TInt,
		Gravity:       gravity,
		Star: Star{
			Teff:     rp.Star.Teff,
			MH:       rp.Star.MH,
			LogG:     rp.Star.LogG,
			Radius:   rp.Star.Radius,
			Database: "phoenix",
		},
		SemiMajor: rp.Planet.SemiMajor,
		Phase:     rp.Planet.Phase * math.Pi / 180,
		NumTangle: numTangle,
		NumGangle: rp.Planet.NumGangle,
	}, nil
}

// FullPhase returns a copy of the setup viewed at phase 0
func (s Setup) FullPhase() Setup {
	s.Phase = 0
	s.NumTangle = 1
	return s
}

// Profile is a per-layer atmosphere table keyed by column name (pressure, temperature,
// molecule abundances, kz)
type Profile map[string][]float64

// Layers returns the number of layers, taken from the pressure column
func (p Profile) Layers() int {
	return len(p["pressure"])
}

// WithColumn returns a copy of the profile with one column replaced. The column must
// have one value per layer.
func (p Profile) WithColumn(name string, values []float64) (Profile, error) {
	if len(values) != p.Layers() {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter,
			"column %s has %d values for %d layers", name, len(values), p.Layers())
	}
	out := make(Profile, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[name] = append([]float64(nil), values...)
	return out, nil
}

// GuillotGuess parameterises the analytic Guillot pressure-temperature profile
type GuillotGuess struct {
	Teq     float64 `json:"teq"`
	NLevel  int     `json:"nlevel"`
	TInt    float64 `json:"tint"`
	PBottom float64 `json:"p_bottom"`
	PTop    float64 `json:"p_top"`
}

// InitialGuess is either a Guillot parameter set or a supplied profile
type InitialGuess struct {
	Kind        params.GuessKind `json:"kind"`
	Guillot     *GuillotGuess    `json:"guillot,omitempty"`
	Pressure    []float64        `json:"pressure,omitempty"`
	Temperature []float64        `json:"temperature,omitempty"`
}

// ClimateRequest asks the engine to converge a radiative-convective profile
type ClimateRequest struct {
	OpacityTable    string       `json:"opacity_table"`
	WaveRange       [2]float64   `json:"wave_range"`
	Setup           Setup        `json:"setup"`
	Guess           InitialGuess `json:"guess"`
	Nstr            [6]int       `json:"nstr"`
	NoFCZns         int          `json:"nofczns"`
	RFacV           float64      `json:"rfacv"`
	SaveAllProfiles bool         `json:"save_all_profiles"`
	WithSpec        bool         `json:"with_spec"`
}

// ClimateResult is the converged (or last) profile. Converged is nil when the engine
// did not report it; the caller then inspects the captured log.
type ClimateResult struct {
	Pressure    []float64       `json:"pressure"`
	Temperature []float64       `json:"temperature"`
	Profile     Profile         `json:"ptchem"`
	State       json.RawMessage `json:"state,omitempty"`
	Converged   *bool           `json:"converged,omitempty"`
}

// SpectrumRequest asks for a reflected-light spectrum of a profile. OpacityTable names a
// monochromatic opacity database; empty selects the engine default.
type SpectrumRequest struct {
	OpacityTable string          `json:"opacity_table,omitempty"`
	WaveRange    [2]float64      `json:"wave_range"`
	Setup        Setup           `json:"setup"`
	Profile      Profile         `json:"profile"`
	Clouds       json.RawMessage `json:"clouds,omitempty"`
	Calculation  string          `json:"calculation"`
	FullOutput   bool            `json:"full_output"`
}

// SpectrumResult holds a native-resolution spectrum. Wavenumbers are in cm⁻¹.
type SpectrumResult struct {
	Wavenumber     []float64       `json:"wavenumber"`
	Albedo         []float64       `json:"albedo"`
	FpFs           []float64       `json:"fpfs_reflected"`
	StarWavenumber []float64       `json:"star_wavenumber"`
	StarFlux       []float64       `json:"star_flux"`
	FullOutput     json.RawMessage `json:"full_output,omitempty"`
}

// CloudRequest asks for cloud optical properties of a profile that carries a kz column
type CloudRequest struct {
	Setup       Setup    `json:"setup"`
	Profile     Profile  `json:"profile"`
	Condensates []string `json:"condensates"`
	Fsed        float64  `json:"fsed"`
	MH          float64  `json:"mh"`
	MMW         float64  `json:"mmw"`
	RefIndexDir string   `json:"refindex_dir"`
}

// CloudResult is the engine's cloud state, opaque to the pipeline
type CloudResult struct {
	Condensates []string        `json:"condensates"`
	State       json.RawMessage `json:"state"`
}

// RecommendRequest asks the cloud engine which condensates can form. Metallicity is
// linear relative to solar.
type RecommendRequest struct {
	Pressure    []float64 `json:"pressure"`
	Temperature []float64 `json:"temperature"`
	Metallicity float64   `json:"metallicity"`
	MMW         float64   `json:"mmw"`
}

// Atmosphere is the radiative-transfer and climate engine. Engine chatter is written to
// the supplied log writer.
type Atmosphere interface {
	Climate(ctx context.Context, req ClimateRequest, log io.Writer) (*ClimateResult, error)
	Spectrum(ctx context.Context, req SpectrumRequest, log io.Writer) (*SpectrumResult, error)
	CloudProperties(ctx context.Context, req CloudRequest, log io.Writer) (*CloudResult, error)
}

// CloudRecommender is the cloud-microphysics recommender
type CloudRecommender interface {
	RecommendGas(ctx context.Context, req RecommendRequest, log io.Writer) ([]string, error)
}

// Engine is both collaborators behind one handle
type Engine interface {
	Atmosphere
	CloudRecommender
}

// DetectConvergence scans captured solver output for the convergence marker
func DetectConvergence(output []byte) bool {
	return bytes.Contains(output, []byte(ConvergenceMarker))
}
