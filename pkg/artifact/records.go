package artifact

import (
	"encoding/json"
	"time"

	"github.com/oxygene76/reflectx/pkg/engine"
	"github.com/oxygene76/reflectx/pkg/params"
	"github.com/oxygene76/reflectx/pkg/spectrum"
)

// RecordVersion is written into every record. Readers reject newer versions.
const RecordVersion = 1

// Header identifies a record on disk
type Header struct {
	Version int       `json:"version"`
	Kind    string    `json:"kind"`
	Written time.Time `json:"written"`
}

func (h *Header) header() *Header { return h }

// Record is anything the store persists as versioned JSON
type Record interface {
	Kind() string
	header() *Header
}

// InputsRecord captures everything that went into the cloud-free model
type InputsRecord struct {
	Header
	RunID        string                `json:"run_id"`
	Parameters   params.RunParameters  `json:"parameters"`
	Setup        engine.Setup          `json:"setup"`
	OpacityTable string                `json:"opacity_table"`
	Guess        engine.InitialGuess   `json:"guess"`
	Request      engine.ClimateRequest `json:"request"`
}

func (*InputsRecord) Kind() string { return "cloud-free-inputs" }

// ClimateRecord is the cloud-free climate result
type ClimateRecord struct {
	Header
	Converged   bool            `json:"converged"`
	Pressure    []float64       `json:"pressure"`
	Temperature []float64       `json:"temperature"`
	Profile     engine.Profile  `json:"profile"`
	State       json.RawMessage `json:"state,omitempty"`
}

func (*ClimateRecord) Kind() string { return "cloud-free-model" }

// SpeciesRecord lists the condensates the cloud engine recommends
type SpeciesRecord struct {
	Header
	Species     []string `json:"species"`
	Metallicity float64  `json:"metallicity"` // linear, relative to solar
	MMW         float64  `json:"mmw"`
}

func (*SpeciesRecord) Kind() string { return "recommended-species" }

// SpectrumRecord is a native-resolution spectrum computed at resolution R
type SpectrumRecord struct {
	Header
	Resolution float64 `json:"resolution"`
	Phase      float64 `json:"phase"` // degrees
	Cloudy     bool    `json:"cloudy"`
	engine.SpectrumResult
}

func (*SpectrumRecord) Kind() string { return "spectrum" }

// AlbedoSeries returns the albedo spectrum as a series
func (r *SpectrumRecord) AlbedoSeries() spectrum.Series {
	return spectrum.Series{Wavenumber: r.Wavenumber, Flux: r.Albedo}
}

// FpFsSeries returns the planet:star contrast spectrum as a series
func (r *SpectrumRecord) FpFsSeries() spectrum.Series {
	return spectrum.Series{Wavenumber: r.Wavenumber, Flux: r.FpFs}
}

// StarSeries returns the stellar flux spectrum as a series
func (r *SpectrumRecord) StarSeries() spectrum.Series {
	return spectrum.Series{Wavenumber: r.StarWavenumber, Flux: r.StarFlux}
}

// CloudyInputsRecord captures the cloud parameters of a cloudy model
type CloudyInputsRecord struct {
	Header
	Kz          float64  `json:"kz"`
	Fsed        float64  `json:"fsed"`
	MH          float64  `json:"mh"`
	MMW         float64  `json:"mmw"`
	Condensates []string `json:"condensates"`
	Overridden  bool     `json:"overridden"`
}

func (*CloudyInputsRecord) Kind() string { return "cloudy-inputs" }

// CloudyRecord is the engine's cloud state for a run
type CloudyRecord struct {
	Header
	Condensates []string        `json:"condensates"`
	State       json.RawMessage `json:"state"`
}

func (*CloudyRecord) Kind() string { return "cloudy-model" }

// RegriddedRecord is a spectrum averaged onto a constant-R grid
type RegriddedRecord struct {
	Header
	Resolution float64                `json:"resolution"`
	Quantity   string                 `json:"quantity"`
	Series     spectrum.Series        `json:"series"`
	Source     string                 `json:"source,omitempty"`
	Native     *engine.SpectrumResult `json:"native,omitempty"`
}

func (*RegriddedRecord) Kind() string { return "regridded-spectrum" }

// Quantities a regridded spectrum can hold
const (
	QuantityAlbedo = "albedo"
	QuantityFpFs   = "fpfs"
)
