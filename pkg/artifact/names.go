package artifact

import (
	"strconv"
	"strings"
)

// File names inside a run directory
const (
	RunLogFile       = "terminal_output.txt"
	SpeciesFile      = "virga-recommended-molecules.json"
	SpeciesPlotFile  = "recomended-gasses.html"
	CloudFreeModel   = "cloud-free-model.json"
	CloudFreeInputs  = "cloud-free-model-inputs.json"
	CloudyModel      = "cloudy-model.json"
	CloudyInputs     = "cloudy-model-inputs.json"
	jsonExt          = ".json"
	pngExt           = ".png"
	resolutionPrefix = "-R"
)

func withR(base string, R float64, ext string) string {
	return base + resolutionPrefix + strconv.FormatFloat(R, 'f', -1, 64) + ext
}

// CloudFreeFullOutput is the native cloud-free spectrum at resolution R
func CloudFreeFullOutput(R float64) string {
	return withR("cloud-free-spectrum-full-output", R, jsonExt)
}

// CloudyFullOutput is the native cloudy spectrum at resolution R
func CloudyFullOutput(R float64) string {
	return withR("cloudy-spectrum-full-output", R, jsonExt)
}

// CloudFreeSpectrum is the regridded cloud-free spectrum
func CloudFreeSpectrum(R float64) string {
	return withR("cloud-free-spectrum", R, jsonExt)
}

// CloudySpectrum is the regridded cloudy spectrum
func CloudySpectrum(R float64) string {
	return withR("cloudy-spectrum", R, jsonExt)
}

// RegriddedSpectrum names the output of regridding a stored spectrum record
func RegriddedSpectrum(source string, R float64) string {
	return withR(strings.TrimSuffix(source, jsonExt)+"-regridded", R, jsonExt)
}

// ModelPrefix names the model flavour in artifact names
func ModelPrefix(cloudy bool) string {
	if cloudy {
		return "cloudy"
	}
	return "cloud-free"
}

// AlbedoPlot is the regridded albedo spectrum plot
func AlbedoPlot(cloudy bool, R float64) string {
	return withR(ModelPrefix(cloudy)+"-albedo-spectrum", R, pngExt)
}

// FpFsPlot is the regridded contrast spectrum plot
func FpFsPlot(cloudy bool, R float64) string {
	return withR(ModelPrefix(cloudy)+"-fpfs-spectrum", R, pngExt)
}

// FourPanelPlot is the albedo, contrast and flux summary of the cloud-free model
func FourPanelPlot(R float64) string { return withR("cloud-free-4SpectrumPlot", R, pngExt) }

// ComparisonPlot is the cloudy versus cloud-free overlay
func ComparisonPlot(R float64) string {
	return withR("reflected-spectrum-plot", R, pngExt)
}
