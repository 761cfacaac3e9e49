package spectrum

import (
	"bytes"
	"html/template"
	"image/color"
	"io"
	"math"

	errorsmod "cosmossdk.io/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/oxygene76/reflectx/internal/types"
)

var (
	colorCloudFree = color.RGBA{R: 0x1f, G: 0x3a, B: 0x93, A: 0xff}
	colorCloudy    = color.RGBA{R: 0xd9, G: 0x5f, B: 0x02, A: 0xff}
	colorStar      = color.RGBA{R: 0xb8, G: 0x86, B: 0x0b, A: 0xff}
)

// Plot sizes
const (
	PanelWidth  = 8 * vg.Inch
	PanelHeight = 5 * vg.Inch
)

// Line is one labelled curve on a wavelength axis
type Line struct {
	Label string
	S     Series
	Color color.Color
}

// xys converts a series to microns, dropping points a log axis cannot show
func xys(s Series, logY bool) plotter.XYs {
	pts := make(plotter.XYs, 0, s.Len())
	for i, w := range s.Wavenumber {
		y := s.Flux[i]
		if w <= 0 || math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		if logY && y <= 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: 1e4 / w, Y: y})
	}
	return pts
}

// SpectrumPlot draws one or more spectra against wavelength in microns
func SpectrumPlot(title, ylabel string, logY bool, lines ...Line) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Wavelength [μm]"
	p.Y.Label.Text = ylabel
	if logY {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	p.Add(plotter.NewGrid())

	for _, l := range lines {
		pts := xys(l.S, logY)
		if len(pts) < 2 {
			return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "%q has %d plottable points", l.Label, len(pts))
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "%q: %s", l.Label, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		if l.Color != nil {
			line.LineStyle.Color = l.Color
		}
		p.Add(line)
		if l.Label != "" {
			p.Legend.Add(l.Label, line)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// AlbedoPlot draws the geometric albedo spectrum
func AlbedoPlot(s Series, R float64) (*plot.Plot, error) {
	return SpectrumPlot(titleR("Albedo", R), "Albedo", false, Line{S: s, Color: colorCloudFree})
}

// ContrastPlot draws the planet:star flux ratio on a log axis
func ContrastPlot(s Series, R float64) (*plot.Plot, error) {
	return SpectrumPlot(titleR("Fp/Fs", R), "Fp/Fs", true, Line{S: s, Color: colorCloudFree})
}

// ComparisonPlot overlays cloud-free and cloudy spectra
func ComparisonPlot(cloudFree, cloudy Series, ylabel string, logY bool) (*plot.Plot, error) {
	return SpectrumPlot("Reflected light", ylabel, logY,
		Line{Label: "Cloud-free", S: cloudFree, Color: colorCloudFree},
		Line{Label: "Cloudy", S: cloudy, Color: colorCloudy},
	)
}

func titleR(name string, R float64) string {
	return name + " (R=" + formatR(R) + ")"
}

// WritePNG renders a single plot as PNG
func WritePNG(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(PanelWidth, PanelHeight, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// FourPanel lays out albedo, contrast, stellar flux and planet flux in a 2x2 grid
type FourPanel struct {
	Albedo     Series
	FpFs       Series
	Star       Series
	PlanetFlux Series
	R          float64
}

// WritePNG renders the four panels into one PNG
func (f FourPanel) WritePNG(w io.Writer) error {
	albedo, err := AlbedoPlot(f.Albedo, f.R)
	if err != nil {
		return err
	}
	contrast, err := ContrastPlot(f.FpFs, f.R)
	if err != nil {
		return err
	}
	star, err := SpectrumPlot("Stellar flux", "Flux", true, Line{S: f.Star, Color: colorStar})
	if err != nil {
		return err
	}
	planet, err := SpectrumPlot(titleR("Planet flux", f.R), "Flux", true, Line{S: f.PlanetFlux, Color: colorCloudy})
	if err != nil {
		return err
	}

	plots := [][]*plot.Plot{
		{albedo, contrast},
		{star, planet},
	}
	img := vgimg.New(2*PanelWidth, 2*PanelHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	png := vgimg.PngCanvas{Canvas: img}
	_, err = png.WriteTo(w)
	return err
}

// ProfilePlot draws a pressure-temperature profile with pressure increasing downward
func ProfilePlot(pressure, temperature []float64) (*plot.Plot, error) {
	if len(pressure) != len(temperature) {
		return nil, errorsmod.Wrapf(types.ErrInvalidParameter, "%d pressures for %d temperatures", len(pressure), len(temperature))
	}
	pts := make(plotter.XYs, 0, len(pressure))
	for i, p := range pressure {
		if p > 0 && !math.IsNaN(temperature[i]) {
			pts = append(pts, plotter.XY{X: temperature[i], Y: p})
		}
	}
	if len(pts) < 2 {
		return nil, errorsmod.Wrap(types.ErrInvalidParameter, "profile has fewer than two plottable layers")
	}

	p := plot.New()
	p.Title.Text = "Pressure-temperature profile"
	p.X.Label.Text = "Temperature [K]"
	p.Y.Label.Text = "Pressure [bar]"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LogScale{}}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(2)
	line.LineStyle.Color = colorCloudFree
	p.Add(line)
	return p, nil
}

var speciesPage = template.Must(template.New("species").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Recommended condensates</title></head>
<body>
<h1>Recommended condensates</h1>
<p>Metallicity {{printf "%g" .Metallicity}}x solar, mean molecular weight {{printf "%g" .MMW}}</p>
{{if .Species}}<ul>
{{range .Species}}<li>{{.}}</li>
{{end}}</ul>{{else}}<p>No condensates expected.</p>{{end}}
<figure>{{.Profile}}</figure>
</body>
</html>
`))

// SpeciesReport is the content of the recommended-condensates page
type SpeciesReport struct {
	Species     []string
	Metallicity float64
	MMW         float64
	Pressure    []float64
	Temperature []float64
}

// WriteHTML renders the page with the profile embedded as inline SVG
func (r SpeciesReport) WriteHTML(w io.Writer) error {
	p, err := ProfilePlot(r.Pressure, r.Temperature)
	if err != nil {
		return err
	}
	c := vgsvg.New(6*vg.Inch, 5*vg.Inch)
	p.Draw(draw.New(c))
	var svg bytes.Buffer
	if _, err := c.WriteTo(&svg); err != nil {
		return err
	}

	return speciesPage.Execute(w, struct {
		SpeciesReport
		Profile template.HTML
	}{r, template.HTML(svg.String())})
}
