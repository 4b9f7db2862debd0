package report

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

var (
	outlineFill   = color.Gray{Y: 0xd3}
	outlineStroke = color.Gray{Y: 0x80}
	unknownFuel   = hexColor("#7F7F7F")
)

const (
	renewableHex = "#00CC96"
	nonrenewHex  = "#EF553B"
)

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func renderPlot(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// mapChart draws the state outline in light gray and each located plant as a
// point colored by primary fuel, framed on the state's centroid.
func mapChart(title string, boundary orb.MultiPolygon, plants []domain.PlantRecord, colors map[string]string) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Longitude"
	p.Y.Label.Text = "Latitude"

	for _, poly := range boundary {
		for _, ring := range poly {
			xys := make(plotter.XYs, len(ring))
			for i, pt := range ring {
				xys[i] = plotter.XY{X: pt.X(), Y: pt.Y()}
			}
			shape, err := plotter.NewPolygon(xys)
			if err != nil {
				return nil, fmt.Errorf("state outline: %w", err)
			}
			shape.Color = outlineFill
			shape.LineStyle.Color = outlineStroke
			shape.LineStyle.Width = vg.Points(0.5)
			p.Add(shape)
		}
	}

	byFuel := make(map[string]plotter.XYs)
	var order []string
	for _, pl := range plants {
		if !pl.HasCoordinates() {
			continue
		}
		fuel := pl.PrimaryFuel.String
		if _, ok := byFuel[fuel]; !ok {
			order = append(order, fuel)
		}
		byFuel[fuel] = append(byFuel[fuel], plotter.XY{X: pl.Lon.Float64, Y: pl.Lat.Float64})
	}
	for _, fuel := range order {
		s, err := plotter.NewScatter(byFuel[fuel])
		if err != nil {
			return nil, fmt.Errorf("plant points: %w", err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		s.GlyphStyle.Color = fuelColor(fuel, colors)
		p.Add(s)
		label := fuel
		if label == "" {
			label = "unknown"
		}
		p.Legend.Add(label, s)
	}
	p.Legend.Top = true

	if len(boundary) > 0 {
		frame(p, boundary)
	}
	return renderPlot(p, 7*vg.Inch, 6*vg.Inch)
}

// frame sets square axis ranges centered on the boundary's centroid.
func frame(p *plot.Plot, boundary orb.MultiPolygon) {
	center, _ := planar.CentroidArea(boundary)
	b := boundary.Bound()
	half := math.Max(b.Max.X()-b.Min.X(), b.Max.Y()-b.Min.Y())/2 + 0.5
	p.X.Min, p.X.Max = center.X()-half, center.X()+half
	p.Y.Min, p.Y.Max = center.Y()-half, center.Y()+half
}

// topPlantsChart draws a horizontal bar per plant, largest at the top.
func topPlantsChart(title string, top []domain.PlantRecord, colors map[string]string) ([]byte, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Net generation (MWh)"

	names := make([]string, len(top))
	for i, pl := range top {
		// Bars are drawn bottom-up; reverse so the largest plant is on top.
		pos := len(top) - 1 - i
		names[pos] = plantLabel(pl)

		bar, err := plotter.NewBarChart(plotter.Values{pl.NetGen.Float64}, vg.Points(18))
		if err != nil {
			return nil, fmt.Errorf("top plants bar: %w", err)
		}
		bar.Horizontal = true
		bar.XMin = float64(pos)
		bar.Color = fuelColor(pl.PrimaryFuel.String, colors)
		bar.LineStyle.Width = 0
		p.Add(bar)
	}
	p.NominalY(names...)
	return renderPlot(p, 7*vg.Inch, 4*vg.Inch)
}

func plantLabel(p domain.PlantRecord) string {
	name := p.PlantName.String
	if name == "" {
		name = "(unnamed)"
	}
	if p.PrimaryFuel.Valid {
		name += " [" + p.PrimaryFuel.String + "]"
	}
	return name
}

func fuelColor(fuel string, colors map[string]string) color.Color {
	if hex, ok := colors[fuel]; ok {
		return hexColor(hex)
	}
	return unknownFuel
}

// splitChart draws renewable and nonrenewable totals with their percentages.
func splitChart(title string, split domain.GenerationSplit) ([]byte, error) {
	bars := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      600,
		Height:     400,
		BarWidth:   120,
		Bars: []chart.Value{
			{
				Label: fmt.Sprintf("Renewable %.1f%%", split.RenewablePct()),
				Value: split.Renewable,
				Style: chart.Style{FillColor: hexColor(renewableHex), StrokeColor: hexColor(renewableHex)},
			},
			{
				Label: fmt.Sprintf("Nonrenewable %.1f%%", split.NonrenewablePct()),
				Value: split.Nonrenewable,
				Style: chart.Style{FillColor: hexColor(nonrenewHex), StrokeColor: hexColor(nonrenewHex)},
			},
		},
	}
	var buf bytes.Buffer
	if err := bars.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render split chart: %w", err)
	}
	return buf.Bytes(), nil
}

// fuelPieChart draws the positive fuel shares, colored by fuel.
func fuelPieChart(title string, mix []domain.FuelShare, colors map[string]string) ([]byte, error) {
	var values []chart.Value
	for _, share := range mix {
		if share.MWh <= 0 {
			continue
		}
		c := unknownFuel
		if hex, ok := colors[share.Fuel]; ok {
			c = hexColor(hex)
		}
		values = append(values, chart.Value{
			Label: share.Fuel,
			Value: share.MWh,
			Style: chart.Style{FillColor: c, StrokeColor: drawing.ColorWhite},
		})
	}
	if len(values) == 0 {
		return nil, errNoPositiveShares
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  512,
		Height: 512,
		Values: values,
	}
	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render fuel chart: %w", err)
	}
	return buf.Bytes(), nil
}
