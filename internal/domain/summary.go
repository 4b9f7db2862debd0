package domain

import (
	"slices"
	"sort"
)

// FuelPalette is the qualitative color cycle assigned to fuels in first-seen order.
var FuelPalette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// FuelColors assigns a palette color to each primary fuel in order of first
// appearance. Plants without a fuel code get no entry.
func FuelColors(plants []PlantRecord) map[string]string {
	colors := make(map[string]string)
	for _, p := range plants {
		if !p.PrimaryFuel.Valid {
			continue
		}
		if _, ok := colors[p.PrimaryFuel.String]; ok {
			continue
		}
		colors[p.PrimaryFuel.String] = FuelPalette[len(colors)%len(FuelPalette)]
	}
	return colors
}

// Fuels returns the distinct primary fuels in order of first appearance.
func Fuels(plants []PlantRecord) []string {
	var fuels []string
	for _, p := range plants {
		if p.PrimaryFuel.Valid && !slices.Contains(fuels, p.PrimaryFuel.String) {
			fuels = append(fuels, p.PrimaryFuel.String)
		}
	}
	return fuels
}

// TopPlants returns up to n plants with the largest net generation, largest
// first. Plants without a net generation figure are skipped; ties keep
// dataset order.
func TopPlants(plants []PlantRecord, n int) []PlantRecord {
	var ranked []PlantRecord
	for _, p := range plants {
		if p.NetGen.Valid {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].NetGen.Float64 > ranked[j].NetGen.Float64
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// GenerationSplit totals a selection's generation by renewability.
type GenerationSplit struct {
	Net          float64 // sum of PLNGENAN
	Renewable    float64 // sum of PLGENATR
	Nonrenewable float64 // sum of PLGENATN
}

// RenewablePct returns the renewable share of renewable+nonrenewable, in percent.
func (g GenerationSplit) RenewablePct() float64 {
	return pct(g.Renewable, g.Renewable+g.Nonrenewable)
}

// NonrenewablePct returns the nonrenewable share of renewable+nonrenewable, in percent.
func (g GenerationSplit) NonrenewablePct() float64 {
	return pct(g.Nonrenewable, g.Renewable+g.Nonrenewable)
}

func pct(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// SplitGeneration sums generation figures, skipping NULLs.
func SplitGeneration(plants []PlantRecord) GenerationSplit {
	var g GenerationSplit
	for _, p := range plants {
		if p.NetGen.Valid {
			g.Net += p.NetGen.Float64
		}
		if p.Renewable.Valid {
			g.Renewable += p.Renewable.Float64
		}
		if p.Nonrenewable.Valid {
			g.Nonrenewable += p.Nonrenewable.Float64
		}
	}
	return g
}

// FuelShare is one slice of the fuel mix.
type FuelShare struct {
	Fuel string
	MWh  float64
}

// FuelMix sums nonrenewable plus renewable generation per primary fuel,
// sorted by fuel code. Plants without a fuel code are skipped.
func FuelMix(plants []PlantRecord) []FuelShare {
	totals := make(map[string]float64)
	for _, p := range plants {
		if !p.PrimaryFuel.Valid {
			continue
		}
		v := totals[p.PrimaryFuel.String]
		if p.Nonrenewable.Valid {
			v += p.Nonrenewable.Float64
		}
		if p.Renewable.Valid {
			v += p.Renewable.Float64
		}
		totals[p.PrimaryFuel.String] = v
	}

	mix := make([]FuelShare, 0, len(totals))
	for fuel, mwh := range totals {
		mix = append(mix, FuelShare{Fuel: fuel, MWh: mwh})
	}
	slices.SortFunc(mix, func(a, b FuelShare) int {
		switch {
		case a.Fuel < b.Fuel:
			return -1
		case a.Fuel > b.Fuel:
			return 1
		}
		return 0
	})
	return mix
}
