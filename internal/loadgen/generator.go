package loadgen

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// crop is one commodity line of the generator catalogue.
type crop struct {
	group   string
	name    string
	seasons []string
}

var (
	catalogue = []crop{
		{"Cereals", "Wheat", []string{"Rabi"}},
		{"Cereals", "Rice", []string{"Kharif"}},
		{"Vegetables", "Tomato", []string{"Kharif", "Rabi", "Zaid"}},
		{"Pulses", "Chickpea", []string{"Rabi"}},
		{"Fruits", "Mango", []string{"Zaid"}},
	}
	markets = map[string][]string{
		"Punjab":      {"Ludhiana", "Amritsar"},
		"Haryana":     {"Karnal", "Hisar"},
		"Maharashtra": {"Pune", "Nashik"},
	}
	states = []string{"Punjab", "Haryana", "Maharashtra"}
)

// Generator produces plausible request bodies. It is not safe for
// concurrent use.
type Generator struct {
	rnd *rand.Rand
	now time.Time
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now}
}

func (g *Generator) between(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}

func (g *Generator) pick(xs []string) string {
	return xs[g.rnd.IntN(len(xs))]
}

// date returns a day within the last year, formatted without zero padding
// one time in four to exercise lenient parsing.
func (g *Generator) date() string {
	d := g.now.AddDate(0, 0, -g.rnd.IntN(365))
	if g.rnd.IntN(4) == 0 {
		return fmt.Sprintf("%d/%d/%d", d.Year(), d.Month(), d.Day())
	}
	return d.Format("2006/01/02")
}

func (g *Generator) place() (c crop, season, state, market string) {
	c = catalogue[g.rnd.IntN(len(catalogue))]
	state = g.pick(states)
	return c, g.pick(c.seasons), state, g.pick(markets[state])
}

// Price returns one price request body.
func (g *Generator) Price() PriceBody {
	c, season, state, market := g.place()
	return PriceBody{
		Date:           g.date(),
		CommodityGroup: c.group,
		CropType:       c.name,
		StateName:      state,
		MarketLocation: market,
		QuantityKg:     float64(50 + g.rnd.IntN(5000)),
		QualityGrade:   1 + g.rnd.IntN(3),
		Season:         season,
		TransportCost:  g.between(10, 500),
		DemandIndex:    g.between(0, 1),
	}
}

// Demand returns one demand request body.
func (g *Generator) Demand() DemandBody {
	c, season, state, market := g.place()
	return DemandBody{
		Date:                  g.date(),
		CommodityGroup:        c.group,
		CropType:              c.name,
		StateName:             state,
		MarketLocation:        market,
		Season:                season,
		TotalQuantitySold:     g.between(100, 20000),
		AvgPricePerKg:         g.between(5, 120),
		HistoricalDemand7d:    g.between(0, 8000),
		PriceTrend7d:          g.between(-1, 1),
		EstimatedProductionKg: g.between(1000, 500000),
		PolicySupportScore:    g.between(0, 1),
		FestivalFlag:          g.rnd.IntN(2),
		WeatherIndex:          g.between(0, 1),
	}
}

// generate builds n bodies with next.
func generate[T any](n int, next func() T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = next()
	}
	return out
}
