// Package analytics turns a run's listings into the numbers behind the
// dashboard charts and the filterable results table.
package analytics

import (
	"math"
	"sort"
	"strings"

	"streeteasy_scraper/models"
)

const UnknownNeighborhood = "Unknown"

// Row is a listing with the derived columns the charts need.
type Row struct {
	models.Listing
	PricePerSqFt     *float64 `json:"price_per_sqft"`
	TotalMonthlyCost int      `json:"total_monthly_cost"`
}

// Prepare derives price per square foot and total monthly cost for every
// listing. Listings without a neighborhood are grouped under "Unknown".
func Prepare(listings []models.Listing) []Row {
	rows := make([]Row, 0, len(listings))
	for _, l := range listings {
		r := Row{Listing: l}
		if strings.TrimSpace(r.Neighborhood) == "" {
			r.Neighborhood = UnknownNeighborhood
		}
		if l.Price != nil && l.SqFt != nil && *l.SqFt > 0 {
			ppsf := float64(*l.Price) / float64(*l.SqFt)
			r.PricePerSqFt = &ppsf
		}
		if l.Taxes != nil {
			r.TotalMonthlyCost += *l.Taxes
		}
		if l.Fees != nil {
			r.TotalMonthlyCost += *l.Fees
		}
		rows = append(rows, r)
	}
	return rows
}

// Stats summarises a set of values.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

func describe(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return Stats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
	}
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin also
// includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// PriceHistogram buckets listing prices into equal-width bins spanning the
// observed range. Returns nil when no listing has a price.
func PriceHistogram(rows []Row, bins int) []Bin {
	if bins <= 0 {
		bins = 50
	}
	var prices []float64
	for _, r := range rows {
		if r.Price != nil {
			prices = append(prices, float64(*r.Price))
		}
	}
	if len(prices) == 0 {
		return nil
	}
	st := describe(prices)
	if st.Min == st.Max {
		return []Bin{{Lower: st.Min, Upper: st.Max, Count: len(prices)}}
	}

	width := (st.Max - st.Min) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = st.Min + float64(i)*width
		out[i].Upper = st.Min + float64(i+1)*width
	}
	out[bins-1].Upper = st.Max
	for _, p := range prices {
		i := int((p - st.Min) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// NeighborhoodValue is the average price per square foot in a neighborhood.
type NeighborhoodValue struct {
	Neighborhood    string  `json:"neighborhood"`
	AvgPricePerSqFt float64 `json:"avg_price_per_sqft"`
	Count           int     `json:"count"`
}

// PricePerSqftByNeighborhood averages price per square foot by
// neighborhood, most expensive first.
func PricePerSqftByNeighborhood(rows []Row) []NeighborhoodValue {
	groups := map[string][]float64{}
	for _, r := range rows {
		if r.PricePerSqFt != nil {
			groups[r.Neighborhood] = append(groups[r.Neighborhood], *r.PricePerSqFt)
		}
	}
	out := make([]NeighborhoodValue, 0, len(groups))
	for name, vals := range groups {
		st := describe(vals)
		out = append(out, NeighborhoodValue{Neighborhood: name, AvgPricePerSqFt: st.Mean, Count: st.Count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgPricePerSqFt != out[j].AvgPricePerSqFt {
			return out[i].AvgPricePerSqFt > out[j].AvgPricePerSqFt
		}
		return out[i].Neighborhood < out[j].Neighborhood
	})
	return out
}

// MinListingsForDaysChart is how many listings a run needs before a days on
// market distribution says anything.
const MinListingsForDaysChart = 10

// DaysOnMarketDistribution describes days on market for listings that have
// a non-negative value. ok is false when the run is too small.
func DaysOnMarketDistribution(rows []Row) (Stats, bool) {
	if len(rows) < MinListingsForDaysChart {
		return Stats{}, false
	}
	var days []float64
	for _, r := range rows {
		if r.DaysOnMarket != nil && *r.DaysOnMarket >= 0 {
			days = append(days, float64(*r.DaysOnMarket))
		}
	}
	if len(days) == 0 {
		return Stats{}, false
	}
	return describe(days), true
}

// CostBand groups listings by total monthly cost.
type CostBand struct {
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	AvgTaxes float64 `json:"avg_taxes"`
	AvgFees  float64 `json:"avg_fees"`
}

var (
	costEdges  = []float64{0, 1000, 2000, 3000, 5000, 10000, math.Inf(1)}
	costLabels = []string{"<$1k", "$1-2k", "$2-3k", "$3-5k", "$5-10k", ">$10k"}
)

// costBand returns the index of the band containing v. Bands are closed on
// the right; the first band also includes its lower edge.
func costBand(v float64) int {
	if v < costEdges[0] {
		return -1
	}
	for i := 1; i < len(costEdges); i++ {
		if v <= costEdges[i] {
			return i - 1
		}
	}
	return -1
}

// MonthlyCostBreakdown averages taxes and fees per total-cost band for
// listings that report at least one of them. Every band is returned, empty
// ones with zero averages.
func MonthlyCostBreakdown(rows []Row) []CostBand {
	type acc struct {
		n             int
		taxes, fees   float64
		nTaxes, nFees int
	}
	accs := make([]acc, len(costLabels))
	for _, r := range rows {
		if r.Taxes == nil && r.Fees == nil {
			continue
		}
		i := costBand(float64(r.TotalMonthlyCost))
		if i < 0 {
			continue
		}
		accs[i].n++
		if r.Taxes != nil {
			accs[i].taxes += float64(*r.Taxes)
			accs[i].nTaxes++
		}
		if r.Fees != nil {
			accs[i].fees += float64(*r.Fees)
			accs[i].nFees++
		}
	}

	out := make([]CostBand, len(costLabels))
	for i, a := range accs {
		out[i] = CostBand{Label: costLabels[i], Count: a.n}
		if a.nTaxes > 0 {
			out[i].AvgTaxes = a.taxes / float64(a.nTaxes)
		}
		if a.nFees > 0 {
			out[i].AvgFees = a.fees / float64(a.nFees)
		}
	}
	return out
}

// NeighborhoodPrices is the price spread of one neighborhood.
type NeighborhoodPrices struct {
	Neighborhood string `json:"neighborhood"`
	Stats
}

// NeighborhoodComparison describes prices per neighborhood, sorted by name.
// ok is false unless at least two neighborhoods have priced listings.
func NeighborhoodComparison(rows []Row) ([]NeighborhoodPrices, bool) {
	groups := map[string][]float64{}
	for _, r := range rows {
		if r.Price != nil {
			groups[r.Neighborhood] = append(groups[r.Neighborhood], float64(*r.Price))
		}
	}
	if len(groups) < 2 {
		return nil, false
	}
	out := make([]NeighborhoodPrices, 0, len(groups))
	for name, vals := range groups {
		out = append(out, NeighborhoodPrices{Neighborhood: name, Stats: describe(vals)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Neighborhood < out[j].Neighborhood })
	return out, true
}

var (
	priceEdges  = []float64{0, 500_000, 750_000, 1_000_000, 1_500_000, 2_500_000, 5_000_000, math.Inf(1)}
	priceLabels = []string{"<$500k", "$500-750k", "$750k-1M", "$1-1.5M", "$1.5-2.5M", "$2.5-5M", ">$5M"}
)

// priceBand returns the index of the band containing v. Bands are closed on
// the left.
func priceBand(v float64) int {
	for i := 0; i < len(priceEdges)-1; i++ {
		if v >= priceEdges[i] && v < priceEdges[i+1] {
			return i
		}
	}
	return -1
}

// Grid counts listings per neighborhood (rows) and price band (columns).
type Grid struct {
	Neighborhoods []string `json:"neighborhoods"`
	Bands         []string `json:"bands"`
	Counts        [][]int  `json:"counts"`
}

// AffordabilityGrid counts priced listings by neighborhood and price band.
// ok is false unless at least two neighborhoods are present.
func AffordabilityGrid(rows []Row) (Grid, bool) {
	counts := map[string][]int{}
	for _, r := range rows {
		if r.Price == nil {
			continue
		}
		i := priceBand(float64(*r.Price))
		if i < 0 {
			continue
		}
		c, ok := counts[r.Neighborhood]
		if !ok {
			c = make([]int, len(priceLabels))
			counts[r.Neighborhood] = c
		}
		c[i]++
	}
	if len(counts) < 2 {
		return Grid{}, false
	}

	g := Grid{Bands: append([]string(nil), priceLabels...)}
	for name := range counts {
		g.Neighborhoods = append(g.Neighborhoods, name)
	}
	sort.Strings(g.Neighborhoods)
	for _, name := range g.Neighborhoods {
		g.Counts = append(g.Counts, counts[name])
	}
	return g, true
}

// CostPoint relates a listing's price to what it costs every month.
type CostPoint struct {
	Address          string  `json:"address"`
	Neighborhood     string  `json:"neighborhood"`
	Price            int     `json:"price"`
	TotalMonthlyCost int     `json:"total_monthly_cost"`
	PricePerSqFt     float64 `json:"price_per_sqft"`
}

// TotalCostVsPrice lists priced listings with a known price per square foot
// and a positive monthly cost.
func TotalCostVsPrice(rows []Row) []CostPoint {
	var out []CostPoint
	for _, r := range rows {
		if r.Price == nil || r.PricePerSqFt == nil || r.TotalMonthlyCost <= 0 {
			continue
		}
		out = append(out, CostPoint{
			Address:          r.Address,
			Neighborhood:     r.Neighborhood,
			Price:            *r.Price,
			TotalMonthlyCost: r.TotalMonthlyCost,
			PricePerSqFt:     *r.PricePerSqFt,
		})
	}
	return out
}

// Overview is the headline numbers for a set of listings.
type Overview struct {
	Listings      int     `json:"listings"`
	Neighborhoods int     `json:"neighborhoods"`
	WithPrice     int     `json:"with_price"`
	MedianPrice   float64 `json:"median_price"`
	AvgPricePerSq float64 `json:"avg_price_per_sqft"`
	WithDetails   int     `json:"with_listing_date"`
}

func Summary(rows []Row) Overview {
	o := Overview{Listings: len(rows)}
	seen := map[string]bool{}
	var prices, ppsf []float64
	for _, r := range rows {
		seen[r.Neighborhood] = true
		if r.Price != nil {
			prices = append(prices, float64(*r.Price))
		}
		if r.PricePerSqFt != nil {
			ppsf = append(ppsf, *r.PricePerSqFt)
		}
		if r.ListingDate != nil {
			o.WithDetails++
		}
	}
	o.Neighborhoods = len(seen)
	o.WithPrice = len(prices)
	o.MedianPrice = describe(prices).Median
	o.AvgPricePerSq = describe(ppsf).Mean
	return o
}

// Charts bundles every chart a run can support. Charts that need more data
// than the run has are left nil.
type Charts struct {
	Summary                Overview             `json:"summary"`
	PriceHistogram         []Bin                `json:"price_histogram,omitempty"`
	PricePerSqft           []NeighborhoodValue  `json:"price_per_sqft,omitempty"`
	DaysOnMarket           *Stats               `json:"days_on_market,omitempty"`
	MonthlyCosts           []CostBand           `json:"monthly_costs,omitempty"`
	TotalCostVsPrice       []CostPoint          `json:"total_cost_vs_price,omitempty"`
	NeighborhoodComparison []NeighborhoodPrices `json:"neighborhood_comparison,omitempty"`
	AffordabilityHeatmap   *Grid                `json:"affordability_heatmap,omitempty"`
}

// Build computes every chart for listings.
func Build(listings []models.Listing) Charts {
	rows := Prepare(listings)
	c := Charts{
		Summary:          Summary(rows),
		PriceHistogram:   PriceHistogram(rows, 50),
		PricePerSqft:     PricePerSqftByNeighborhood(rows),
		TotalCostVsPrice: TotalCostVsPrice(rows),
	}
	if st, ok := DaysOnMarketDistribution(rows); ok {
		c.DaysOnMarket = &st
	}
	bands := MonthlyCostBreakdown(rows)
	for _, b := range bands {
		if b.Count > 0 {
			c.MonthlyCosts = bands
			break
		}
	}
	if cmp, ok := NeighborhoodComparison(rows); ok {
		c.NeighborhoodComparison = cmp
	}
	if g, ok := AffordabilityGrid(rows); ok {
		c.AffordabilityHeatmap = &g
	}
	return c
}
