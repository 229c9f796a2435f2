// Package classifier assigns each item an ABC x XYZ class, a demand-pattern
// tag and a recommended forecasting method.
package classifier

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/stocksense/stocksense/internal/domain"
)

// Threshold constants for the segmentation rules.
const (
	abcClassACumShare = 0.80
	abcClassBCumShare = 0.95

	xyzClassXMaxCV = 0.5
	xyzClassYMaxCV = 1.0

	// Syntetos-Boylan cutoffs separating regular, intermittent and lumpy
	// demand.
	adiCutoff       = 1.32
	cvSquaredCutoff = 0.49
)

// methodProfile is the static reporting lookup keyed by ABC-XYZ pair.
type methodProfile struct {
	method   domain.ForecastMethod
	score    float64
	mape     domain.MAPERange
	warnings []string
}

var methodTable = map[string]methodProfile{
	"AX": {domain.MethodTransformer, 0.95, domain.MAPERange{Low: 5, High: 10}, nil},
	"BX": {domain.MethodTransformer, 0.90, domain.MAPERange{Low: 5, High: 15}, nil},
	"CX": {domain.MethodTransformer, 0.85, domain.MAPERange{Low: 10, High: 20}, nil},
	"AY": {domain.MethodTransformer, 0.70, domain.MAPERange{Low: 10, High: 25}, nil},
	"BY": {domain.MethodTransformer, 0.65, domain.MAPERange{Low: 15, High: 30}, nil},
	"CY": {domain.MethodMovingAverage, 0.60, domain.MAPERange{Low: 20, High: 35}, nil},
	"AZ": {domain.MethodTransformer, 0.40, domain.MAPERange{Low: 25, High: 50},
		[]string{"high-value item with erratic demand; forecast accuracy will be limited"}},
	"BZ": {domain.MethodMovingAverage, 0.35, domain.MAPERange{Low: 30, High: 60}, nil},
	"CZ": {domain.MethodMinMax, 0.30, domain.MAPERange{Low: 40, High: 80}, nil},
}

var defaultProfile = methodProfile{
	method: domain.MethodTransformer,
	score:  0.50,
	mape:   domain.MAPERange{Low: 20, High: 40},
}

// Classifier derives SKU classifications from demand history.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// ClassifyABC ranks items by trailing revenue and cuts at cumulative-revenue
// thresholds: the items covering the top 80% of revenue are A, the next 15%
// are B, the remaining 5% are C. The top-ranked item is always A.
func (c *Classifier) ClassifyABC(revenueByItem map[string]float64) map[string]domain.ABCClass {
	type ranked struct {
		itemID  string
		revenue float64
	}

	items := make([]ranked, 0, len(revenueByItem))
	var total float64
	for id, rev := range revenueByItem {
		if rev < 0 {
			rev = 0
		}
		items = append(items, ranked{itemID: id, revenue: rev})
		total += rev
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].revenue != items[j].revenue {
			return items[i].revenue > items[j].revenue
		}
		return items[i].itemID < items[j].itemID
	})

	classes := make(map[string]domain.ABCClass, len(items))
	var cum float64
	for _, it := range items {
		share := 0.0
		if total > 0 {
			share = cum / total
		}
		switch {
		case share < abcClassACumShare:
			classes[it.itemID] = domain.ABCClassA
		case share < abcClassBCumShare:
			classes[it.itemID] = domain.ABCClassB
		default:
			classes[it.itemID] = domain.ABCClassC
		}
		cum += it.revenue
	}
	return classes
}

// ClassifyXYZ buckets an item by the coefficient of variation of its daily
// demand. Items with no demand at all land in Z.
func (c *Classifier) ClassifyXYZ(daily []float64) domain.XYZClass {
	cv := coefficientOfVariation(daily)
	switch {
	case cv < xyzClassXMaxCV:
		return domain.XYZClassX
	case cv < xyzClassYMaxCV:
		return domain.XYZClassY
	default:
		return domain.XYZClassZ
	}
}

// DemandPattern tags a series using the average demand interval and the
// squared CV of nonzero demand sizes.
func (c *Classifier) DemandPattern(daily []float64) domain.DemandPattern {
	nonzero := make([]float64, 0, len(daily))
	for _, v := range daily {
		if v > 0 {
			nonzero = append(nonzero, v)
		}
	}
	if len(nonzero) == 0 {
		return domain.PatternIntermittent
	}

	adi := float64(len(daily)) / float64(len(nonzero))
	if adi <= adiCutoff {
		return domain.PatternRegular
	}

	cv := coefficientOfVariation(nonzero)
	if cv*cv <= cvSquaredCutoff {
		return domain.PatternIntermittent
	}
	return domain.PatternLumpy
}

// Classify produces the full classification for one item. The ABC class is
// computed against the whole population, so the caller supplies it.
func (c *Classifier) Classify(itemID string, daily []float64, abc domain.ABCClass) domain.SKUClassification {
	xyz := c.ClassifyXYZ(daily)
	pattern := c.DemandPattern(daily)

	cls := domain.SKUClassification{
		ItemID:        itemID,
		ABCClass:      abc,
		XYZClass:      xyz,
		DemandPattern: pattern,
	}

	// Pattern routing wins over the ABC-XYZ table: lumpy and intermittent
	// demand get the Croston family regardless of revenue segment.
	profile, ok := methodTable[string(abc)+string(xyz)]
	if !ok {
		profile = defaultProfile
	}

	cls.ForecastabilityScore = profile.score
	cls.ExpectedMAPERange = profile.mape
	cls.Warnings = append(cls.Warnings, profile.warnings...)

	switch pattern {
	case domain.PatternLumpy:
		cls.RecommendedMethod = domain.MethodSBA
	case domain.PatternIntermittent:
		cls.RecommendedMethod = domain.MethodCroston
	default:
		cls.RecommendedMethod = profile.method
	}

	return cls
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, err := stats.Mean(stats.Float64Data(values))
	if err != nil || mean == 0 {
		// No usable mean means maximal variability for our purposes.
		return xyzClassYMaxCV
	}
	sd, err := stats.StandardDeviationPopulation(stats.Float64Data(values))
	if err != nil {
		return xyzClassYMaxCV
	}
	return sd / mean
}
