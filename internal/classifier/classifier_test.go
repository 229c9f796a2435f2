package classifier

import (
	"testing"

	"github.com/stocksense/stocksense/internal/domain"
)

func constantSeries(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestClassifyABC(t *testing.T) {
	revenue := map[string]float64{
		"big":    8000, // 80% of total on its own
		"mid":    1500,
		"small1": 300,
		"small2": 200,
	}

	classes := New().ClassifyABC(revenue)

	if classes["big"] != domain.ABCClassA {
		t.Errorf("big = %s, want A", classes["big"])
	}
	if classes["mid"] != domain.ABCClassB {
		t.Errorf("mid = %s, want B", classes["mid"])
	}
	if classes["small1"] != domain.ABCClassC {
		t.Errorf("small1 = %s, want C", classes["small1"])
	}
	if classes["small2"] != domain.ABCClassC {
		t.Errorf("small2 = %s, want C", classes["small2"])
	}
}

func TestClassifyABC_TopItemAlwaysA(t *testing.T) {
	// A single item covering 100% of revenue must still be A.
	classes := New().ClassifyABC(map[string]float64{"only": 500})
	if classes["only"] != domain.ABCClassA {
		t.Errorf("only = %s, want A", classes["only"])
	}
}

func TestClassifyXYZ(t *testing.T) {
	c := New()

	// Constant demand: CV = 0 -> X.
	if got := c.ClassifyXYZ(constantSeries(30, 10)); got != domain.XYZClassX {
		t.Errorf("constant series = %s, want X", got)
	}

	// Moderate variability -> Y. Alternating 5 and 15: mean 10, sd 5, CV 0.5.
	moderate := make([]float64, 30)
	for i := range moderate {
		if i%2 == 0 {
			moderate[i] = 5
		} else {
			moderate[i] = 15
		}
	}
	if got := c.ClassifyXYZ(moderate); got != domain.XYZClassY {
		t.Errorf("moderate series = %s, want Y", got)
	}

	// Highly erratic -> Z. Mostly zero with rare spikes.
	erratic := make([]float64, 30)
	erratic[0] = 100
	erratic[15] = 80
	if got := c.ClassifyXYZ(erratic); got != domain.XYZClassZ {
		t.Errorf("erratic series = %s, want Z", got)
	}
}

func TestDemandPattern(t *testing.T) {
	c := New()

	// Demand every day: ADI = 1 -> regular.
	if got := c.DemandPattern(constantSeries(30, 4)); got != domain.PatternRegular {
		t.Errorf("daily demand = %s, want regular", got)
	}

	// Demand every third day with steady sizes: ADI = 3, CV^2 of nonzero
	// demand is 0 -> intermittent.
	intermittent := make([]float64, 30)
	for i := 0; i < 30; i += 3 {
		intermittent[i] = 6
	}
	if got := c.DemandPattern(intermittent); got != domain.PatternIntermittent {
		t.Errorf("sparse steady demand = %s, want intermittent", got)
	}

	// Sparse and wildly varying sizes -> lumpy.
	lumpy := make([]float64, 30)
	lumpy[0] = 1
	lumpy[7] = 50
	lumpy[14] = 2
	lumpy[21] = 90
	if got := c.DemandPattern(lumpy); got != domain.PatternLumpy {
		t.Errorf("sparse erratic demand = %s, want lumpy", got)
	}

	// All-zero history behaves as intermittent rather than panicking.
	if got := c.DemandPattern(constantSeries(30, 0)); got != domain.PatternIntermittent {
		t.Errorf("zero demand = %s, want intermittent", got)
	}
}

func TestClassify_MethodRouting(t *testing.T) {
	c := New()
	regular := constantSeries(60, 10)

	tests := []struct {
		name   string
		abc    domain.ABCClass
		daily  []float64
		want   domain.ForecastMethod
		warned bool
	}{
		{"A-X routes to transformer", domain.ABCClassA, regular, domain.MethodTransformer, false},
		{"C-Y routes to moving average", domain.ABCClassC, cvSeries(0.7), domain.MethodMovingAverage, false},
		{"B-Z routes to moving average", domain.ABCClassB, cvSeries(1.3), domain.MethodMovingAverage, false},
		{"C-Z routes to minmax", domain.ABCClassC, cvSeries(1.3), domain.MethodMinMax, false},
		{"A-Z routes to transformer with warning", domain.ABCClassA, cvSeries(1.3), domain.MethodTransformer, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("item-1", tt.daily, tt.abc)
			if got.RecommendedMethod != tt.want {
				t.Errorf("RecommendedMethod = %s, want %s", got.RecommendedMethod, tt.want)
			}
			if tt.warned && len(got.Warnings) == 0 {
				t.Error("expected a warning, got none")
			}
			if got.ForecastabilityScore <= 0 || got.ForecastabilityScore > 1 {
				t.Errorf("ForecastabilityScore = %v, want in (0, 1]", got.ForecastabilityScore)
			}
			if got.ExpectedMAPERange.Low >= got.ExpectedMAPERange.High {
				t.Errorf("MAPE range inverted: %+v", got.ExpectedMAPERange)
			}
		})
	}
}

func TestClassify_PatternOverridesTable(t *testing.T) {
	c := New()

	// Sparse, steady demand is intermittent and must route to Croston even
	// for an A item.
	intermittent := make([]float64, 40)
	for i := 0; i < 40; i += 4 {
		intermittent[i] = 5
	}
	got := c.Classify("item-1", intermittent, domain.ABCClassA)
	if got.RecommendedMethod != domain.MethodCroston {
		t.Errorf("intermittent RecommendedMethod = %s, want croston", got.RecommendedMethod)
	}

	// Sparse erratic demand is lumpy and routes to SBA.
	lumpy := make([]float64, 40)
	lumpy[0] = 1
	lumpy[10] = 70
	lumpy[20] = 3
	lumpy[30] = 120
	got = c.Classify("item-2", lumpy, domain.ABCClassB)
	if got.RecommendedMethod != domain.MethodSBA {
		t.Errorf("lumpy RecommendedMethod = %s, want sba", got.RecommendedMethod)
	}
}

// cvSeries builds an all-positive daily-demand series in the requested
// variability band. Demand occurs on every day, so the pattern stays
// regular and only the XYZ class varies. For cv < 1 the series alternates
// base*(1±cv), giving exactly that CV; for cv >= 1 a flat series with one
// large spike pushes the CV well above 1.
func cvSeries(cv float64) []float64 {
	s := make([]float64, 60)
	if cv < 1 {
		base := 10.0
		for i := range s {
			if i%2 == 0 {
				s[i] = base * (1 + cv)
			} else {
				s[i] = base * (1 - cv)
			}
		}
		return s
	}
	for i := range s {
		s[i] = 1
	}
	s[0] = 120
	return s
}
