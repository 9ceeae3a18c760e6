package models

import "sort"

// Factor names a contributor to a leak probability.
type Factor string

const (
	FactorFlow        Factor = "flow"
	FactorPressure    Factor = "pressure"
	FactorVibration   Factor = "vibration"
	FactorCorrelation Factor = "correlation"
)

// Importance maps factors to their relative contribution.
type Importance map[Factor]float64

type FactorWeight struct {
	Factor Factor  `json:"factor"`
	Weight float64 `json:"weight"`
}

// DefaultImportance is used before any explanation has been computed.
func DefaultImportance() Importance {
	return Importance{
		FactorFlow:      0.4,
		FactorPressure:  0.3,
		FactorVibration: 0.3,
	}
}

func (imp Importance) Sum() float64 {
	var total float64
	for _, v := range imp {
		total += v
	}
	return total
}

// Normalized returns a copy scaled to sum to 1. An empty or all-zero map is
// returned unchanged.
func (imp Importance) Normalized() Importance {
	total := imp.Sum()
	out := make(Importance, len(imp))
	for k, v := range imp {
		if total > 0 {
			out[k] = v / total
		} else {
			out[k] = v
		}
	}
	return out
}

// Ranked returns factors by descending weight, ties broken by name.
func (imp Importance) Ranked() []FactorWeight {
	ranked := make([]FactorWeight, 0, len(imp))
	for k, v := range imp {
		ranked = append(ranked, FactorWeight{Factor: k, Weight: v})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weight == ranked[j].Weight {
			return ranked[i].Factor < ranked[j].Factor
		}
		return ranked[i].Weight > ranked[j].Weight
	})
	return ranked
}

// Top returns the strongest factor, or false when the map is empty.
func (imp Importance) Top() (FactorWeight, bool) {
	ranked := imp.Ranked()
	if len(ranked) == 0 {
		return FactorWeight{}, false
	}
	return ranked[0], true
}

func (imp Importance) Clone() Importance {
	out := make(Importance, len(imp))
	for k, v := range imp {
		out[k] = v
	}
	return out
}
