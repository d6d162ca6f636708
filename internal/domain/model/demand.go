package model

// DemandLevel is the three-bucket classification of a demand score.
type DemandLevel string

// Demand levels.
const (
	DemandLow    DemandLevel = "Low"
	DemandMedium DemandLevel = "Medium"
	DemandHigh   DemandLevel = "High"
)

// Fixed classification thresholds. Both edges are inclusive upper bounds.
const (
	LowDemandCeiling    = 100.0
	MediumDemandCeiling = 3960.0
)

// DemandLevelFor buckets a demand score: <=100 Low, <=3960 Medium, else High.
func DemandLevelFor(score float64) DemandLevel {
	switch {
	case score <= LowDemandCeiling:
		return DemandLow
	case score <= MediumDemandCeiling:
		return DemandMedium
	default:
		return DemandHigh
	}
}
