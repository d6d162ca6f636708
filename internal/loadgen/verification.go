package loadgen

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/agripredict/agripredict/internal/domain/model"
)

// levelTolerance covers scores whose rounding crosses a level boundary:
// the level comes from the unrounded score.
const levelTolerance = 0.005

func verifyPrice(body []byte) error {
	var res model.PriceResult
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("decode price response: %w", err)
	}
	if math.IsNaN(res.PredictedPrice) || math.IsInf(res.PredictedPrice, 0) {
		return fmt.Errorf("non-finite predicted_price")
	}
	if !roundedTo2(res.PredictedPrice) {
		return fmt.Errorf("predicted_price %v not rounded to 2 decimals", res.PredictedPrice)
	}
	return nil
}

func verifyDemand(body []byte) error {
	var res model.DemandResult
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("decode demand response: %w", err)
	}
	if !roundedTo2(res.DemandScore) {
		return fmt.Errorf("demand_score %v not rounded to 2 decimals", res.DemandScore)
	}
	want := model.DemandLevelFor(res.DemandScore)
	if res.DemandLevel == want {
		return nil
	}
	for _, edge := range []float64{model.LowDemandCeiling, model.MediumDemandCeiling} {
		if math.Abs(res.DemandScore-edge) <= levelTolerance {
			return nil
		}
	}
	return fmt.Errorf("demand_level %q does not match score %v (want %q)", res.DemandLevel, res.DemandScore, want)
}

func roundedTo2(v float64) bool {
	return math.Abs(v*100-math.Round(v*100)) < 1e-6
}
