package model

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
)

// PricePayload mirrors the JSON body of POST /predict_price. Pointer fields
// distinguish an absent field from a zero value; every field is required.
type PricePayload struct {
	Date           *string  `json:"date"`
	CommodityGroup *string  `json:"commodity_group"`
	CropType       *string  `json:"crop_type"`
	StateName      *string  `json:"state_name"`
	MarketLocation *string  `json:"market_location"`
	QuantityKg     *float64 `json:"quantity_kg"`
	QualityGrade   *float64 `json:"quality_grade"`
	Season         *string  `json:"season"`
	TransportCost  *float64 `json:"transport_cost"`
	DemandIndex    *float64 `json:"demand_index"`
}

// Request validates the payload and converts it to a PriceRequest.
func (p *PricePayload) Request() (PriceRequest, error) {
	if err := requireFields(
		field{"date", p.Date != nil},
		field{"commodity_group", p.CommodityGroup != nil},
		field{"crop_type", p.CropType != nil},
		field{"state_name", p.StateName != nil},
		field{"market_location", p.MarketLocation != nil},
		field{"quantity_kg", p.QuantityKg != nil},
		field{"quality_grade", p.QualityGrade != nil},
		field{"season", p.Season != nil},
		field{"transport_cost", p.TransportCost != nil},
		field{"demand_index", p.DemandIndex != nil},
	); err != nil {
		return PriceRequest{}, err
	}
	grade, err := asInt("quality_grade", *p.QualityGrade)
	if err != nil {
		return PriceRequest{}, err
	}
	return PriceRequest{
		Date:           *p.Date,
		CommodityGroup: *p.CommodityGroup,
		CropType:       *p.CropType,
		StateName:      *p.StateName,
		MarketLocation: *p.MarketLocation,
		QuantityKg:     *p.QuantityKg,
		QualityGrade:   grade,
		Season:         *p.Season,
		TransportCost:  *p.TransportCost,
		DemandIndex:    *p.DemandIndex,
	}, nil
}

// DemandPayload mirrors the JSON body of POST /forecast_demand.
type DemandPayload struct {
	Date                  *string  `json:"date"`
	CommodityGroup        *string  `json:"commodity_group"`
	CropType              *string  `json:"crop_type"`
	StateName             *string  `json:"state_name"`
	MarketLocation        *string  `json:"market_location"`
	Season                *string  `json:"season"`
	TotalQuantitySold     *float64 `json:"total_quantity_sold"`
	AvgPricePerKg         *float64 `json:"avg_price_per_kg"`
	HistoricalDemand7d    *float64 `json:"historical_demand_7d"`
	PriceTrend7d          *float64 `json:"price_trend_7d"`
	EstimatedProductionKg *float64 `json:"estimated_production_kg"`
	PolicySupportScore    *float64 `json:"policy_support_score"`
	FestivalFlag          *float64 `json:"festival_flag"`
	WeatherIndex          *float64 `json:"weather_index"`
}

// Request validates the payload and converts it to a DemandRequest.
func (p *DemandPayload) Request() (DemandRequest, error) {
	if err := requireFields(
		field{"date", p.Date != nil},
		field{"commodity_group", p.CommodityGroup != nil},
		field{"crop_type", p.CropType != nil},
		field{"state_name", p.StateName != nil},
		field{"market_location", p.MarketLocation != nil},
		field{"season", p.Season != nil},
		field{"total_quantity_sold", p.TotalQuantitySold != nil},
		field{"avg_price_per_kg", p.AvgPricePerKg != nil},
		field{"historical_demand_7d", p.HistoricalDemand7d != nil},
		field{"price_trend_7d", p.PriceTrend7d != nil},
		field{"estimated_production_kg", p.EstimatedProductionKg != nil},
		field{"policy_support_score", p.PolicySupportScore != nil},
		field{"festival_flag", p.FestivalFlag != nil},
		field{"weather_index", p.WeatherIndex != nil},
	); err != nil {
		return DemandRequest{}, err
	}
	flag, err := asInt("festival_flag", *p.FestivalFlag)
	if err != nil {
		return DemandRequest{}, err
	}
	return DemandRequest{
		Date:                  *p.Date,
		CommodityGroup:        *p.CommodityGroup,
		CropType:              *p.CropType,
		StateName:             *p.StateName,
		MarketLocation:        *p.MarketLocation,
		Season:                *p.Season,
		TotalQuantitySold:     *p.TotalQuantitySold,
		AvgPricePerKg:         *p.AvgPricePerKg,
		HistoricalDemand7d:    *p.HistoricalDemand7d,
		PriceTrend7d:          *p.PriceTrend7d,
		EstimatedProductionKg: *p.EstimatedProductionKg,
		PolicySupportScore:    *p.PolicySupportScore,
		FestivalFlag:          flag,
		WeatherIndex:          *p.WeatherIndex,
	}, nil
}

// DecodePriceRequest reads one JSON price payload and validates it.
func DecodePriceRequest(r io.Reader) (PriceRequest, error) {
	var p PricePayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return PriceRequest{}, fmt.Errorf("%w: malformed JSON: %w", ErrInvalidRequest, err)
	}
	return p.Request()
}

// DecodeDemandRequest reads one JSON demand payload and validates it.
func DecodeDemandRequest(r io.Reader) (DemandRequest, error) {
	var p DemandPayload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return DemandRequest{}, fmt.Errorf("%w: malformed JSON: %w", ErrInvalidRequest, err)
	}
	return p.Request()
}

type field struct {
	name    string
	present bool
}

func requireFields(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if !f.present {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: field required: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// asInt accepts integral JSON numbers (3 or 3.0) and rejects fractional ones.
func asInt(name string, v float64) (int, error) {
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidRequest, name)
	}
	return int(v), nil
}
