package features

import "github.com/agripredict/agripredict/internal/domain/model"

// PriceSchema is the feature order the price model was trained with.
var PriceSchema = MustSchema(
	Categorical("commodity_group", func(r model.PriceRequest) string { return r.CommodityGroup }),
	Categorical("crop_type", func(r model.PriceRequest) string { return r.CropType }),
	Categorical("state_name", func(r model.PriceRequest) string { return r.StateName }),
	Categorical("market_location", func(r model.PriceRequest) string { return r.MarketLocation }),
	Numeric("quantity_kg", func(r model.PriceRequest) float64 { return r.QuantityKg }),
	Numeric("quality_grade", func(r model.PriceRequest) float64 { return float64(r.QualityGrade) }),
	Categorical("season", func(r model.PriceRequest) string { return r.Season }),
	Numeric("transport_cost", func(r model.PriceRequest) float64 { return r.TransportCost }),
	Numeric("demand_index", func(r model.PriceRequest) float64 { return r.DemandIndex }),
	Month[model.PriceRequest](),
	DayOfWeek[model.PriceRequest](),
)

// DemandSchema is the feature order the demand model was trained with.
var DemandSchema = MustSchema(
	Categorical("commodity_group", func(r model.DemandRequest) string { return r.CommodityGroup }),
	Categorical("crop_type", func(r model.DemandRequest) string { return r.CropType }),
	Categorical("state_name", func(r model.DemandRequest) string { return r.StateName }),
	Categorical("market_location", func(r model.DemandRequest) string { return r.MarketLocation }),
	Categorical("season", func(r model.DemandRequest) string { return r.Season }),
	Numeric("total_quantity_sold", func(r model.DemandRequest) float64 { return r.TotalQuantitySold }),
	Numeric("avg_price_per_kg", func(r model.DemandRequest) float64 { return r.AvgPricePerKg }),
	Numeric("historical_demand_7d", func(r model.DemandRequest) float64 { return r.HistoricalDemand7d }),
	Numeric("price_trend_7d", func(r model.DemandRequest) float64 { return r.PriceTrend7d }),
	Numeric("estimated_production_kg", func(r model.DemandRequest) float64 { return r.EstimatedProductionKg }),
	Numeric("policy_support_score", func(r model.DemandRequest) float64 { return r.PolicySupportScore }),
	Numeric("festival_flag", func(r model.DemandRequest) float64 { return float64(r.FestivalFlag) }),
	Numeric("weather_index", func(r model.DemandRequest) float64 { return r.WeatherIndex }),
	Month[model.DemandRequest](),
	DayOfWeek[model.DemandRequest](),
)
