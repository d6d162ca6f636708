// Package loadgen drives a running agripredict server with generated price
// and demand requests and checks the responses it gets back.
package loadgen

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Requests   int           // Requests per task
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	Tasks      []string      // "price", "demand" or both
	Seed       uint64        // Generator seed; 0 picks one from the clock
	OutputDir  string        // Optional directory for generated JSON lines
	Verbose    bool          // Log every failed request
	SkipHealth bool          // Skip the /healthz readiness check
}

// PriceBody is the JSON body of POST /predict_price.
type PriceBody struct {
	Date           string  `json:"date"`
	CommodityGroup string  `json:"commodity_group"`
	CropType       string  `json:"crop_type"`
	StateName      string  `json:"state_name"`
	MarketLocation string  `json:"market_location"`
	QuantityKg     float64 `json:"quantity_kg"`
	QualityGrade   int     `json:"quality_grade"`
	Season         string  `json:"season"`
	TransportCost  float64 `json:"transport_cost"`
	DemandIndex    float64 `json:"demand_index"`
}

// DemandBody is the JSON body of POST /forecast_demand.
type DemandBody struct {
	Date                  string  `json:"date"`
	CommodityGroup        string  `json:"commodity_group"`
	CropType              string  `json:"crop_type"`
	StateName             string  `json:"state_name"`
	MarketLocation        string  `json:"market_location"`
	Season                string  `json:"season"`
	TotalQuantitySold     float64 `json:"total_quantity_sold"`
	AvgPricePerKg         float64 `json:"avg_price_per_kg"`
	HistoricalDemand7d    float64 `json:"historical_demand_7d"`
	PriceTrend7d          float64 `json:"price_trend_7d"`
	EstimatedProductionKg float64 `json:"estimated_production_kg"`
	PolicySupportScore    float64 `json:"policy_support_score"`
	FestivalFlag          int     `json:"festival_flag"`
	WeatherIndex          float64 `json:"weather_index"`
}

// Stats holds per-task run statistics.
type Stats struct {
	Task       string
	Submitted  int
	Successful int
	Rejected   int // 4xx
	Failed     int // 5xx and transport errors
	Invalid    int // 200 with a body that failed verification
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
