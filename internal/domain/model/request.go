// Package model contains domain models passed between layers.
package model

// Task identifies one of the two prediction pipelines.
type Task string

// Supported tasks.
const (
	TaskPrice  Task = "price"
	TaskDemand Task = "demand"
)

// String implements fmt.Stringer.
func (t Task) String() string { return string(t) }

// PriceRequest is a validated crop price estimation request.
type PriceRequest struct {
	Date           string // YYYY/MM/DD
	CommodityGroup string
	CropType       string
	StateName      string
	MarketLocation string
	QuantityKg     float64
	QualityGrade   int
	Season         string
	TransportCost  float64
	DemandIndex    float64
}

// DateString returns the raw request date.
func (r PriceRequest) DateString() string { return r.Date }

// DemandRequest is a validated demand forecasting request.
type DemandRequest struct {
	Date                  string // YYYY/MM/DD
	CommodityGroup        string
	CropType              string
	StateName             string
	MarketLocation        string
	Season                string
	TotalQuantitySold     float64
	AvgPricePerKg         float64
	HistoricalDemand7d    float64
	PriceTrend7d          float64
	EstimatedProductionKg float64
	PolicySupportScore    float64
	FestivalFlag          int // 0 or 1
	WeatherIndex          float64
}

// DateString returns the raw request date.
func (r DemandRequest) DateString() string { return r.Date }

// PriceResult is the response of a price estimation.
type PriceResult struct {
	PredictedPrice float64 `json:"predicted_price"`
}

// DemandResult is the response of a demand forecast.
type DemandResult struct {
	DemandScore float64     `json:"demand_score"`
	DemandLevel DemandLevel `json:"demand_level"`
}

// BatchItem carries one result of a batch call. Exactly one of Result and
// Error is set.
type BatchItem[T any] struct {
	Index  int    `json:"index"`
	Result *T     `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Batch is the ordered outcome of a batch call.
type Batch[T any] struct {
	BatchID string         `json:"batch_id"`
	Results []BatchItem[T] `json:"results"`
}

// Readiness reports which tasks can serve predictions.
type Readiness struct {
	Price  bool `json:"price"`
	Demand bool `json:"demand"`
}

// Ready is true when at least one task is loaded.
func (r Readiness) Ready() bool { return r.Price || r.Demand }
