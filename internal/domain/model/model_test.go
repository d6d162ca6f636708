package model

import (
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const priceBody = `{
	"date": "2024/3/15",
	"commodity_group": "Cereals",
	"crop_type": "Wheat",
	"state_name": "Punjab",
	"market_location": "Ludhiana",
	"quantity_kg": 1200.5,
	"quality_grade": 2,
	"season": "Rabi",
	"transport_cost": 45.25,
	"demand_index": 0.8
}`

const demandBody = `{
	"date": "2024/03/15",
	"commodity_group": "Vegetables",
	"crop_type": "Onion",
	"state_name": "Maharashtra",
	"market_location": "Lasalgaon",
	"season": "Kharif",
	"total_quantity_sold": 5000,
	"avg_price_per_kg": 21.5,
	"historical_demand_7d": 4200,
	"price_trend_7d": -0.4,
	"estimated_production_kg": 90000,
	"policy_support_score": 0.6,
	"festival_flag": 1,
	"weather_index": 0.9
}`

func TestDemandLevelFor(t *testing.T) {
	Convey("Given the demand level thresholds", t, func() {
		Convey("Scores at or below the low ceiling are Low", func() {
			So(DemandLevelFor(-5), ShouldEqual, DemandLow)
			So(DemandLevelFor(0), ShouldEqual, DemandLow)
			So(DemandLevelFor(100), ShouldEqual, DemandLow)
		})

		Convey("Scores up to and including the medium ceiling are Medium", func() {
			So(DemandLevelFor(100.01), ShouldEqual, DemandMedium)
			So(DemandLevelFor(2500), ShouldEqual, DemandMedium)
			So(DemandLevelFor(3960), ShouldEqual, DemandMedium)
		})

		Convey("Scores above the medium ceiling are High", func() {
			So(DemandLevelFor(3960.01), ShouldEqual, DemandHigh)
			So(DemandLevelFor(1e9), ShouldEqual, DemandHigh)
		})
	})
}

func TestTask(t *testing.T) {
	Convey("Tasks render as their wire names", t, func() {
		So(TaskPrice.String(), ShouldEqual, "price")
		So(TaskDemand.String(), ShouldEqual, "demand")
	})
}

func TestDecodePriceRequest(t *testing.T) {
	Convey("Given a complete price payload", t, func() {
		req, err := DecodePriceRequest(strings.NewReader(priceBody))

		Convey("It decodes into a PriceRequest", func() {
			So(err, ShouldBeNil)
			So(req.Date, ShouldEqual, "2024/3/15")
			So(req.CropType, ShouldEqual, "Wheat")
			So(req.QuantityKg, ShouldEqual, 1200.5)
			So(req.QualityGrade, ShouldEqual, 2)
			So(req.DemandIndex, ShouldEqual, 0.8)
			So(req.DateString(), ShouldEqual, "2024/3/15")
		})
	})

	Convey("Given a payload with missing fields", t, func() {
		_, err := DecodePriceRequest(strings.NewReader(`{"date": "2024/3/15", "crop_type": "Wheat"}`))

		Convey("It names every missing field", func() {
			So(errors.Is(err, ErrInvalidRequest), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "field required")
			So(err.Error(), ShouldContainSubstring, "commodity_group")
			So(err.Error(), ShouldContainSubstring, "demand_index")
			So(err.Error(), ShouldNotContainSubstring, "crop_type")
		})
	})

	Convey("Given a fractional quality grade", t, func() {
		body := strings.Replace(priceBody, `"quality_grade": 2`, `"quality_grade": 2.5`, 1)
		_, err := DecodePriceRequest(strings.NewReader(body))

		Convey("It is rejected as non-integral", func() {
			So(errors.Is(err, ErrInvalidRequest), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "quality_grade must be an integer")
		})
	})

	Convey("Given a quality grade written as 3.0", t, func() {
		body := strings.Replace(priceBody, `"quality_grade": 2`, `"quality_grade": 3.0`, 1)
		req, err := DecodePriceRequest(strings.NewReader(body))

		Convey("It is accepted", func() {
			So(err, ShouldBeNil)
			So(req.QualityGrade, ShouldEqual, 3)
		})
	})

	Convey("Given a wrongly typed field", t, func() {
		body := strings.Replace(priceBody, `"quantity_kg": 1200.5`, `"quantity_kg": "lots"`, 1)
		_, err := DecodePriceRequest(strings.NewReader(body))

		Convey("It is an invalid request", func() {
			So(errors.Is(err, ErrInvalidRequest), ShouldBeTrue)
		})
	})

	Convey("Given malformed JSON", t, func() {
		_, err := DecodePriceRequest(strings.NewReader(`{"date":`))

		Convey("It is an invalid request", func() {
			So(errors.Is(err, ErrInvalidRequest), ShouldBeTrue)
		})
	})
}

func TestDecodeDemandRequest(t *testing.T) {
	Convey("Given a complete demand payload", t, func() {
		req, err := DecodeDemandRequest(strings.NewReader(demandBody))

		Convey("It decodes into a DemandRequest", func() {
			So(err, ShouldBeNil)
			So(req.Season, ShouldEqual, "Kharif")
			So(req.FestivalFlag, ShouldEqual, 1)
			So(req.PriceTrend7d, ShouldEqual, -0.4)
			So(req.WeatherIndex, ShouldEqual, 0.9)
		})
	})

	Convey("Given a null required field", t, func() {
		body := strings.Replace(demandBody, `"season": "Kharif"`, `"season": null`, 1)
		_, err := DecodeDemandRequest(strings.NewReader(body))

		Convey("It is reported as missing", func() {
			So(errors.Is(err, ErrInvalidRequest), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "season")
		})
	})

	Convey("Given a fractional festival flag", t, func() {
		body := strings.Replace(demandBody, `"festival_flag": 1`, `"festival_flag": 0.5`, 1)
		_, err := DecodeDemandRequest(strings.NewReader(body))

		Convey("It is rejected", func() {
			So(err.Error(), ShouldContainSubstring, "festival_flag must be an integer")
		})
	})
}
