package regressor

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const boosted = `{
	"type": "tree_ensemble",
	"name": "price-gbr",
	"version": "2024.03",
	"feature_names": ["a", "b"],
	"metrics": {"r2": 0.91},
	"aggregation": "sum",
	"base_score": 10,
	"trees": [
		[
			{"feature": 0, "threshold": 1.5, "left": 1, "right": 2},
			{"leaf": true, "value": 1},
			{"leaf": true, "value": 2}
		],
		[
			{"feature": 1, "threshold": 0, "left": 1, "right": 2},
			{"leaf": true, "value": -0.5},
			{"leaf": true, "value": 0.25}
		]
	]
}`

const forest = `{
	"type": "tree_ensemble",
	"aggregation": "mean",
	"trees": [
		[{"leaf": true, "value": 3}],
		[{"leaf": true, "value": 5}]
	]
}`

const linear = `{
	"type": "linear",
	"feature_names": ["a", "b", "c"],
	"intercept": 1,
	"coefficients": [2, 0.5, -1]
}`

func TestDecode(t *testing.T) {
	Convey("Given a boosted tree document", t, func() {
		m, err := Decode([]byte(boosted))
		So(err, ShouldBeNil)

		Convey("Splits go left on <= threshold", func() {
			y, err := m.Predict([]float64{1.5, 0})
			So(err, ShouldBeNil)
			So(y, ShouldEqual, 10+1-0.5)

			y, err = m.Predict([]float64{1.6, 0.1})
			So(err, ShouldBeNil)
			So(y, ShouldEqual, 10+2+0.25)
		})

		Convey("Metadata is exposed", func() {
			meta := m.Metadata()
			So(meta.Type, ShouldEqual, TypeTreeEnsemble)
			So(meta.Name, ShouldEqual, "price-gbr")
			So(meta.Version, ShouldEqual, "2024.03")
			So(meta.Metrics["r2"], ShouldEqual, 0.91)
			So(m.FeatureNames(), ShouldResemble, []string{"a", "b"})
			So(m.(*TreeEnsemble).Trees(), ShouldEqual, 2)
		})

		Convey("Metadata copies do not alias the model", func() {
			meta := m.Metadata()
			meta.FeatureNames[0] = "mutated"
			meta.Metrics["r2"] = 0
			So(m.FeatureNames()[0], ShouldEqual, "a")
			So(m.Metadata().Metrics["r2"], ShouldEqual, 0.91)
		})

		Convey("Validate checks schema width", func() {
			So(m.Validate(2), ShouldBeNil)
			So(errors.Is(m.Validate(3), ErrFeatureCount), ShouldBeTrue)
		})

		Convey("Short vectors are rejected", func() {
			_, err := m.Predict([]float64{})
			So(errors.Is(err, ErrFeatureCount), ShouldBeTrue)
		})
	})

	Convey("Given a forest document", t, func() {
		m, err := Decode([]byte(forest))
		So(err, ShouldBeNil)

		Convey("Leaves are averaged", func() {
			y, err := m.Predict([]float64{0})
			So(err, ShouldBeNil)
			So(y, ShouldEqual, 4.0)
			So(m.Validate(11), ShouldBeNil)
			So(m.FeatureNames(), ShouldBeEmpty)
		})
	})

	Convey("Given a linear document", t, func() {
		m, err := Decode([]byte(linear))
		So(err, ShouldBeNil)

		Convey("It computes the dot product plus intercept", func() {
			y, err := m.Predict([]float64{1, 4, 3})
			So(err, ShouldBeNil)
			So(y, ShouldEqual, 1+2+2-3)
		})

		Convey("Vectors of the wrong length are rejected", func() {
			_, err := m.Predict([]float64{1, 2})
			So(errors.Is(err, ErrFeatureCount), ShouldBeTrue)
			So(errors.Is(m.Validate(4), ErrFeatureCount), ShouldBeTrue)
			So(m.Validate(3), ShouldBeNil)
		})
	})

	Convey("Malformed documents fail to decode", t, func() {
		cases := []struct {
			doc  string
			want error
		}{
			{`not json`, ErrMalformedModel},
			{`{}`, ErrMalformedModel},
			{`{"type": "svm"}`, ErrUnsupportedModel},
			{`{"type": "tree_ensemble"}`, ErrMalformedModel},
			{`{"type": "tree_ensemble", "trees": [[]]}`, ErrMalformedModel},
			{`{"type": "linear"}`, ErrMalformedModel},
			{`{"type": "tree_ensemble", "aggregation": "max", "trees": [[{"leaf": true}]]}`, ErrMalformedModel},
			// A child pointing back at its parent would loop forever.
			{`{"type": "tree_ensemble", "trees": [[{"feature": 0, "left": 0, "right": 1}, {"leaf": true}]]}`, ErrMalformedModel},
			{`{"type": "tree_ensemble", "trees": [[{"feature": -1, "left": 1, "right": 2}, {"leaf": true}, {"leaf": true}]]}`, ErrMalformedModel},
		}
		for _, c := range cases {
			_, err := Decode([]byte(c.doc))
			So(errors.Is(err, c.want), ShouldBeTrue)
		}
	})
}
