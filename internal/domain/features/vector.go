package features

// Vector is an encoded feature vector in schema order.
type Vector []float64

// Report describes the fallbacks taken while building a vector.
type Report struct {
	// Unknown lists categorical features that received FallbackCode.
	Unknown []string
	// DateFallback is set when the request date did not parse.
	DateFallback bool
}

// BuildVector resolves every schema feature against req. The result always
// has schema.Len() entries in schema order.
func BuildVector[R Dated](schema *Schema[R], req R, set EncoderSet, clock Clock) (Vector, Report) {
	var (
		rep Report
		cal Calendar
	)
	if schema.calendar {
		var parsed bool
		cal, parsed = DeriveCalendarFeatures(req.DateString(), clock)
		rep.DateFallback = !parsed
	}

	vec := make(Vector, len(schema.features))
	for i, f := range schema.features {
		switch f.Kind {
		case KindCategorical:
			code, known := EncodeCategorical(set, f.Name, f.label(req))
			if !known {
				rep.Unknown = append(rep.Unknown, f.Name)
			}
			vec[i] = float64(code)
		case KindNumeric:
			vec[i] = f.value(req)
		case KindMonth:
			vec[i] = float64(cal.Month)
		case KindDayOfWeek:
			vec[i] = float64(cal.DayOfWeek)
		}
	}
	return vec, rep
}
