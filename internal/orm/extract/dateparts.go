package extract

import (
	"time"
)

// DatePart mirrors PostgreSQL's date_part for a value produced by a temporal
// extractor. Zoned values are read in UTC. Unknown parts and non-time values
// report false.
func DatePart(v any, part string) (float64, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return 0, false
	}
	t = t.UTC()

	year := t.Year()
	switch part {
	case "year":
		return float64(year), true
	case "month":
		return float64(t.Month()), true
	case "day":
		return float64(t.Day()), true
	case "hour":
		return float64(t.Hour()), true
	case "minute":
		return float64(t.Minute()), true
	case "second":
		return float64(t.Second()) + float64(t.Nanosecond())/1e9, true
	case "milliseconds":
		return float64(t.Second())*1e3 + float64(t.Nanosecond())/1e6, true
	case "microseconds":
		return float64(t.Second())*1e6 + float64(t.Nanosecond()/1e3), true
	case "quarter":
		return float64((int(t.Month())-1)/3 + 1), true
	case "dow":
		return float64(t.Weekday()), true
	case "isodow":
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return float64(wd), true
	case "doy":
		return float64(t.YearDay()), true
	case "week":
		_, w := t.ISOWeek()
		return float64(w), true
	case "isoyear":
		y, _ := t.ISOWeek()
		return float64(y), true
	case "decade":
		return float64(floorDiv(year, 10)), true
	case "century":
		if year > 0 {
			return float64((year + 99) / 100), true
		}
		return float64(-((99 - year) / 100)), true
	case "millennium":
		if year > 0 {
			return float64((year + 999) / 1000), true
		}
		return float64(-((999 - year) / 1000)), true
	case "epoch":
		return float64(t.UnixNano()) / 1e9, true
	default:
		return 0, false
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
