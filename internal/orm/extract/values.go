package extract

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Decode parses a JSON document into the generic value tree walked by Lookup.
// Numbers are kept as json.Number so decimals and integers survive exactly.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Lookup walks a dotted path through doc. The second result is false when a
// segment is absent or an intermediate value cannot be traversed. Numeric
// segments index into arrays. An empty path returns doc itself.
func Lookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}

	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Extract applies extractor e to the value at path in doc
func Extract(e Extractor, doc any, path string) any {
	v, ok := Lookup(doc, path)
	if !ok {
		return nil
	}
	return Coerce(e, v)
}

// Coerce converts a raw document value to the extractor's type, or nil
func Coerce(e Extractor, v any) any {
	if v == nil {
		return nil
	}

	switch e {
	case String:
		return asText(v)
	case Integer:
		return asInteger(v)
	case Float:
		return asFloat(v)
	case Decimal:
		return asDecimal(v)
	case Boolean:
		if b, ok := v.(bool); ok {
			return b
		}
		return nil
	case DateTime:
		return asDateTime(v)
	case DateTimeNoTZ:
		return asDateTimeNoTZ(v)
	case Date:
		return asDate(v)
	case Geopoint:
		return asGeopoint(v)
	default:
		return nil
	}
}

// asText mirrors the text the database returns for a path: scalars as their
// literal text, containers as JSON.
func asText(v any) any {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		data, err := json.Marshal(s)
		if err != nil {
			return nil
		}
		return string(data)
	}
}

// asInteger parses the base-10 text of v. Floats have no integer text, so
// 5.0 is nil the same way json_int treats it.
func asInteger(v any) any {
	var text string
	switch n := v.(type) {
	case string:
		text = strings.TrimSpace(n)
	case json.Number:
		text = n.String()
	case int:
		text = strconv.Itoa(n)
	case int64:
		text = strconv.FormatInt(n, 10)
	default:
		return nil
	}

	i, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return nil
	}
	return i
}

func asFloat(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

// asDecimal keeps the decimal text exactly as stored
func asDecimal(v any) any {
	var text string
	switch n := v.(type) {
	case string:
		text = strings.TrimSpace(n)
	case json.Number:
		text = n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil
	}
	return text
}

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
	}
	dateLayout = "2006-01-02"

	naiveOrDateLayouts = append(append([]string{}, naiveLayouts...), dateLayout)
)

// asDateTime parses a zoned timestamp. Naive input is read as UTC.
func asDateTime(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	for _, layout := range naiveOrDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return nil
}

// asDateTimeNoTZ keeps the wall clock and discards any zone
func asDateTimeNoTZ(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)

	for _, layout := range naiveOrDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t)
		}
	}
	return nil
}

func asDate(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)

	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t
	}
	if t, ok := asDateTimeNoTZ(s).(time.Time); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return nil
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// asGeopoint reads "lng,lat" into a point. Any other shape is nil.
func asGeopoint(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return orb.Point{lng, lat}
}
