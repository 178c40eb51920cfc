package boltstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Record is one value in a bucket, keyed by field name.
type Record map[string]any

func encodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

// decodeRecord reads a stored record. Numbers that fit an int64 come back as
// int64 and the rest as float64, so integers above 2^53 survive a step.
func decodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	for k, v := range rec {
		rec[k] = unwrapNumbers(v)
	}
	return rec, nil
}

func unwrapNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = unwrapNumbers(e)
		}
	case []any:
		for i, e := range x {
			x[i] = unwrapNumbers(e)
		}
	}
	return v
}

// floatToInt converts an integral float inside the int64 range.
func floatToInt(x float64) (int64, error) {
	if x != math.Trunc(x) {
		return 0, fmt.Errorf("%v is not an integer", x)
	}
	if x < math.MinInt64 || x >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is out of range for an integer", x)
	}
	return int64(x), nil
}

// coerce converts v to the Go representation of typ.
func coerce(v any, typ string) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch typ {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case json.Number:
			return x.String(), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case int:
			return strconv.Itoa(x), nil
		case bool:
			return strconv.FormatBool(x), nil
		}

	case TypeInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case float64:
			return floatToInt(x)
		case json.Number:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%s is not an integer", x)
			}
			return floatToInt(f)
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", x)
			}
			return n, nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}

	case TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%s is not a number", x)
			}
			return f, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", x)
			}
			return f, nil
		}

	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case float64:
			return x != 0, nil
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("%s is not a boolean", x)
			}
			return f != 0, nil
		case int64:
			return x != 0, nil
		case int:
			return x != 0, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", x)
			}
			return b, nil
		}

	case TypeJSON:
		return v, nil
	}

	return nil, fmt.Errorf("cannot convert %T to %s", v, typ)
}
