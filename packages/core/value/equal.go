package value

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/aymanbagabas/go-udiff"
)

// toFloat converts any Go numeric type to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	if u, ok := toUint(v); ok {
		return float64(u), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	}
	return 0, false
}

// number renders a numeric value as its JSON literal. NaN and infinities
// have none.
func number(v any) (json.Number, bool) {
	switch n := v.(type) {
	case json.Number:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "", false
		}
		return json.Number(strconv.FormatFloat(n, 'f', -1, 64)), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return json.Number(strconv.FormatFloat(f, 'f', -1, 32)), true
	}
	if i, ok := toInt(v); ok {
		return json.Number(strconv.FormatInt(i, 10)), true
	}
	if u, ok := toUint(v); ok {
		return json.Number(strconv.FormatUint(u, 10)), true
	}
	return "", false
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

// numbersEqual compares two numbers. Integers and json.Number literals compare
// exactly; when either side is a float both compare as float64.
func numbersEqual(a, b any) bool {
	if isFloat(a) || isFloat(b) {
		x, ok := toFloat(a)
		y, ok2 := toFloat(b)
		return ok && ok2 && x == y
	}
	x, ok := number(a)
	y, ok2 := number(b)
	if !ok || !ok2 {
		return false
	}
	if x == y {
		return true
	}
	rx, ok := new(big.Rat).SetString(x.String())
	if !ok {
		return false
	}
	ry, ok := new(big.Rat).SetString(y.String())
	return ok && rx.Cmp(ry) == 0
}

// Normalize returns v with every number converted to json.Number, the
// representation JSON bodies decode to.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case string, bool, nil:
		return v
	}
	if n, ok := number(v); ok {
		return n
	}
	return v
}

// Equal reports deep structural equality. Numbers compare by value regardless
// of their Go type; strings never equal numbers.
func Equal(expected, actual any) bool {
	switch e := expected.(type) {
	case nil:
		return actual == nil
	case bool:
		a, ok := actual.(bool)
		return ok && a == e
	case string:
		a, ok := actual.(string)
		return ok && a == e
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for k, ev := range e {
			av, found := a[k]
			if !found || !Equal(ev, av) {
				return false
			}
		}
		return true
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !Equal(e[i], a[i]) {
				return false
			}
		}
		return true
	}
	if !isNumber(expected) || !isNumber(actual) {
		return false
	}
	return numbersEqual(expected, actual)
}

// Describe renders v for failure messages.
func Describe(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.Marshal(Normalize(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Diff returns a unified diff between the indented JSON forms of expected and
// actual, or "" when neither side is structured.
func Diff(expected, actual any) string {
	if !isStructured(expected) && !isStructured(actual) {
		return ""
	}
	return udiff.Unified("expected", "actual", pretty(expected), pretty(actual))
}

func isStructured(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func pretty(v any) string {
	data, err := json.MarshalIndent(Normalize(v), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v\n", v)
	}
	return string(data) + "\n"
}

// TypeName names the JSON type of v.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if isNumber(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// Scalar formats a resolved value for use in a query string or header.
// Numbers keep their literal digits; structured values are JSON encoded.
func Scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case map[string]any, []any:
		data, err := json.Marshal(Normalize(t))
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
	if n, ok := number(v); ok {
		return n.String()
	}
	return fmt.Sprintf("%v", v)
}
