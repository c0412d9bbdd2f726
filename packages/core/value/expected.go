package value

import (
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/hityaml/packages/core/cell"
)

// Kind is the shape of an expected value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindStruct
	KindVariable
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindVariable:
		return "variable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Expected is a value written in a response block. Each kind carries its own
// comparison rule, see Matches.
type Expected struct {
	kind      Kind
	boolean   bool
	number    any
	str       string
	structure any
	ref       cell.Ref
}

// Of classifies a decoded document value. Maps and slices become KindStruct
// even when they contain cell references; those are bound by Bind.
func Of(v any) Expected {
	switch t := v.(type) {
	case nil:
		return Expected{kind: KindNull}
	case bool:
		return Expected{kind: KindBool, boolean: t}
	case string:
		return Expected{kind: KindString, str: t}
	case cell.Ref:
		return Expected{kind: KindVariable, ref: t}
	case map[string]any, []any:
		return Expected{kind: KindStruct, structure: t}
	}
	if isNumber(v) {
		return Expected{kind: KindNumber, number: v}
	}
	return Expected{kind: KindStruct, structure: v}
}

func (e Expected) Kind() Kind { return e.kind }

// Ref returns the referenced cell of a KindVariable value.
func (e Expected) Ref() (cell.Ref, bool) {
	return e.ref, e.kind == KindVariable
}

// Value returns the plain Go value.
func (e Expected) Value() any {
	switch e.kind {
	case KindBool:
		return e.boolean
	case KindNumber:
		return e.number
	case KindString:
		return e.str
	case KindStruct:
		return e.structure
	case KindVariable:
		return e.ref
	default:
		return nil
	}
}

// Bind replaces cell references with the values the cells hold now. A
// variable bound to a struct becomes KindStruct, to a string KindString, and
// so on. Unset cells yield an *cell.UndefinedError.
func (e Expected) Bind(store *cell.Store) (Expected, error) {
	switch e.kind {
	case KindVariable:
		v, err := store.Value(e.ref)
		if err != nil {
			return e, err
		}
		return Of(v), nil
	case KindStruct:
		v, err := store.Resolve(e.structure)
		if err != nil {
			return e, err
		}
		return Expected{kind: KindStruct, structure: v}, nil
	default:
		return e, nil
	}
}

// Matches applies the exact-match rule of the expected kind to a whole
// response body. present is false when the response had no body.
//
//   - null passes only for a missing body or a JSON null
//   - booleans and numbers need the same primitive, no coercion from strings
//   - strings pass for the identical string, or for a structured body equal to
//     the string parsed as JSON
//   - structs need deep structural equality
func (e Expected) Matches(actual any, present bool) bool {
	switch e.kind {
	case KindNull:
		return !present || actual == nil
	case KindBool:
		b, ok := actual.(bool)
		return present && ok && b == e.boolean
	case KindNumber:
		if !present {
			return false
		}
		if _, isString := actual.(string); isString {
			return false
		}
		return isNumber(actual) && numbersEqual(e.number, actual)
	case KindString:
		if !present {
			return false
		}
		if s, ok := actual.(string); ok {
			return s == e.str
		}
		if !isStructured(actual) {
			return false
		}
		var parsed any
		if err := json.Unmarshal([]byte(e.str), &parsed); err != nil {
			return false
		}
		return Equal(parsed, actual)
	case KindStruct:
		return present && Equal(e.structure, actual)
	default:
		return false
	}
}
