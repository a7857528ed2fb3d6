package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a loosely typed scalar read from a result column. Only the field
// matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Text  string
	Bool  bool
	Time  time.Time
}

func Null() Value                { return Value{Kind: KindNull} }
func IntValue(v int64) Value     { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func TextValue(v string) Value   { return Value{Kind: KindText, Text: v} }
func BoolValue(v bool) Value     { return Value{Kind: KindBool, Bool: v} }
func TimeValue(v time.Time) Value {
	return Value{Kind: KindTime, Time: v}
}

// Any returns the value as a plain Go value, nil for NULL.
func (v Value) Any() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindText:
		return v.Text
	case KindBool:
		return v.Bool
	case KindTime:
		return v.Time
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.Float)
	case KindText:
		return json.Marshal(v.Text)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindTime:
		return json.Marshal(v.Time.Format(time.RFC3339Nano))
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.Kind)
	}
}

type Field struct {
	Name  string
	Value Value
}

// Row keeps the projected column order of the statement that produced it.
type Row []Field

// Get returns the first field with the given name.
func (r Row) Get(name string) (Value, bool) {
	for _, field := range r {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

// UniqueNames suffixes repeated column names with _2, _3 and so on, so two
// unaliased aggregates do not collide as JSON keys. Unique names are kept.
func UniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		seen[name] = true
	}
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		candidate := name
		// A suffix never takes a name another column reports itself.
		for n := 2; used[candidate] || (candidate != name && seen[candidate]); n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// MarshalJSON writes the fields in order. Repeated names are made unique
// with UniqueNames.
func (r Row) MarshalJSON() ([]byte, error) {
	names := make([]string, len(r))
	for i, field := range r {
		names[i] = field.Name
	}
	names = UniqueNames(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(names[i])
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", field.Name, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FromDriver converts a value scanned from database/sql into a Value.
// databaseType is the column's reported type name and is used to recover
// numbers that drivers hand back as text.
func FromDriver(value any, databaseType string) Value {
	switch typed := value.(type) {
	case nil:
		return Null()
	case bool:
		return BoolValue(typed)
	case int64:
		return IntValue(typed)
	case int32:
		return IntValue(int64(typed))
	case int16:
		return IntValue(int64(typed))
	case int8:
		return IntValue(int64(typed))
	case int:
		return IntValue(int64(typed))
	case uint8:
		return IntValue(int64(typed))
	case uint16:
		return IntValue(int64(typed))
	case uint32:
		return IntValue(int64(typed))
	case uint64:
		if typed > math.MaxInt64 {
			return FloatValue(float64(typed))
		}
		return IntValue(int64(typed))
	case float64:
		return FloatValue(typed)
	case float32:
		return FloatValue(float64(typed))
	case string:
		return textOrNumber(typed, databaseType)
	case []byte:
		return textOrNumber(string(typed), databaseType)
	case time.Time:
		return TimeValue(typed)
	case *big.Int:
		if typed == nil {
			return Null()
		}
		if typed.IsInt64() {
			return IntValue(typed.Int64())
		}
		f, _ := new(big.Float).SetInt(typed).Float64()
		return FloatValue(f)
	default:
		if f, ok := floatMethod(typed); ok {
			return FloatValue(f)
		}
		if s, ok := typed.(fmt.Stringer); ok {
			return TextValue(s.String())
		}
		return TextValue(fmt.Sprint(typed))
	}
}

// floatMethod covers driver decimal types, whose Float64 method may be
// declared on the pointer receiver.
func floatMethod(value any) (float64, bool) {
	type floater interface{ Float64() float64 }
	if f, ok := value.(floater); ok {
		return f.Float64(), true
	}
	ptr := reflect.New(reflect.TypeOf(value))
	ptr.Elem().Set(reflect.ValueOf(value))
	if f, ok := ptr.Interface().(floater); ok {
		return f.Float64(), true
	}
	return 0, false
}

func textOrNumber(raw, databaseType string) Value {
	if !isNumericType(databaseType) {
		return TextValue(raw)
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return TextValue(raw)
	}
	return FloatValue(parsed)
}

func isNumericType(databaseType string) bool {
	upper := strings.ToUpper(strings.TrimSpace(databaseType))
	return strings.HasPrefix(upper, "NUMERIC") || strings.HasPrefix(upper, "DECIMAL")
}
