package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "datetime"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Object wraps a non-scalar cell (nested JSON object or array). Values of
// this kind are compared by pointer identity, never by content.
type Object struct {
	Raw any
}

// Value is a single cell of a query result. The zero Value is null.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
	Obj  *Object
}

func Null() Value { return Value{} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }
func Time(t time.Time) Value { return Value{Kind: KindTime, Time: t} }
func ObjectValue(raw any) Value { return Value{Kind: KindObject, Obj: &Object{Raw: raw}} }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) IsObject() bool { return v.Kind == KindObject }

// String renders the value the way it is shown to users and used as a
// group key. Null renders as "null".
func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		return v.Time.Format(time.RFC3339)
	case KindObject:
		if v.Obj == nil {
			return "null"
		}
		b, err := json.Marshal(v.Obj.Raw)
		if err != nil {
			return "[object]"
		}
		return string(b)
	default:
		return "null"
	}
}

// MarshalJSON emits the natural JSON form of the tagged value. Numbers
// JSON cannot carry (NaN, infinities) are written as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindTime:
		return json.Marshal(v.Time)
	case KindObject:
		if v.Obj == nil {
			return []byte("null"), nil
		}
		return json.Marshal(v.Obj.Raw)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON, except that timestamps come
// back as strings.
func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(x)
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	default:
		*v = ObjectValue(x)
	}
	return nil
}

// Row is one record of a query result keyed by column name.
type Row map[string]Value

// Get returns the named cell, or null when the column is absent.
func (r Row) Get(column string) Value {
	if r == nil {
		return Null()
	}
	return r[column]
}

// Column describes one column of a query result.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is the output of a query source. Rows must not be modified once
// the result has been handed out.
type Result struct {
	Rows        []Row
	Columns     []Column
	RetrievedAt time.Time
}

// Data returns the result rows in query order.
func (r *Result) Data() []Row {
	if r == nil {
		return nil
	}
	return r.Rows
}

// GetColumns returns the result columns in query order.
func (r *Result) GetColumns() []Column {
	if r == nil {
		return nil
	}
	return r.Columns
}

// CalendarEvent is a single row projected onto the calendar. End is nil
// when no end column is mapped or the row has no end value.
type CalendarEvent struct {
	Title  string     `json:"title"`
	Start  time.Time  `json:"start"`
	End    *time.Time `json:"end,omitempty"`
	Fields Row        `json:"fields,omitempty"`
}

// EventSource bundles the events of one group with the group's color.
type EventSource struct {
	Group  string          `json:"group"`
	Color  string          `json:"color"`
	Events []CalendarEvent `json:"events"`
}
