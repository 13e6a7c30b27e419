// Package rowvalue defines the dynamic, typed value a Row cell can hold.
//
// Sources and sinks in graph-etl-lib never agree on a compile-time schema:
// a CSV file's columns and a SQL result set's columns are only known once a
// source actually opens, so Row is a map keyed by column name rather than a
// generated struct. Value is a small tagged union restricting that map's
// values to the handful of types a graph database property can actually hold.
package rowvalue

import (
	"fmt"
	"time"
)

// Kind identifies which field of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindTime
	KindPoint
)

// Point is a geographic coordinate, the one composite value Value carries.
type Point struct {
	Lat float64
	Lon float64
}

// Value is a tagged union over the property types a graph write accepts.
// The zero Value is KindNull.
type Value struct {
	kind  Kind
	str   string
	i64   int64
	f64   float64
	b     bool
	t     time.Time
	point Point
}

func Null() Value                 { return Value{kind: KindNull} }
func String(s string) Value       { return Value{kind: KindString, str: s} }
func Int64(i int64) Value         { return Value{kind: KindInt64, i64: i} }
func Float64(f float64) Value     { return Value{kind: KindFloat64, f64: f} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Time(t time.Time) Value      { return Value{kind: KindTime, t: t} }
func NewPoint(lat, lon float64) Value { return Value{kind: KindPoint, point: Point{Lat: lat, Lon: lon}} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) StringVal() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) Int64Val() (int64, bool) {
	if v.kind != KindInt64 {
		return 0, false
	}
	return v.i64, true
}

func (v Value) Float64Val() (float64, bool) {
	if v.kind != KindFloat64 {
		return 0, false
	}
	return v.f64, true
}

func (v Value) BoolVal() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) TimeVal() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

func (v Value) PointVal() (Point, bool) {
	if v.kind != KindPoint {
		return Point{}, false
	}
	return v.point, true
}

// Any unwraps Value into a plain interface{}, nil for KindNull. Used at the
// validation and sink boundaries where an untyped value is what the
// downstream library (validator struct field, Neo4j parameter map) wants.
func (v Value) Any() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt64:
		return v.i64
	case KindFloat64:
		return v.f64
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	case KindPoint:
		return v.point
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "<null>"
	case KindString:
		return v.str
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f64)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindPoint:
		return fmt.Sprintf("(%g, %g)", v.point.Lat, v.point.Lon)
	default:
		return ""
	}
}

// FromAny wraps a Go native value coming out of a database driver or CSV
// parse into a Value, inferring Kind from the dynamic type. Unrecognized
// types fall back to their fmt.Sprintf string form rather than an error,
// since a source should never fail a whole batch over one odd column type.
func FromAny(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case int:
		return Int64(int64(t))
	case int32:
		return Int64(int64(t))
	case int64:
		return Int64(t)
	case float32:
		return Float64(float64(t))
	case float64:
		return Float64(t)
	case bool:
		return Bool(t)
	case time.Time:
		return Time(t)
	case Point:
		return Value{kind: KindPoint, point: t}
	case []byte:
		return String(string(t))
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Row is one record flowing through the pipeline: a flat map from column
// name to typed value.
type Row map[string]Value

// OriginIndexKey is the reserved column carrying the monotonically
// increasing, 0-based position of a row in its source. Sources populate it;
// nothing downstream may overwrite it.
const OriginIndexKey = "_origin_index"

// Clone makes a shallow copy of r; Value itself is an immutable value type
// so a shallow copy is a full copy for all practical purposes.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// OriginIndex reads the reserved origin-index column, returning ok=false if
// the row was never annotated (e.g. constructed directly in a test).
func (r Row) OriginIndex() (int64, bool) {
	v, present := r[OriginIndexKey]
	if !present {
		return 0, false
	}
	return v.Int64Val()
}
