package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CompetitorNameColumn is the column holding the competitor's display name.
const CompetitorNameColumn = "competitor_name"

// ClientCompetitorName marks rows that belong to the client's own facilities.
const ClientCompetitorName = "modSTORAGE"

// ValueKind identifies which variant a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a single cell of a data row.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
}

func Null() Value               { return Value{} }
func Bool(v bool) Value         { return Value{kind: KindBool, b: v} }
func Number(v float64) Value    { return Value{kind: KindNumber, n: v} }
func String(v string) Value     { return Value{kind: KindString, s: v} }
func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

// Float returns the numeric value. ok is false for non-numbers and for NaN/Inf.
func (v Value) Float() (f float64, ok bool) {
	if v.kind != KindNumber || math.IsNaN(v.n) || math.IsInf(v.n, 0) {
		return 0, false
	}
	return v.n, true
}

// Text returns the string payload; ok is false for non-strings.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	default:
		return "null"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(t)
	case float64:
		*v = Number(t)
	case string:
		*v = String(t)
	default:
		return fmt.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: cell value must be a scalar", node.Line)
	}
	switch node.Tag {
	case "!!null":
		*v = Null()
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = Bool(b)
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = Number(f)
	default:
		*v = String(node.Value)
	}
	return nil
}

// Row is one competitor unit at a snapshot, keyed by column name.
type Row map[string]Value

// CompetitorName returns the row's competitor name, or "" when absent.
func (r Row) CompetitorName() string {
	name, _ := r[CompetitorNameColumn].Text()
	return name
}

// IsClient reports whether the row belongs to the client rather than a competitor.
func (r Row) IsClient() bool {
	return r.CompetitorName() == ClientCompetitorName
}

// ClientUnit carries the client-side inventory signal consumed by adjusters.
type ClientUnit struct {
	AvailableUnits *float64 `json:"available_units" yaml:"available_units"`
}

// NewClientUnit returns a ClientUnit with the given available unit count.
func NewClientUnit(available float64) ClientUnit {
	return ClientUnit{AvailableUnits: &available}
}
