// Package coltype defines the semantic column types of the table engine and
// how a value of each type is rendered for display.
//
// Every type carries its own formatting rule (see [Type.FormatValue]). Types
// without a numeric rule render values with [Stringify].
package coltype

import (
	"fmt"
	"strings"
)

// Type is the semantic type of a column.
type Type int

const (
	// Untyped is the type of raw columns registered from row keys without a spec.
	Untyped Type = iota
	Numeric
	String
	Categorical
	Boolean
	Temporal
	Currency
	Percentage
	DecimalPercentage
	Integer
	Population
	PopulationDensity
	Age
	Ratio
)

var typeNames = map[Type]string{
	Untyped:           "Untyped",
	Numeric:           "Numeric",
	String:            "String",
	Categorical:       "Categorical",
	Boolean:           "Boolean",
	Temporal:          "Temporal",
	Currency:          "Currency",
	Percentage:        "Percentage",
	DecimalPercentage: "DecimalPercentage",
	Integer:           "Integer",
	Population:        "Population",
	PopulationDensity: "PopulationDensity",
	Age:               "Age",
	Ratio:             "Ratio",
}

// String returns the string representation of a Type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", int(t))
}

// ParseType resolves a type name case-insensitively.
// The empty string resolves to Untyped.
func ParseType(name string) (Type, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Untyped, true
	}
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return t, true
		}
	}
	return Untyped, false
}

// IsNumeric reports whether values of this type are numbers.
func (t Type) IsNumeric() bool {
	switch t {
	case Numeric, Currency, Percentage, DecimalPercentage, Integer,
		Population, PopulationDensity, Age, Ratio:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
