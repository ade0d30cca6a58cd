package models

import (
	"fmt"
	"strconv"

	"github.com/inferloop/anonsearch/pkg/errors"
)

// Field names of the survey schema.
const (
	FieldAge              = "age"
	FieldZipcode          = "zipcode"
	FieldMedicalCondition = "medical_condition"
)

// Fields lists the schema columns in table order.
var Fields = []string{FieldAge, FieldZipcode, FieldMedicalCondition}

// DefaultQuasiIdentifiers are generalized in listed order, which is also sort precedence.
var DefaultQuasiIdentifiers = []string{FieldAge, FieldZipcode}

// DefaultSensitiveField is the attribute whose diversity is enforced.
const DefaultSensitiveField = FieldMedicalCondition

// ValueKind tells numeric fields apart from categorical ones.
type ValueKind int

const (
	KindNumeric ValueKind = iota
	KindCategorical
)

func (k ValueKind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "categorical"
}

// Value is a tagged field value.
type Value struct {
	Kind ValueKind
	Int  int
	Str  string
}

// String renders the value as it appears in a table cell.
func (v Value) String() string {
	if v.Kind == KindNumeric {
		return strconv.Itoa(v.Int)
	}
	return v.Str
}

// Compare orders two values of the same kind.
func (v Value) Compare(o Value) int {
	if v.Kind == KindNumeric {
		switch {
		case v.Int < o.Int:
			return -1
		case v.Int > o.Int:
			return 1
		}
		return 0
	}
	switch {
	case v.Str < o.Str:
		return -1
	case v.Str > o.Str:
		return 1
	}
	return 0
}

// Record is one survey row.
type Record struct {
	Age              int    `json:"age"`
	Zipcode          int    `json:"zipcode"`
	MedicalCondition string `json:"medical_condition"`
}

// Value returns the named field as a tagged value.
func (r Record) Value(field string) (Value, error) {
	switch field {
	case FieldAge:
		return Value{Kind: KindNumeric, Int: r.Age}, nil
	case FieldZipcode:
		return Value{Kind: KindNumeric, Int: r.Zipcode}, nil
	case FieldMedicalCondition:
		return Value{Kind: KindCategorical, Str: r.MedicalCondition}, nil
	}
	return Value{}, errors.NewValidationError(errors.CodeUnknownField, fmt.Sprintf("unknown field %q", field))
}

// Strings renders the record in Fields order.
func (r Record) Strings() []string {
	return []string{strconv.Itoa(r.Age), strconv.Itoa(r.Zipcode), r.MedicalCondition}
}

// Validate checks the record against the expected survey ranges.
func (r Record) Validate() error {
	if r.Age < MinAge || r.Age > MaxAge {
		return errors.NewValidationError(errors.CodeOutOfRange,
			fmt.Sprintf("age %d outside [%d, %d]", r.Age, MinAge, MaxAge))
	}
	if r.Zipcode < MinZipcode || r.Zipcode > MaxZipcode {
		return errors.NewValidationError(errors.CodeOutOfRange,
			fmt.Sprintf("zipcode %d outside [%d, %d]", r.Zipcode, MinZipcode, MaxZipcode))
	}
	if r.MedicalCondition == "" {
		return errors.NewValidationError(errors.CodeMissingField, "medical_condition is empty")
	}
	return nil
}

// Survey value ranges.
const (
	MinAge     = 18
	MaxAge     = 90
	MinZipcode = 10000
	MaxZipcode = 99999
)

// MedicalConditions is the category set of the sensitive field.
var MedicalConditions = []string{"Condition A", "Condition B", "Condition C", "Condition D", "Condition E"}

// IsField reports whether name is a schema column.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}

// GeneralizedRecord is a released row; quasi-identifier cells hold the group representative.
type GeneralizedRecord struct {
	Age              string `json:"age"`
	Zipcode          string `json:"zipcode"`
	MedicalCondition string `json:"medical_condition"`
}

// NewGeneralizedRecord copies r with every field rendered as a string.
func NewGeneralizedRecord(r Record) GeneralizedRecord {
	return GeneralizedRecord{
		Age:              strconv.Itoa(r.Age),
		Zipcode:          strconv.Itoa(r.Zipcode),
		MedicalCondition: r.MedicalCondition,
	}
}

// Get returns the named cell.
func (g GeneralizedRecord) Get(field string) (string, error) {
	switch field {
	case FieldAge:
		return g.Age, nil
	case FieldZipcode:
		return g.Zipcode, nil
	case FieldMedicalCondition:
		return g.MedicalCondition, nil
	}
	return "", errors.NewValidationError(errors.CodeUnknownField, fmt.Sprintf("unknown field %q", field))
}

// Set overwrites the named cell.
func (g *GeneralizedRecord) Set(field, value string) error {
	switch field {
	case FieldAge:
		g.Age = value
	case FieldZipcode:
		g.Zipcode = value
	case FieldMedicalCondition:
		g.MedicalCondition = value
	default:
		return errors.NewValidationError(errors.CodeUnknownField, fmt.Sprintf("unknown field %q", field))
	}
	return nil
}

// Strings renders the record in Fields order.
func (g GeneralizedRecord) Strings() []string {
	return []string{g.Age, g.Zipcode, g.MedicalCondition}
}
