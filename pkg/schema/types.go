package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the declarative name of the type (e.g. "string", "number|string").
	Name() string
	// Validate checks value and returns the value handed to the action,
	// which differs from the input only for widening types.
	Validate(value any) (any, error)
}

// StringType validates string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) (any, error) {
	if _, ok := value.(string); !ok {
		return nil, fmt.Errorf("expected string, got %T", value)
	}
	return value, nil
}

// NumberType validates numeric values. JSON numbers decoded as json.Number
// are normalized to int64 or float64.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(value any) (any, error) {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return value, nil
	case float32:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("expected finite number")
		}
		return value, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("expected finite number")
		}
		return value, nil
	case json.Number:
		n, err := parseNumeric(v.String())
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", v.String())
		}
		return n, nil
	default:
		return nil, fmt.Errorf("expected number, got %T", value)
	}
}

// NumberOrStringType accepts a number or its string form, and coerces the
// string form to a number (int64 when integral, float64 otherwise).
type NumberOrStringType struct{}

func (t *NumberOrStringType) Name() string { return "number|string" }

func (t *NumberOrStringType) Validate(value any) (any, error) {
	if s, ok := value.(string); ok {
		n, err := parseNumeric(s)
		if err != nil {
			return nil, fmt.Errorf("expected number or numeric string, got %q", s)
		}
		return n, nil
	}
	n, err := (&NumberType{}).Validate(value)
	if err != nil {
		return nil, fmt.Errorf("expected number or numeric string, got %T", value)
	}
	return n, nil
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) (any, error) {
	if _, ok := value.(bool); !ok {
		return nil, fmt.Errorf("expected bool, got %T", value)
	}
	return value, nil
}

// EnumType accepts one of a fixed set of string literals.
type EnumType struct {
	values []string
}

func (t *EnumType) Name() string {
	return fmt.Sprintf("enum(%s)", strings.Join(t.values, ","))
}

// Values returns the accepted literals in declaration order.
func (t *EnumType) Values() []string {
	out := make([]string, len(t.values))
	copy(out, t.values)
	return out
}

func (t *EnumType) Validate(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected one of [%s], got %T", strings.Join(t.values, ", "), value)
	}
	for _, v := range t.values {
		if v == s {
			return value, nil
		}
	}
	return nil, fmt.Errorf("expected one of [%s], got %q", strings.Join(t.values, ", "), s)
}

// --- Factory Functions ---

// String creates a string type validator.
func String() Type { return &StringType{} }

// Number creates a number type validator.
func Number() Type { return &NumberType{} }

// NumberOrString creates the widening number-or-numeric-string validator.
func NumberOrString() Type { return &NumberOrStringType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Enum creates a validator for the given string literals.
func Enum(values ...string) Type {
	return &EnumType{values: append([]string(nil), values...)}
}

// parseNumeric parses an integer first so large IDs keep full precision.
// Integers above math.MaxInt64 come back as uint64.
func parseNumeric(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number: %q", s)
	}
	return f, nil
}

// ParseType converts a declarative type name to a Type.
// Supported: "string", "number", "number|string" (or "string|number"),
// "bool" (or "boolean") and "enum(a,b,...)".
func ParseType(typeStr string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)

	if strings.HasPrefix(typeStr, "enum(") && strings.HasSuffix(typeStr, ")") {
		inner := typeStr[len("enum(") : len(typeStr)-1]
		var values []string
		for _, v := range strings.Split(inner, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("enum requires at least one value")
		}
		return Enum(values...), nil
	}

	switch typeStr {
	case "string":
		return String(), nil
	case "number":
		return Number(), nil
	case "number|string", "string|number":
		return NumberOrString(), nil
	case "bool", "boolean":
		return Bool(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}
