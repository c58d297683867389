// Package schema provides the declarative payload validation used by actions.
//
// It defines a small, closed type system (string, number, number-or-string,
// bool and enum-of-literals). A Schema is an ordered list of fields, each
// required or optional, and validation stops at the first failure.
//
// Basic usage:
//
//	s := schema.Schema{
//	    schema.Required("group_id", schema.NumberOrString()),
//	    schema.Optional("no_cache", schema.Bool()),
//	}
//
//	input, err := schema.Validate(s, map[string]any{"group_id": "42"})
//	// input["group_id"] == int64(42)
//
// Only NumberOrString widens its input: a numeric-looking string is coerced to
// a number during validation, so actions never see the string form. Every
// other type checks without conversion.
//
// Schemas can also be declared from type strings, which is how they are
// serialized:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "group_id": "number|string",
//	    "no_cache": "bool?",
//	})
//
// This package has no dependencies beyond the Go standard library.
package schema
