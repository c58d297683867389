package schema

// Field declares one payload key.
type Field struct {
	Name        string
	Type        Type
	Required    bool
	Description string
}

// Describe returns a copy of f with a human-readable description.
func (f Field) Describe(description string) Field {
	f.Description = description
	return f
}

// Required declares a field that must be present and non-null.
func Required(name string, t Type) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Optional declares a field that is type-checked only when present.
func Optional(name string, t Type) Field {
	return Field{Name: name, Type: t}
}

// Schema is an ordered list of fields. Order decides which failure is
// reported when several fields are invalid.
type Schema []Field

// Lookup returns the field declared under name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredNames lists required field names in declaration order.
func (s Schema) RequiredNames() []string {
	var names []string
	for _, f := range s {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}
