package schema

// Validate checks payload against the schema and returns the input to hand to
// the action: a shallow copy of the payload with widened values coerced.
//
// A nil payload is an empty object. Any other non-object payload is rejected.
// Fields are checked in declaration order and the first failure is returned
// as a *ValidationError. Keys not declared in the schema pass through untouched.
func Validate(s Schema, payload any) (map[string]any, error) {
	var data map[string]any
	switch p := payload.(type) {
	case nil:
		data = map[string]any{}
	case map[string]any:
		data = p
	default:
		return nil, &ValidationError{Reason: "payload must be an object", Value: payload}
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	for _, field := range s {
		value, exists := data[field.Name]
		if !exists || value == nil {
			if field.Required {
				return nil, &ValidationError{Key: field.Name, Reason: "required"}
			}
			continue
		}

		coerced, err := field.Type.Validate(value)
		if err != nil {
			return nil, &ValidationError{
				Key:    field.Name,
				Reason: err.Error(),
				Value:  value,
			}
		}
		out[field.Name] = coerced
	}

	return out, nil
}
