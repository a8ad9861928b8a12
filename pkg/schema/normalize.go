package schema

import "fmt"

// Normalize returns the typed payload for values: hidden fields are dropped,
// empty optional fields are omitted, numbers become float64, datetimes become
// UTC time.Time and sets become []string. Normalize expects values that
// already passed Validate and reports the first field it cannot coerce.
func Normalize(form *FormSchema, values Values, opts ...Option) (Values, error) {
	if form == nil {
		return nil, fmt.Errorf("schema: form is nil")
	}
	cfg := newOptions(opts)
	out := make(Values)
	for _, field := range VisibleFields(form, values) {
		raw, ok := values.Get(field.ID)
		if !ok || isEmpty(raw) {
			if field.Kind == KindSet {
				out[string(field.ID)] = []string{}
			}
			continue
		}
		value, err := coerce(field, raw, cfg)
		if err != nil {
			return nil, fmt.Errorf("schema: form %s: field %s: %w", form.ID, field.ID, err)
		}
		out[string(field.ID)] = value
	}
	return out, nil
}

func coerce(field FieldSpec, raw any, cfg options) (any, error) {
	kind := field.Kind
	switch field.Transform {
	case TransformNumber:
		kind = KindNumber
	case TransformDateTime:
		kind = KindDateTime
	}

	switch kind {
	case KindNumber:
		n, ok := asNumber(raw)
		if !ok {
			return nil, fmt.Errorf("expected a number, got %q", asString(raw))
		}
		return n, nil
	case KindDateTime:
		t, ok := asTime(raw, cfg.location)
		if !ok {
			return nil, fmt.Errorf("expected a datetime, got %q", asString(raw))
		}
		return t, nil
	case KindSet:
		items, ok := asStrings(raw)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings")
		}
		return items, nil
	default:
		return asString(raw), nil
	}
}
