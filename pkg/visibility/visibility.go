package visibility

import "strings"

// Evaluator decides whether a rule holds for the supplied context. Rules are
// used for conditional visibility and for cross-field refinements, so the
// field path names the field the rule is attached to.
type Evaluator interface {
	Eval(fieldPath, rule string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values carries the current form
// values keyed by field name while Extras lets callers inject additional
// lookups under the `extras.` prefix.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldPath, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldPath, rule string, ctx Context) (bool, error) {
	return fn(fieldPath, rule, ctx)
}

const extrasPrefix = "extras."

// Lookup resolves key against ctx. Keys prefixed with `extras.` read from
// Extras; everything else reads from Values. Dotted keys are tried verbatim
// first and then walked through nested maps.
func Lookup(ctx Context, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	if len(key) > len(extrasPrefix) && strings.EqualFold(key[:len(extrasPrefix)], extrasPrefix) {
		return lookupMap(ctx.Extras, strings.TrimSpace(key[len(extrasPrefix):]))
	}
	return lookupMap(ctx.Values, key)
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}
