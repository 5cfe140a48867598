package prompting

import "strconv"

// Variable is a runtime value for ${var:key} placeholders. The supported
// source types (string, integer, float) are coerced to their text form at
// construction, so the resolver never probes dynamic types mid-walk.
type Variable struct {
	text string
}

// StringVar wraps a string value.
func StringVar(s string) Variable { return Variable{text: s} }

// IntVar wraps an integer value.
func IntVar(i int64) Variable { return Variable{text: strconv.FormatInt(i, 10)} }

// FloatVar wraps a floating-point value.
func FloatVar(f float64) Variable {
	return Variable{text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// String returns the substitution text of the variable.
func (v Variable) String() string { return v.text }

// Variables is the runtime variable mapping consulted by ${var:key}
// placeholders. Lookups are exact-match; a missing key is an error at
// resolution time, never a default.
type Variables map[string]Variable

// VariablesFromMap validates a dynamically typed mapping at the engine
// boundary. Only string, integer, and floating-point values are accepted;
// anything else is a templating error naming the offending key.
func VariablesFromMap(values map[string]any) (Variables, error) {
	vars := make(Variables, len(values))
	for key, value := range values {
		switch t := value.(type) {
		case string:
			vars[key] = StringVar(t)
		case int:
			vars[key] = IntVar(int64(t))
		case int32:
			vars[key] = IntVar(int64(t))
		case int64:
			vars[key] = IntVar(t)
		case float32:
			vars[key] = FloatVar(float64(t))
		case float64:
			vars[key] = FloatVar(t)
		default:
			return nil, newErrorf(
				"variable %q must resolve to a string-compatible value, got %T", key, value)
		}
	}
	return vars, nil
}
