package entity

import (
	"strconv"
	"strings"
)

// Kind identifies the value type a property stores.
type Kind int

const (
	KindString Kind = iota + 1
	KindInteger
	KindFloat
	KindBoolean
)

// String returns the kind name used in validation error messages.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	}
	return "unknown"
}

// Property declares a typed field on an entity type. Writes to the field
// are coerced to the declared kind and checked against the property's
// constraints before they are committed.
type Property struct {
	name       string
	kind       Kind
	def        any
	hasDefault bool
	minLen     *int
	maxLen     *int
	minVal     *float64
	maxVal     *float64
	validate   func(any) bool
}

// PropertyOption configures a Property at construction time.
type PropertyOption func(*Property)

// Default sets the value reported for the field until it is first written.
// The default itself is never validated or persisted.
func Default(value any) PropertyOption {
	return func(p *Property) {
		p.def = value
		p.hasDefault = true
	}
}

// MinLength requires string values to have at least n bytes.
func MinLength(n int) PropertyOption {
	return func(p *Property) { p.minLen = &n }
}

// MaxLength requires string values to have at most n bytes.
func MaxLength(n int) PropertyOption {
	return func(p *Property) { p.maxLen = &n }
}

// MinValue requires numeric values to be >= v.
func MinValue(v float64) PropertyOption {
	return func(p *Property) { p.minVal = &v }
}

// MaxValue requires numeric values to be <= v.
func MaxValue(v float64) PropertyOption {
	return func(p *Property) { p.maxVal = &v }
}

// ValidateWith installs a custom predicate run after the built-in checks.
// A false return rejects the write with a validation error.
func ValidateWith(fn func(value any) bool) PropertyOption {
	return func(p *Property) { p.validate = fn }
}

// StringProperty declares a string-valued field.
func StringProperty(name string, opts ...PropertyOption) *Property {
	return newProperty(name, KindString, opts)
}

// IntegerProperty declares an integer-valued field. Whole floats and
// decimal strings are accepted and coerced.
func IntegerProperty(name string, opts ...PropertyOption) *Property {
	return newProperty(name, KindInteger, opts)
}

// FloatProperty declares a float-valued field. Integers and numeric
// strings are accepted and coerced.
func FloatProperty(name string, opts ...PropertyOption) *Property {
	return newProperty(name, KindFloat, opts)
}

// BooleanProperty declares a boolean-valued field. The strings "true",
// "1", "yes" and "on" (any case) coerce to true, everything else to false.
func BooleanProperty(name string, opts ...PropertyOption) *Property {
	return newProperty(name, KindBoolean, opts)
}

func newProperty(name string, kind Kind, opts []PropertyOption) *Property {
	p := &Property{name: name, kind: kind}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the field name the property declares.
func (p *Property) Name() string { return p.name }

// Kind returns the declared value kind.
func (p *Property) Kind() Kind { return p.kind }

// coerce converts value to the property's declared kind, or reports a
// validation error when the value cannot represent that kind.
func (p *Property) coerce(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch p.kind {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, validationf("field %q expects a string, got %T", p.name, value)
		}
		return s, nil

	case KindInteger:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != float64(int64(v)) {
				return nil, validationf("field %q expects an integer, got fractional %v", p.name, v)
			}
			return int64(v), nil
		case float32:
			return p.coerce(float64(v))
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, validationf("field %q expects an integer, got %q", p.name, v)
			}
			return n, nil
		default:
			return nil, validationf("field %q expects an integer, got %T", p.name, value)
		}

	case KindFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int32:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, validationf("field %q expects a float, got %q", p.name, v)
			}
			return f, nil
		default:
			return nil, validationf("field %q expects a float, got %T", p.name, value)
		}

	case KindBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "1", "yes", "on":
				return true, nil
			default:
				return false, nil
			}
		default:
			return nil, validationf("field %q expects a boolean, got %T", p.name, value)
		}
	}
	return nil, validationf("field %q has unknown kind %d", p.name, p.kind)
}

// check validates an already-coerced value against the property's
// constraints. A nil value always passes.
func (p *Property) check(value any) error {
	if value == nil {
		return nil
	}
	if p.kind == KindString {
		s := value.(string)
		if p.minLen != nil && len(s) < *p.minLen {
			return validationf("field %q must be at least %d characters, got %d", p.name, *p.minLen, len(s))
		}
		if p.maxLen != nil && len(s) > *p.maxLen {
			return validationf("field %q must be at most %d characters, got %d", p.name, *p.maxLen, len(s))
		}
	}
	if p.kind == KindInteger || p.kind == KindFloat {
		var f float64
		switch v := value.(type) {
		case int64:
			f = float64(v)
		case float64:
			f = v
		}
		if p.minVal != nil && f < *p.minVal {
			return validationf("field %q must be >= %v, got %v", p.name, *p.minVal, value)
		}
		if p.maxVal != nil && f > *p.maxVal {
			return validationf("field %q must be <= %v, got %v", p.name, *p.maxVal, value)
		}
	}
	if p.validate != nil && !p.validate(value) {
		return validationf("field %q rejected value %v", p.name, value)
	}
	return nil
}
