package settings

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/mixdeck/internal/shared"
)

// Kind is the value type of a [Field].
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	KindEnum
	KindSecret // string that is masked on display
)

// Field describes one persisted setting.
type Field struct {
	Name     string // JSON key
	Category string
	Label    string
	Kind     Kind
	Default  any
	Options  []string // Allowed values for KindEnum
}

// Parse converts a string into the field's JSON value.
func (f Field) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.Kind {
	case KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false", shared.ErrInvalidArgument, f.Name)
		}
		return v, nil
	case KindInt:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer", shared.ErrInvalidArgument, f.Name)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects a number", shared.ErrInvalidArgument, f.Name)
		}
		return v, nil
	case KindEnum:
		if !slices.Contains(f.Options, raw) {
			return nil, fmt.Errorf("%w: %s must be one of %s", shared.ErrInvalidArgument, f.Name, strings.Join(f.Options, ", "))
		}
		return raw, nil
	default:
		return raw, nil
	}
}

// Schema is the ordered list of persisted fields of a settings type.
type Schema []Field

// Lookup finds a field by name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Settings is implemented by every source settings struct.
type Settings interface {
	Backend() string // Backend names the source and the settings file
	Schema() Schema
}

// Validator is optionally implemented by settings types to reject loaded values.
type Validator interface {
	Validate() error
}

// Common holds the fields every source shares.
type Common struct {
	IsEnabled bool `json:"is_enabled"`
}

// Enabled reports whether the source is enabled.
func (c Common) Enabled() bool { return c.IsEnabled }

// EnabledField is the schema entry for [Common.IsEnabled].
func EnabledField() Field {
	return Field{Name: "is_enabled", Category: "General", Label: "Enabled", Kind: KindBool, Default: true}
}

// CheckSchema verifies that the schema names exactly the persisted JSON keys of v and that each default matches v.
func CheckSchema(v Settings) error {
	values, err := toMap(v)
	if err != nil {
		return err
	}

	schema := v.Schema()
	for _, f := range schema {
		got, ok := values[f.Name]
		if !ok {
			return fmt.Errorf("schema field %s is not persisted", f.Name)
		}
		want, err := normalize(f.Default)
		if err != nil {
			return err
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return fmt.Errorf("schema default for %s is %v, struct default is %v", f.Name, want, got)
		}
	}

	for key := range values {
		if _, ok := schema.Lookup(key); !ok {
			return fmt.Errorf("persisted field %s is missing from schema", key)
		}
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return m, nil
}

// normalize passes a value through JSON so numbers compare as float64.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	return out, json.Unmarshal(data, &out)
}
