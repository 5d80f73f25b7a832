package codec

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var (
	// ErrMissingField is returned when a required struct field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrNullValue is returned when null is stored where the target type
	// cannot hold it.
	ErrNullValue = errors.New("null for non-nullable value")
)

var (
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	nullJSON            = []byte("null")
)

type structField struct {
	name     string
	typ      reflect.Type
	optional bool
}

// fieldCache maps reflect.Type to []structField.
var fieldCache sync.Map

// checkRequired walks raw alongside t and reports the first required field
// that is missing or null where a non-nullable value is expected. Type
// errors are left to json.Unmarshal, which has already run.
func checkRequired(t reflect.Type, raw json.RawMessage, path string) error {
	if customDecoding(t) {
		return nil
	}
	if bytes.Equal(raw, nullJSON) {
		if nullable(t) {
			return nil
		}
		if path == "" {
			return fmt.Errorf("%w: %s", ErrNullValue, t)
		}
		return fmt.Errorf("%w %q", ErrNullValue, path)
	}

	switch t.Kind() {
	case reflect.Pointer:
		return checkRequired(t.Elem(), raw, path)

	case reflect.Struct:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		for _, f := range fieldsOf(t) {
			fieldPath := joinPath(path, f.name)
			value, ok := lookup(obj, f.name)
			if !ok {
				if f.optional {
					continue
				}
				return fmt.Errorf("%w %q", ErrMissingField, fieldPath)
			}
			if err := checkRequired(f.typ, value, fieldPath); err != nil {
				return err
			}
		}

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		for i, item := range items {
			if err := checkRequired(t.Elem(), item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case reflect.Map:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil
		}
		for k, item := range entries {
			if err := checkRequired(t.Elem(), item, joinPath(path, k)); err != nil {
				return err
			}
		}
	}
	return nil
}

func customDecoding(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return t.Implements(jsonUnmarshalerType) || pt.Implements(jsonUnmarshalerType) ||
		t.Implements(textUnmarshalerType) || pt.Implements(textUnmarshalerType)
}

// nullable reports whether encoding/json can produce null for t.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

func fieldsOf(t reflect.Type) []structField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]structField)
	}
	fields := collectFields(t)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type) []structField {
	var fields []structField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" {
			ft := sf.Type
			viaPointer := ft.Kind() == reflect.Pointer
			if viaPointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				for _, ef := range collectFields(ft) {
					ef.optional = ef.optional || viaPointer
					fields = append(fields, ef)
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}

		optional := hasOption(opts, "omitempty") || hasOption(opts, "omitzero")
		switch sf.Type.Kind() {
		case reflect.Pointer, reflect.Interface:
			optional = true
		}
		fields = append(fields, structField{name: name, typ: sf.Type, optional: optional})
	}
	return fields
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

// lookup finds a key the way encoding/json matches fields: exact match
// first, then case-insensitive.
func lookup(obj map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
