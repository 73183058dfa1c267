// Package options decodes the flat request options map into per-method typed
// option structs and validates their bounds
package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	perr "StegLab/pkg/errors"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Map is the wire-level options map: string keys, scalar values
type Map map[string]any

// ValidatorSvc holds a singleton validator and translator
type ValidatorSvc struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	vOnce sync.Once
	vSvc  *ValidatorSvc
)

// Validator returns the validator singleton, initializing on first use
func Validator() *ValidatorSvc {
	vOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// report option keys, not Go field names
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)
		registerShort(v, trans, "min", "{0} must be at least {1}")
		registerShort(v, trans, "max", "{0} must be at most {1}")
		registerShort(v, trans, "gte", "{0} must be at least {1}")
		registerShort(v, trans, "lte", "{0} must be at most {1}")
		registerShort(v, trans, "gt", "{0} must be greater than {1}")
		registerShort(v, trans, "lt", "{0} must be less than {1}")

		vSvc = &ValidatorSvc{Validator: v, Translator: trans}
	})
	return vSvc
}

// Keys returns the option keys in sorted order
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckShape rejects values that are not JSON scalars
func (m Map) CheckShape() error {
	for _, k := range m.Keys() {
		switch m[k].(type) {
		case nil, bool, string, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		default:
			return perr.WithField(perr.InvalidOptionsf("option %q must be a scalar value", k), k)
		}
	}
	return nil
}

// Decode overlays raw onto dst, a pointer to a struct already holding the method
// defaults. Keys must match a json tag of dst exactly; any other key, including a
// case variant of a tag, is ignored. A key whose value does not fit the field type
// fails with InvalidOptions. The result is then bounds-checked.
func Decode(raw Map, dst any) error {
	if err := raw.CheckShape(); err != nil {
		return err
	}

	known := fieldKeys(reflect.TypeOf(dst))
	picked := make(Map, len(raw))
	for k, v := range raw {
		if known[k] {
			picked[k] = v
		}
	}

	if len(picked) > 0 {
		data, err := json.Marshal(picked)
		if err != nil {
			return perr.Wrapf(err, perr.KindInvalidOptions, "options are not JSON encodable")
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			var te *json.UnmarshalTypeError
			if errors.As(err, &te) {
				field := te.Field
				e := perr.InvalidOptionsf("option %q expects %s, got %s", field, te.Type.String(), te.Value)
				return perr.WithField(e, field)
			}
			return perr.Wrapf(err, perr.KindInvalidOptions, "options could not be decoded")
		}
	}

	return Validate(dst)
}

// fieldKeys returns the exported json keys of a struct type, following
// embedded structs the way encoding/json does
func fieldKeys(t reflect.Type) map[string]bool {
	keys := map[string]bool{}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return keys
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			for k := range fieldKeys(f.Type) {
				keys[k] = true
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		keys[name] = true
	}
	return keys
}

// Validate runs struct bounds checks and maps failures to InvalidOptions
func Validate(v any) error {
	err := Validator().Validator.Struct(v)
	if err == nil {
		return nil
	}
	var inv *validator.InvalidValidationError
	if errors.As(err, &inv) {
		return nil
	}
	field, msg := FieldAndMessage(err)
	return perr.WithField(perr.InvalidOptionsf("%s", msg), field)
}

// FieldAndMessage returns the first failing field and translated message
func FieldAndMessage(err error) (field, message string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			return fe.Field(), fe.Translate(Validator().Translator)
		}
	}
	return "", err.Error()
}

func registerShort(v *validator.Validate, trans ut.Translator, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field(), fe.Param())
			return msg
		},
	)
}
