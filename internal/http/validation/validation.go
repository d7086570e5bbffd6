package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldErrors map[string]string

var (
	mobileRe = regexp.MustCompile(`^09\d{9}$`)
	postalRe = regexp.MustCompile(`^\d{10}$`)
)

// Register installs the storefront's custom binding validators on gin's
// validator engine. Call once at startup.
func Register() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("irmobile", func(fl validator.FieldLevel) bool {
		return mobileRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("postalcode", func(fl validator.FieldLevel) bool {
		return postalRe.MatchString(fl.Field().String())
	})
}

// FromBindError turns a bind/validation error into a field → message map.
// dst: the bound struct pointer (for tag lookup).
func FromBindError(err error, dst any) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			key := fieldKey(dst, fe.StructField())
			out[key] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	// Other bind failures (type mismatch etc.)
	out["_"] = "Request body is invalid."
	return out
}

func fieldKey(dst any, structField string) string {
	t := reflect.TypeOf(dst)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := findField(t, structField); ok {
		tag := f.Tag.Get("json")
		if i := strings.Index(tag, ","); i >= 0 {
			tag = tag[:i]
		}
		if tag != "" && tag != "-" {
			return tag
		}
	}
	return strings.ToLower(structField)
}

// findField searches the struct and any nested structs (including slice
// elements) for a field by Go name. Bound inputs nest address and cart
// line structs, so a flat lookup is not enough.
func findField(t reflect.Type, name string) (reflect.StructField, bool) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	if f, ok := t.FieldByName(name); ok {
		return f, true
	}
	for i := 0; i < t.NumField(); i++ {
		if f, ok := findField(t.Field(i).Type, name); ok {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "min":
		return "Must be at least " + param + "."
	case "max":
		return "Must be at most " + param + "."
	case "gt":
		return "Must be greater than " + param + "."
	case "irmobile":
		return "Must be a local mobile number (09xxxxxxxxx)."
	case "postalcode":
		return "Must be a 10-digit postal code."
	default:
		return "Invalid value."
	}
}
