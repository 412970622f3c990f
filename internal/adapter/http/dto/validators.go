package dto

import (
	"html"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// achievementIDPattern matches catalogue ids such as "streak.7" or "qr-10".
var achievementIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

func init() {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	engine.RegisterCustomTypeFunc(func(field reflect.Value) any {
		d := field.Interface().(decimal.Decimal)
		f, _ := d.Float64()
		return f
	}, decimal.Decimal{})
	for tag, fn := range map[string]validator.Func{
		"achievement_id": isAchievementID,
		"web_url":        isWebURL,
	} {
		if err := engine.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}

func isAchievementID(fl validator.FieldLevel) bool {
	return achievementIDPattern.MatchString(fl.Field().String())
}

// isWebURL accepts absolute http(s) URLs with a host. Empty passes; pair
// with required when the field is mandatory.
func isWebURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}

// SanitizeStruct cleans the free-text fields of a request struct in place:
// surrounding whitespace and control characters are dropped and HTML is
// escaped. It follows *string fields and string slices. Anything other than
// a struct pointer is left alone.
func SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return
	}
	cleanValue(rv.Elem())
}

func cleanValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(cleanText(v.String()))
		}
	case reflect.Pointer:
		if !v.IsNil() && v.Elem().Kind() == reflect.String {
			cleanValue(v.Elem())
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.String {
			for i := range v.Len() {
				cleanValue(v.Index(i))
			}
		}
	case reflect.Struct:
		for i := range v.NumField() {
			if v.Type().Field(i).IsExported() {
				cleanValue(v.Field(i))
			}
		}
	}
}

func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(strings.TrimSpace(s))
}
