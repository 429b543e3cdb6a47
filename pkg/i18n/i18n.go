// Package i18n resolves user-facing messages for error codes in the caller's language.
package i18n

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Catalog holds translators for every supported locale.
type Catalog struct {
	uni      *ut.UniversalTranslator
	fallback ut.Translator
}

// New registers the message tables and returns a catalog defaulting to defaultLocale.
func New(defaultLocale string) (*Catalog, error) {
	supported := map[string]locales.Translator{
		"ar": ar.New(),
		"en": en.New(),
	}
	fallbackLocale, ok := supported[strings.ToLower(defaultLocale)]
	if !ok {
		fallbackLocale = supported["en"]
	}
	uni := ut.New(fallbackLocale, supported["ar"], supported["en"])

	for locale, table := range messages {
		trans, found := uni.GetTranslator(locale)
		if !found {
			return nil, fmt.Errorf("translator for %s not registered", locale)
		}
		for code, text := range table {
			if err := trans.Add(code, text, true); err != nil {
				return nil, fmt.Errorf("register %s message %s: %w", locale, code, err)
			}
		}
	}

	fallback, _ := uni.GetTranslator(fallbackLocale.Locale())
	return &Catalog{uni: uni, fallback: fallback}, nil
}

// Translator picks the best translator for an Accept-Language header value.
func (c *Catalog) Translator(acceptLanguage string) ut.Translator {
	if c == nil {
		return nil
	}
	if candidates := parseAcceptLanguage(acceptLanguage); len(candidates) > 0 {
		if trans, found := c.uni.FindTranslator(candidates...); found {
			return trans
		}
	}
	return c.fallback
}

// Message returns the localized text for code, or fallback when the code is unknown.
func (c *Catalog) Message(acceptLanguage, code, fallback string) string {
	trans := c.Translator(acceptLanguage)
	if trans == nil {
		return fallback
	}
	text, err := trans.T(code)
	if err != nil || text == "" {
		return fallback
	}
	return text
}

// RegisterValidator wires English field messages and JSON field names into validate.
func (c *Catalog) RegisterValidator(validate *validator.Validate) error {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	trans, _ := c.uni.GetTranslator("en")
	return en_translations.RegisterDefaultTranslations(validate, trans)
}

// FieldErrors flattens validator errors into field -> message pairs.
func (c *Catalog) FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if c == nil || !errors.As(err, &verrs) {
		return nil
	}
	trans, _ := c.uni.GetTranslator("en")
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(trans)
	}
	return fields
}

func parseAcceptLanguage(header string) []string {
	if header == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		tag = strings.ReplaceAll(tag, "-", "_")
		out = append(out, tag)
		if base := strings.SplitN(tag, "_", 2)[0]; base != tag {
			out = append(out, strings.ToLower(base))
		}
	}
	return out
}
