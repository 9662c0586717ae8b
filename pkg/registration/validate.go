package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/tendant/bizora/pkg/domain"
)

var (
	phonePattern      = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	nlPostcodePattern = regexp.MustCompile(`^[1-9]\d{3}\s?[A-Za-z]{2}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("nl_postcode", func(fl validator.FieldLevel) bool {
		return nlPostcodePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidationError lists field-level problems keyed by JSON path, e.g.
// "legal.acceptTerms".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid application: %s", strings.Join(keys, ", "))
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrInvalidApplication
}

// Parse decodes a raw signup form, applies defaults for omitted optional
// fields and validates the result.
func Parse(data []byte) (*Application, error) {
	app := defaultApplication()

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&app); err != nil {
		return nil, decodeError(err)
	}

	app.normalize()
	if err := Validate(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

// DecodeApplication re-reads a stored registration payload. Stored payloads
// are validated again before use.
func DecodeApplication(payload []byte) (*Application, error) {
	var app Application
	if err := json.Unmarshal(payload, &app); err != nil {
		return nil, decodeError(err)
	}
	if err := Validate(&app); err != nil {
		return nil, err
	}
	return &app, nil
}

// Validate checks an application against its field rules.
func Validate(app *Application) error {
	err := validate.Struct(app)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = message(fe)
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the root struct name: "Application.legal.acceptTerms" ->
// "legal.acceptTerms".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &ValidationError{Fields: map[string]string{
			typeErr.Field: fmt.Sprintf("must be a %s", jsonKind(typeErr.Type)),
		}}
	}
	return &ValidationError{Fields: map[string]string{"body": "malformed JSON body"}}
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Ptr:
		return jsonKind(t.Elem())
	}
	return "object"
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "eq":
		if fe.Kind() == reflect.Bool {
			return "must be accepted"
		}
		return fmt.Sprintf("must equal %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number (E.164)"
	case "nl_postcode":
		return "must be a valid Dutch postcode"
	case "timezone":
		return "must be a valid IANA time zone"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
