package protocol

import (
	"errors"
	"reflect"
	"regexp"

	"github.com/dukex/nodebase/pkg/execerr"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var variableNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}

		return field.Name
	})

	_ = v.RegisterValidation("varname", func(fl validator.FieldLevel) bool {
		return variableNamePattern.MatchString(fl.Field().String())
	})

	return v
}

// Decode copies node data into a typed struct using its json tags. Numbers
// and booleans given as strings are converted.
func Decode(op string, data map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return execerr.Configuration(op, err)
	}

	err = decoder.Decode(data)
	if err != nil {
		return execerr.Validation(op, "Invalid configuration: %v", err)
	}

	return nil
}

// Validate checks a decoded struct. Fields are checked in declaration order
// and the first failure is reported by its label, for example
// "Credential ID is missing".
func Validate(op string, data any) error {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return execerr.Validation(op, "Invalid configuration: %v", err)
	}

	fe := validationErrors[0]

	switch fe.Tag() {
	case "required":
		return execerr.Validation(op, "%s is missing", fe.Field())
	case "varname":
		return execerr.Validation(op, "%s must start with a letter, $ or _ and contain only letters, digits, $ or _", fe.Field())
	case "oneof":
		return execerr.Validation(op, "%s must be one of %s", fe.Field(), fe.Param())
	default:
		return execerr.Validation(op, "%s is invalid", fe.Field())
	}
}

// DecodeAndValidate is Decode followed by Validate.
func DecodeAndValidate(op string, data map[string]any, out any) error {
	err := Decode(op, data, out)
	if err != nil {
		return err
	}

	return Validate(op, out)
}
