package validation

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"elearning/internal/models"
	"elearning/internal/qerrors"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	// custom validation tags
	classNameTag = "classname"
	httpURLTag   = "httpurl"
	usernameTag  = "username"
	dueDateTag   = "duedate"

	classNamePattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z .-]{0,15}$`)
	usernamePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(classNameTag, classNameValidation)
	_ = Validate.RegisterValidation(httpURLTag, httpURLValidation)
	_ = Validate.RegisterValidation(usernameTag, usernameValidation)
	_ = Validate.RegisterValidation(dueDateTag, dueDateValidation)

	registerCustomValidationsTranslations(classNameTag, httpURLTag, usernameTag, dueDateTag)
}

// registerCustomValidationsTranslations registers error messages for the custom tags. The default
// translations are already registered, so a noop registration func is passed.
func registerCustomValidationsTranslations(tags ...string) {
	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range tags {
		_ = Validate.RegisterTranslation(tag, Translator, registerFn, translateCustomValidationErrs)
	}
}

func translateCustomValidationErrs(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case classNameTag:
		return "must be a short class code such as 8A"
	case httpURLTag:
		return "must be a link starting with http:// or https://"
	case usernameTag:
		return "must be 3 to 32 lowercase letters, digits, dots, dashes or underscores"
	case dueDateTag:
		return "must be a date in YYYY-MM-DD format"
	default:
		return ""
	}
}

// Struct validates a request struct and converts validator errors into a *qerrors.ValidationError.
func Struct(s interface{}) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}

	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]qerrors.FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		fields = append(fields, qerrors.FieldError{Field: vErr.Field(), Error: vErr.Translate(Translator)})
	}
	return qerrors.NewValidationError(nil, fields...)
}

// Field reports a single-field validation failure.
func Field(field, message string) error {
	return qerrors.NewValidationError(nil, qerrors.FieldError{Field: field, Error: message})
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// IsHTTPURL reports whether s is a link starting with http:// or https://.
func IsHTTPURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Custom Validators

func classNameValidation(fl validator.FieldLevel) bool {
	return classNamePattern.MatchString(fl.Field().String())
}

func httpURLValidation(fl validator.FieldLevel) bool {
	return IsHTTPURL(fl.Field().String())
}

func usernameValidation(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(NormalizeUsername(fl.Field().String()))
}

func dueDateValidation(fl validator.FieldLevel) bool {
	_, err := time.Parse(models.DueDateLayout, fl.Field().String())
	return err == nil
}
