package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const PasswordSpecials = "@$!%*?&#"

var (
	digits10Pattern    = regexp.MustCompile(`^[0-9]{10}$`)
	digits6Pattern     = regexp.MustCompile(`^[0-9]{6}$`)
	simpleEmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern    = regexp.MustCompile(`^[\w.@+-]+$`)
)

var genderCodes = map[string]bool{
	"m": true, "f": true, "o": true,
	"male": true, "female": true, "other": true,
}

// defaultMessages are used when the caller supplies no field-specific message.
var defaultMessages = map[string]string{
	"required":     "This field is required.",
	"max":          "Ensure this field has no more than %s characters.",
	"min":          "Ensure this field has at least %s characters.",
	"digits10":     "Must be exactly 10 digits.",
	"digits6":      "Must be exactly 6 digits.",
	"gender":       "Gender must be one of the following: M, F, O, Male, Female, Other.",
	"simple_email": "Enter a valid email address.",
	"username":     "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
	"password":     "Password must be at least 8 characters long and contain at least one digit, one uppercase letter, one lowercase letter, and one special character (" + PasswordSpecials + ").",
	"pdf":          "Only PDF files are allowed.",
	"uuid":         "Must be a valid UUID.",
}

// Validator wraps a go-playground validator configured with the domain tags.
type Validator struct {
	engine *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(fieldName)

	mustRegister(v, "digits10", matchString(digits10Pattern))
	mustRegister(v, "digits6", matchString(digits6Pattern))
	mustRegister(v, "simple_email", matchString(simpleEmailPattern))
	mustRegister(v, "username", matchString(usernamePattern))
	mustRegister(v, "gender", func(fl validator.FieldLevel) bool {
		return genderCodes[strings.ToLower(fl.Field().String())]
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	mustRegister(v, "pdf", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(strings.ToLower(fl.Field().String()), ".pdf")
	})

	return &Validator{engine: v}
}

// Struct validates s and returns one message per failing field, keyed by the
// field's json name. Messages are looked up as "field.tag" in overrides,
// then by tag in the defaults. A nil map means s is valid.
func (v *Validator) Struct(s interface{}, overrides map[string]string) (map[string]string, error) {
	err := v.engine.Struct(s)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("failed to validate: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = message(fe, overrides)
	}
	return fields, nil
}

// StrongPassword reports whether p has at least 8 characters and contains a
// digit, an upper-case letter, a lower-case letter and one of PasswordSpecials.
func StrongPassword(p string) bool {
	if len(p) < 8 {
		return false
	}
	var digit, upper, lower, special bool
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}
	return digit && upper && lower && special
}

func message(fe validator.FieldError, overrides map[string]string) string {
	if msg, ok := overrides[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	tmpl, ok := defaultMessages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("Failed on the '%s' rule.", fe.Tag())
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, fe.Param())
	}
	return tmpl
}

// fieldName keys errors by json name, then form name, then the lower-cased Go name.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(fld.Name)
}

func matchString(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}
