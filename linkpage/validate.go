package linkpage

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	usernameRe = regexp.MustCompile(`^[a-z0-9_.]{3,32}$`)
	slugRe     = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRe.MatchString(fl.Field().String())
	})
	return v
}

// NormalizeKey lower-cases and trims a username or slug.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ValidateUsername checks a normalized username: 3 to 32 characters from
// [a-z0-9_.].
func ValidateUsername(username string) error {
	if err := validate.Var(username, "username"); err != nil {
		return fmt.Errorf("%w: username %q", ErrInvalidKey, username)
	}
	return nil
}

// ValidateSlug checks a normalized AI page slug: 1 to 64 characters from
// [a-z0-9-].
func ValidateSlug(slug string) error {
	if err := validate.Var(slug, "slug"); err != nil {
		return fmt.Errorf("%w: slug %q", ErrInvalidKey, slug)
	}
	return nil
}

// validateRecord runs the struct tags of a Profile or AIPage and reports the
// first few violations.
func validateRecord(rec any) error {
	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, after, ok := strings.Cut(field, "."); ok {
		field = after
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s exceeds %s", field, fe.Param())
	case "url", "http_url":
		return field + " must be an http(s) URL"
	case "username", "slug":
		return field + " is malformed"
	default:
		return field + " is invalid"
	}
}
