package identity

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/msomdec/postbook/internal/domain"
)

// PolicyError lists every credential policy violation of a request.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return "credential policy: " + strings.Join(e.Violations, "; ")
}

// Unwrap lets callers match policy failures with domain.ErrInvalidInput.
func (e *PolicyError) Unwrap() error { return domain.ErrInvalidInput }

type rule struct {
	tag     string
	message string
}

var (
	usernameRules = []rule{
		{"required", "username is required"},
		{"min=3,max=50", "username must be between 3 and 50 characters"},
		{"alphanum", "username may only contain letters and digits"},
	}
	passwordRules = []rule{
		{"min=8", "password must be at least 8 characters"},
		{"password_upper", "password must contain an upper-case letter"},
		{"password_lower", "password must contain a lower-case letter"},
		{"password_digit", "password must contain a digit"},
		{"password_symbol", "password must contain a symbol"},
	}
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("password_upper", containsRune(unicode.IsUpper))
	v.RegisterValidation("password_lower", containsRune(unicode.IsLower))
	v.RegisterValidation("password_digit", containsRune(unicode.IsDigit))
	v.RegisterValidation("password_symbol", containsRune(func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
	return v
}

func containsRune(pred func(rune) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), pred) >= 0
	}
}

// checkPolicy reports each violated rule once. Username rules stop at the
// first failure since later ones add nothing for an empty name.
func checkPolicy(v *validator.Validate, username, email, password string) error {
	var violations []string
	for _, r := range usernameRules {
		if err := v.Var(username, r.tag); err != nil {
			violations = append(violations, r.message)
			break
		}
	}
	if email != "" {
		if err := v.Var(email, "email"); err != nil {
			violations = append(violations, "email address is not valid")
		}
	}
	for _, r := range passwordRules {
		if err := v.Var(password, r.tag); err != nil {
			violations = append(violations, r.message)
		}
	}
	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
