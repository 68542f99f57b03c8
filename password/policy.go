package password

import (
	"strings"
	"unicode"
)

// Policy mirrors a user pool password policy.
type Policy struct {
	MinLength        int
	RequireLowercase bool
	RequireUppercase bool
	RequireNumbers   bool
	RequireSymbols   bool
}

// DefaultPolicy is the user pool default: eight characters with every
// character class required.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		RequireLowercase: true,
		RequireUppercase: true,
		RequireNumbers:   true,
		RequireSymbols:   true,
	}
}

// PolicyError lists the rules a password failed.
type PolicyError struct {
	Failed []string
}

func (e *PolicyError) Error() string {
	return "password does not conform to policy: " + strings.Join(e.Failed, ", ")
}

// Check returns a *PolicyError when pw violates the policy.
func (p Policy) Check(pw string) error {
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || r == ' ':
			symbol = true
		}
	}

	var failed []string
	if len([]rune(pw)) < p.MinLength {
		failed = append(failed, "minimum length")
	}
	if p.RequireLowercase && !lower {
		failed = append(failed, "lowercase")
	}
	if p.RequireUppercase && !upper {
		failed = append(failed, "uppercase")
	}
	if p.RequireNumbers && !digit {
		failed = append(failed, "numbers")
	}
	if p.RequireSymbols && !symbol {
		failed = append(failed, "symbols")
	}
	if len(failed) > 0 {
		return &PolicyError{Failed: failed}
	}
	return nil
}
