package flows

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/MrEthical07/authmachine/state"
)

type signInInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signUpInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type confirmSignUpInput struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type challengeInput struct {
	Answer string `json:"answer"`
}

func validateSignIn(d state.SignInEventData, requirePassword bool) *state.AuthError {
	in := signInInput{Username: d.Username, Password: d.Password}
	fields := []*validation.FieldRules{validation.Field(&in.Username, validation.Required)}
	if requirePassword {
		fields = append(fields, validation.Field(&in.Password, validation.Required))
	}
	return validationError(validation.ValidateStruct(&in, fields...), "username", "password")
}

func validateSignUp(d state.SignUpEventData) *state.AuthError {
	in := signUpInput{Username: d.Username, Password: d.Password, Email: d.Attributes["email"]}
	return validationError(validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Password, validation.Required),
		validation.Field(&in.Email, is.Email),
	), "username", "password", "email")
}

func validateConfirmSignUp(d state.ConfirmSignUpEventData) *state.AuthError {
	in := confirmSignUpInput{Username: d.Username, Code: d.Code}
	return validationError(validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Code, validation.Required),
	), "username", "code")
}

func validateChallengeAnswer(answer string) *state.AuthError {
	in := challengeInput{Answer: answer}
	return validationError(validation.ValidateStruct(&in,
		validation.Field(&in.Answer, validation.Required),
	), "answer")
}

// validationError maps the first failing field in order to a validation
// AuthError.
func validationError(err error, order ...string) *state.AuthError {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &state.AuthError{Kind: state.KindValidation, Message: err.Error(), Err: err}
	}
	for _, name := range order {
		if fe, ok := fields[name]; ok {
			return state.NewValidationError(name, fe.Error())
		}
	}
	for name, fe := range fields {
		return state.NewValidationError(name, fe.Error())
	}
	return nil
}
