package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/MrEthical07/authmachine/state"
)

// Provider error codes with special handling.
const (
	codeNotAuthorized        = "NotAuthorizedException"
	codeUserNotFound         = "UserNotFoundException"
	codeCodeMismatch         = "CodeMismatchException"
	codeExpiredCode          = "ExpiredCodeException"
	codeTooManyRequests      = "TooManyRequestsException"
	codeLimitExceeded        = "LimitExceededException"
	codeTooManyFailed        = "TooManyFailedAttemptsException"
	codeInvalidPassword      = "InvalidPasswordException"
	codeResourceNotFound     = "ResourceNotFoundException"
	codeInvalidUserPool      = "InvalidUserPoolConfigurationException"
	codeInvalidIdentityToken = "InvalidIdentityTokenException"
	codeInternalError        = "InternalErrorException"
)

// mapError classifies an SDK error. op names the provider call and is kept in
// the message.
func mapError(op string, err error) *state.AuthError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &state.AuthError{Kind: state.KindUnknown, Message: op + " interrupted", Err: err}
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return state.NewServiceError("", op+" request failed", true, err)
	}

	code := apiErr.ErrorCode()
	msg := fmt.Sprintf("%s: %s", op, apiErr.ErrorMessage())
	switch code {
	case codeNotAuthorized, codeUserNotFound, codeInvalidIdentityToken:
		return state.NewNotAuthorizedError(code, msg, err)
	case codeCodeMismatch, codeExpiredCode, codeTooManyRequests, codeLimitExceeded, codeTooManyFailed, codeInvalidPassword:
		return state.NewServiceError(code, msg, true, err)
	case codeResourceNotFound, codeInvalidUserPool:
		ae := state.NewConfigurationError(msg)
		ae.Code = code
		ae.Err = err
		return ae
	case codeInternalError:
		return state.NewServiceError(code, msg, true, err)
	default:
		return state.NewServiceError(code, msg, apiErr.ErrorFault() == smithy.FaultServer, err)
	}
}

// mapRefreshError treats a rejected refresh token as an ended session.
func mapRefreshError(err error) *state.AuthError {
	ae := mapError("RefreshTokens", err)
	if ae != nil && ae.Kind == state.KindNotAuthorized {
		expired := state.NewSessionExpiredError("refresh token rejected", err)
		expired.Code = ae.Code
		return expired
	}
	return ae
}
