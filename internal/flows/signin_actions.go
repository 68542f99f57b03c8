package flows

import (
	"context"
	"log/slog"
	"maps"

	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

func initiateSRPAction(data state.SignInEventData) Action {
	return action("InitiateSRPAuth", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.InitiateSRPAuth(ctx, provider.InitiateAuthInput{
			Username:       data.Username,
			Password:       data.Password,
			ClientMetadata: maps.Clone(data.ClientMetadata),
		})
		if err != nil {
			warn(env, "InitiateSRPAuth", data.Username, err)
			emit(ctx, d, env, state.NewSRPSignInEvent(state.ThrowPasswordVerifierError{Err: authError(err)}))
			return
		}

		if res.Challenge != nil && res.Challenge.Name == state.ChallengePasswordVerifier {
			if res.Handshake == nil {
				emit(ctx, d, env, state.NewSRPSignInEvent(state.ThrowPasswordVerifierError{
					Err: state.NewServiceError("InvalidHandshake", "provider returned a password verifier challenge without a handshake", false, nil),
				}))
				return
			}
			emit(ctx, d, env, state.NewSRPSignInEvent(state.RespondPasswordVerifier{
				Data: state.SRPStateData{
					Username:       data.Username,
					Password:       data.Password,
					ClientMetadata: maps.Clone(data.ClientMetadata),
				},
				Challenge: *res.Challenge,
				Handshake: *res.Handshake,
			}))
			return
		}
		finishSignIn(ctx, d, env, res, state.MethodSRP, data.Username)
	})
}

func respondPasswordVerifierAction(in state.RespondPasswordVerifier) Action {
	return action("RespondToPasswordVerifier", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.RespondToPasswordVerifier(ctx, provider.PasswordVerifierInput{
			Username:       in.Data.Username,
			Password:       in.Data.Password,
			Challenge:      in.Challenge,
			Handshake:      in.Handshake,
			ClientMetadata: maps.Clone(in.Data.ClientMetadata),
		})
		if err != nil {
			warn(env, "RespondToPasswordVerifier", in.Data.Username, err)
			emit(ctx, d, env, state.NewSRPSignInEvent(state.ThrowPasswordVerifierError{Err: authError(err)}))
			return
		}
		finishSignIn(ctx, d, env, res, state.MethodSRP, in.Data.Username)
	})
}

func initiateMigrateAction(data state.SignInEventData) Action {
	return action("InitiateUserPasswordAuth", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.InitiateUserPasswordAuth(ctx, provider.InitiateAuthInput{
			Username:       data.Username,
			Password:       data.Password,
			ClientMetadata: maps.Clone(data.ClientMetadata),
		})
		if err != nil {
			warn(env, "InitiateUserPasswordAuth", data.Username, err)
			emit(ctx, d, env, state.NewSignInEvent(state.ThrowAuthError{Err: authError(err)}))
			return
		}
		finishSignIn(ctx, d, env, res, state.MethodUserPassword, data.Username)
	})
}

func initiateCustomAction(data state.SignInEventData) Action {
	return action("InitiateCustomAuth", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.InitiateCustomAuth(ctx, provider.InitiateAuthInput{
			Username:       data.Username,
			Password:       data.Password,
			ClientMetadata: maps.Clone(data.ClientMetadata),
		})
		if err != nil {
			warn(env, "InitiateCustomAuth", data.Username, err)
			emit(ctx, d, env, state.NewSignInEvent(state.ThrowAuthError{Err: authError(err)}))
			return
		}
		finishSignIn(ctx, d, env, res, state.MethodCustom, data.Username)
	})
}

func verifyChallengeAction(challenge state.AuthChallenge, answer state.VerifyChallengeAnswer) Action {
	return action("RespondToAuthChallenge", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		res, err := env.UserPool.RespondToAuthChallenge(ctx, provider.ChallengeResponseInput{
			Challenge:      challenge,
			Answer:         answer.Answer,
			Attributes:     maps.Clone(answer.Attributes),
			ClientMetadata: maps.Clone(answer.ClientMetadata),
		})
		if err != nil {
			warn(env, "RespondToAuthChallenge", challenge.Username, err)
			emit(ctx, d, env, state.NewChallengeEvent(state.ThrowChallengeError{Err: authError(err)}))
			return
		}
		method := challenge.Method
		if method == state.MethodUnknown {
			method = state.MethodSRP
		}
		finishSignIn(ctx, d, env, res, method, challenge.Username)
	})
}

// finishSignIn turns a sign-in round trip into FinalizeSignIn or
// ReceivedChallenge.
func finishSignIn(ctx context.Context, d statemachine.Dispatcher, env *Environment, res provider.AuthResult, method state.SignInMethod, username string) {
	switch {
	case res.Tokens != nil:
		data, aerr := signedInData(*res.Tokens, method, username, env.now())
		if aerr != nil {
			emit(ctx, d, env, state.NewSignInEvent(state.ThrowAuthError{Err: aerr}))
			return
		}
		emit(ctx, d, env, state.NewSignInEvent(state.FinalizeSignIn{Data: data}))
	case res.Challenge != nil:
		challenge := *res.Challenge
		if challenge.Method == state.MethodUnknown {
			challenge.Method = method
		}
		if challenge.Username == "" {
			challenge.Username = username
		}
		emit(ctx, d, env, state.NewSignInEvent(state.ReceivedChallenge{Challenge: challenge}))
	default:
		emit(ctx, d, env, state.NewSignInEvent(state.ThrowAuthError{
			Err: state.NewServiceError("EmptyAuthResult", "provider returned neither tokens nor a challenge", false, nil),
		}))
	}
}

func warn(env *Environment, op, username string, err error) {
	env.logger().Warn("provider call failed",
		slog.String("action", op),
		slog.String("username", username),
		slog.String("error", err.Error()),
	)
}
