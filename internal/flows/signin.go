package flows

import (
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// SignInResolver runs one sign-in attempt. Method sub-machine results are
// normalized: a method that signs in becomes SignInSignedIn, a method that
// fails becomes SignInError, and a method that receives a challenge hands
// over to the challenge sub-machine.
type SignInResolver struct {
	SRP       SRPResolver
	Migrate   MigrateResolver
	Custom    CustomResolver
	Challenge ChallengeResolver
}

func (r SignInResolver) Resolve(old state.SignInState, event statemachine.Event) resolution[state.SignInState] {
	switch s := old.(type) {
	case state.SignInNotStarted:
		return r.start(s, event)

	case state.SigningInWithSRP:
		if res, ok := r.handOff(event); ok {
			return res
		}
		sub := r.SRP.Resolve(s.SRP, event)
		switch n := sub.NewState.(type) {
		case state.SRPSignedIn:
			return next[state.SignInState](state.SignInSignedIn{Data: n.Data}, sub.Actions...)
		case state.SRPError:
			return next[state.SignInState](state.SignInError{Err: n.Err}, sub.Actions...)
		}
		return next[state.SignInState](state.SigningInWithSRP{SRP: sub.NewState}, sub.Actions...)

	case state.SigningInWithMigration:
		if res, ok := r.handOff(event); ok {
			return res
		}
		sub := r.Migrate.Resolve(s.Migration, event)
		switch n := sub.NewState.(type) {
		case state.MigrateSignedIn:
			return next[state.SignInState](state.SignInSignedIn{Data: n.Data}, sub.Actions...)
		case state.MigrateError:
			return next[state.SignInState](state.SignInError{Err: n.Err}, sub.Actions...)
		}
		return next[state.SignInState](state.SigningInWithMigration{Migration: sub.NewState}, sub.Actions...)

	case state.SigningInWithCustom:
		if res, ok := r.handOff(event); ok {
			return res
		}
		sub := r.Custom.Resolve(s.Custom, event)
		switch n := sub.NewState.(type) {
		case state.CustomSignedIn:
			return next[state.SignInState](state.SignInSignedIn{Data: n.Data}, sub.Actions...)
		case state.CustomError:
			return next[state.SignInState](state.SignInError{Err: n.Err}, sub.Actions...)
		}
		return next[state.SignInState](state.SigningInWithCustom{Custom: sub.NewState}, sub.Actions...)

	case state.ResolvingChallenge:
		if e, ok := event.(state.SignInEvent); ok {
			if t, ok := e.Type.(state.ThrowAuthError); ok {
				return next[state.SignInState](state.SignInError{Err: t.Err})
			}
		}
		sub := r.Challenge.Resolve(s.Challenge, event)
		switch n := sub.NewState.(type) {
		case state.ChallengeVerified:
			return next[state.SignInState](state.SignInSignedIn{Data: n.Data}, sub.Actions...)
		case state.ChallengeError:
			if n.Err != nil && !n.Err.Recoverable {
				return next[state.SignInState](state.SignInError{Err: n.Err}, sub.Actions...)
			}
		}
		return next[state.SignInState](state.ResolvingChallenge{Challenge: sub.NewState}, sub.Actions...)
	}

	// SignInSignedIn and SignInError are terminal.
	return unchanged(old)
}

func (r SignInResolver) start(old state.SignInNotStarted, event statemachine.Event) resolution[state.SignInState] {
	e, ok := event.(state.SignInEvent)
	if !ok {
		return unchanged[state.SignInState](old)
	}
	switch t := e.Type.(type) {
	case state.InitiateSignInWithSRP:
		if err := validateSignIn(t.Data, true); err != nil {
			return next[state.SignInState](state.SignInError{Err: err})
		}
		sub := r.SRP.Resolve(state.SRPNotStarted{}, event)
		return next[state.SignInState](state.SigningInWithSRP{SRP: sub.NewState}, sub.Actions...)
	case state.InitiateMigrateAuth:
		if err := validateSignIn(t.Data, true); err != nil {
			return next[state.SignInState](state.SignInError{Err: err})
		}
		sub := r.Migrate.Resolve(state.MigrateNotStarted{}, event)
		return next[state.SignInState](state.SigningInWithMigration{Migration: sub.NewState}, sub.Actions...)
	case state.InitiateCustomSignIn:
		if err := validateSignIn(t.Data, false); err != nil {
			return next[state.SignInState](state.SignInError{Err: err})
		}
		sub := r.Custom.Resolve(state.CustomNotStarted{}, event)
		return next[state.SignInState](state.SigningInWithCustom{Custom: sub.NewState}, sub.Actions...)
	}
	return unchanged[state.SignInState](old)
}

// handOff moves an in-progress method to the challenge sub-machine or to the
// error variant. It applies to every method state.
func (r SignInResolver) handOff(event statemachine.Event) (resolution[state.SignInState], bool) {
	e, ok := event.(state.SignInEvent)
	if !ok {
		return resolution[state.SignInState]{}, false
	}
	switch t := e.Type.(type) {
	case state.ReceivedChallenge:
		return next[state.SignInState](state.ResolvingChallenge{
			Challenge: state.ChallengeWaitingForAnswer{Challenge: t.Challenge},
		}), true
	case state.ThrowAuthError:
		return next[state.SignInState](state.SignInError{Err: t.Err}), true
	}
	return resolution[state.SignInState]{}, false
}

// SRPResolver runs the two round trips of an SRP sign-in.
type SRPResolver struct{}

func (SRPResolver) Resolve(old state.SRPSignInState, event statemachine.Event) resolution[state.SRPSignInState] {
	switch s := old.(type) {
	case state.SRPNotStarted:
		if e, ok := event.(state.SignInEvent); ok {
			if t, ok := e.Type.(state.InitiateSignInWithSRP); ok {
				return next[state.SRPSignInState](state.SRPInitiating{Username: t.Data.Username}, initiateSRPAction(t.Data))
			}
		}

	case state.SRPInitiating:
		switch e := event.(type) {
		case state.SRPSignInEvent:
			switch t := e.Type.(type) {
			case state.RespondPasswordVerifier:
				return next[state.SRPSignInState](state.SRPRespondingPasswordVerifier{Username: s.Username}, respondPasswordVerifierAction(t))
			case state.ThrowPasswordVerifierError:
				return next[state.SRPSignInState](state.SRPError{Err: t.Err})
			}
		case state.SignInEvent:
			if t, ok := e.Type.(state.FinalizeSignIn); ok {
				return next[state.SRPSignInState](state.SRPSignedIn{Data: t.Data})
			}
		}

	case state.SRPRespondingPasswordVerifier:
		switch e := event.(type) {
		case state.SRPSignInEvent:
			if t, ok := e.Type.(state.ThrowPasswordVerifierError); ok {
				return next[state.SRPSignInState](state.SRPError{Err: t.Err})
			}
		case state.SignInEvent:
			if t, ok := e.Type.(state.FinalizeSignIn); ok {
				return next[state.SRPSignInState](state.SRPSignedIn{Data: t.Data})
			}
		}
	}
	return unchanged(old)
}

// MigrateResolver signs in with a plain username and password so that the
// provider can migrate the user from a legacy directory.
type MigrateResolver struct{}

func (MigrateResolver) Resolve(old state.MigrateSignInState, event statemachine.Event) resolution[state.MigrateSignInState] {
	e, ok := event.(state.SignInEvent)
	if !ok {
		return unchanged(old)
	}
	switch old.(type) {
	case state.MigrateNotStarted:
		if t, ok := e.Type.(state.InitiateMigrateAuth); ok {
			return next[state.MigrateSignInState](state.MigrateSigningIn{Username: t.Data.Username}, initiateMigrateAction(t.Data))
		}
	case state.MigrateSigningIn:
		if t, ok := e.Type.(state.FinalizeSignIn); ok {
			return next[state.MigrateSignInState](state.MigrateSignedIn{Data: t.Data})
		}
	}
	return unchanged(old)
}

// CustomResolver starts a sign-in driven by custom challenges.
type CustomResolver struct{}

func (CustomResolver) Resolve(old state.CustomSignInState, event statemachine.Event) resolution[state.CustomSignInState] {
	e, ok := event.(state.SignInEvent)
	if !ok {
		return unchanged(old)
	}
	switch old.(type) {
	case state.CustomNotStarted:
		if t, ok := e.Type.(state.InitiateCustomSignIn); ok {
			return next[state.CustomSignInState](state.CustomInitiating{Username: t.Data.Username}, initiateCustomAction(t.Data))
		}
	case state.CustomInitiating:
		if t, ok := e.Type.(state.FinalizeSignIn); ok {
			return next[state.CustomSignInState](state.CustomSignedIn{Data: t.Data})
		}
	}
	return unchanged(old)
}
