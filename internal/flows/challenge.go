package flows

import (
	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// ChallengeResolver answers provider challenges. A failed answer keeps the
// challenge so that the caller can try again.
type ChallengeResolver struct{}

func (ChallengeResolver) Resolve(old state.SignInChallengeState, event statemachine.Event) resolution[state.SignInChallengeState] {
	if e, ok := event.(state.ChallengeEvent); ok {
		if t, ok := e.Type.(state.ThrowChallengeError); ok {
			if challenge, live := pendingChallenge(old); live {
				return next[state.SignInChallengeState](state.ChallengeError{Challenge: challenge, Err: t.Err})
			}
		}
	}

	switch s := old.(type) {
	case state.ChallengeWaitingForAnswer:
		return verify(old, s.Challenge, event)

	case state.ChallengeError:
		return verify(old, s.Challenge, event)

	case state.ChallengeVerifying:
		if e, ok := event.(state.SignInEvent); ok {
			switch t := e.Type.(type) {
			case state.FinalizeSignIn:
				return next[state.SignInChallengeState](state.ChallengeVerified{Data: t.Data})
			case state.ReceivedChallenge:
				return next[state.SignInChallengeState](state.ChallengeWaitingForAnswer{Challenge: t.Challenge})
			}
		}
	}
	return unchanged(old)
}

func verify(old state.SignInChallengeState, challenge state.AuthChallenge, event statemachine.Event) resolution[state.SignInChallengeState] {
	e, ok := event.(state.ChallengeEvent)
	if !ok {
		return unchanged(old)
	}
	t, ok := e.Type.(state.VerifyChallengeAnswer)
	if !ok {
		return unchanged(old)
	}
	if err := validateChallengeAnswer(t.Answer); err != nil {
		err.Recoverable = true
		return next[state.SignInChallengeState](state.ChallengeError{Challenge: challenge, Err: err})
	}
	return next[state.SignInChallengeState](state.ChallengeVerifying{Challenge: challenge}, verifyChallengeAction(challenge, t))
}

// pendingChallenge returns the challenge of every state that has not been
// verified yet.
func pendingChallenge(s state.SignInChallengeState) (state.AuthChallenge, bool) {
	switch s := s.(type) {
	case state.ChallengeWaitingForAnswer:
		return s.Challenge, true
	case state.ChallengeVerifying:
		return s.Challenge, true
	case state.ChallengeError:
		return s.Challenge, true
	}
	return state.AuthChallenge{}, false
}
