package flows

import (
	"context"

	"github.com/MrEthical07/authmachine/state"
	"github.com/MrEthical07/authmachine/statemachine"
)

// DeleteUserResolver deletes the signed-in user remotely and then signs out
// locally. The session being deleted is passed in by the parent.
type DeleteUserResolver struct {
	SignOut SignOutResolver
}

func (r DeleteUserResolver) Resolve(data state.SignedInData, old state.DeleteUserState, event statemachine.Event) resolution[state.DeleteUserState] {
	switch s := old.(type) {
	case state.DeleteUserNotStarted, state.DeleteUserError:
		if e, ok := event.(state.DeleteUserEvent); ok {
			if _, ok := e.Type.(state.DeleteUser); ok {
				return next[state.DeleteUserState](state.DeletingUserRemotely{}, deleteUserAction(data))
			}
		}

	case state.DeletingUserRemotely:
		if e, ok := event.(state.DeleteUserEvent); ok {
			switch t := e.Type.(type) {
			case state.SignOutDeletedUser:
				sub := r.SignOut.Resolve(state.SignOutNotStarted{}, state.SignOutEvent{
					ID:   followUp(event, "SignOutLocally"),
					Type: state.SignOutLocally{Username: data.Username},
				})
				return next[state.DeleteUserState](state.DeleteUserSigningOut{State: sub.NewState}, sub.Actions...)
			case state.ThrowDeleteUserError:
				return next[state.DeleteUserState](state.DeleteUserError{Err: t.Err})
			}
		}

	case state.DeleteUserSigningOut:
		sub := r.SignOut.Resolve(s.State, event)
		switch n := sub.NewState.(type) {
		case state.SignOutSignedOut:
			return next[state.DeleteUserState](state.UserDeleted{}, sub.Actions...)
		case state.SignOutError:
			return next[state.DeleteUserState](state.DeleteUserError{Err: n.Err}, sub.Actions...)
		}
		return next[state.DeleteUserState](state.DeleteUserSigningOut{State: sub.NewState}, sub.Actions...)
	}

	// UserDeleted is terminal.
	return unchanged(old)
}

func deleteUserAction(data state.SignedInData) Action {
	return action("DeleteUser", func(ctx context.Context, d statemachine.Dispatcher, env *Environment) {
		if err := env.UserPool.DeleteUser(ctx, data.Tokens.AccessToken); err != nil {
			warn(env, "DeleteUser", data.Username, err)
			emit(ctx, d, env, state.NewDeleteUserEvent(state.ThrowDeleteUserError{Err: authError(err)}))
			return
		}
		emit(ctx, d, env, state.NewDeleteUserEvent(state.SignOutDeletedUser{}))
	})
}
