package state

// DeleteUserState removes the account remotely and then signs out locally.
type DeleteUserState interface {
	isDeleteUserState()
}

type DeleteUserNotStarted struct{}

type DeletingUserRemotely struct{}

type DeleteUserSigningOut struct {
	State SignOutState
}

type UserDeleted struct{}

type DeleteUserError struct {
	Err *AuthError
}

func (DeleteUserNotStarted) isDeleteUserState() {}
func (DeletingUserRemotely) isDeleteUserState() {}
func (DeleteUserSigningOut) isDeleteUserState() {}
func (UserDeleted) isDeleteUserState()          {}
func (DeleteUserError) isDeleteUserState()      {}

type DeleteUserEvent struct {
	ID   string
	Type DeleteUserEventType
}

func NewDeleteUserEvent(t DeleteUserEventType) DeleteUserEvent {
	return DeleteUserEvent{ID: NewEventID(), Type: t}
}

func (e DeleteUserEvent) EventID() string   { return e.ID }
func (e DeleteUserEvent) EventName() string { return "DeleteUserEvent." + VariantName(e.Type) }

type DeleteUserEventType interface {
	isDeleteUserEventType()
}

type DeleteUser struct{}

type SignOutDeletedUser struct{}

type ThrowDeleteUserError struct {
	Err *AuthError
}

func (DeleteUser) isDeleteUserEventType()           {}
func (SignOutDeletedUser) isDeleteUserEventType()   {}
func (ThrowDeleteUserError) isDeleteUserEventType() {}
