package state

// SignUpState tracks account registration and confirmation.
type SignUpState interface {
	isSignUpState()
}

type SignUpNotStarted struct{}

type InitiatingSignUp struct {
	Username string
}

// AwaitingUserConfirmation waits for the code delivered to the user.
type AwaitingUserConfirmation struct {
	Username string
	Result   SignUpResult
}

type ConfirmingSignUp struct {
	Username string
}

type SignedUp struct {
	Username string
	Result   SignUpResult
}

type SignUpError struct {
	Err *AuthError
}

func (SignUpNotStarted) isSignUpState()         {}
func (InitiatingSignUp) isSignUpState()         {}
func (AwaitingUserConfirmation) isSignUpState() {}
func (ConfirmingSignUp) isSignUpState()         {}
func (SignedUp) isSignUpState()                 {}
func (SignUpError) isSignUpState()              {}

type SignUpEventData struct {
	Username       string
	Password       string
	Attributes     map[string]string
	ValidationData map[string]string
	ClientMetadata map[string]string
}

type ConfirmSignUpEventData struct {
	Username       string
	Code           string
	ClientMetadata map[string]string
}

type SignUpEvent struct {
	ID   string
	Type SignUpEventType
}

func NewSignUpEvent(t SignUpEventType) SignUpEvent {
	return SignUpEvent{ID: NewEventID(), Type: t}
}

func (e SignUpEvent) EventID() string   { return e.ID }
func (e SignUpEvent) EventName() string { return "SignUpEvent." + VariantName(e.Type) }

type SignUpEventType interface {
	isSignUpEventType()
}

type InitiateSignUp struct {
	Data SignUpEventData
}

type InitiateSignUpComplete struct {
	Username string
	Result   SignUpResult
}

type ConfirmSignUp struct {
	Data ConfirmSignUpEventData
}

type SignUpConfirmed struct {
	Username string
	Result   SignUpResult
}

type ThrowSignUpError struct {
	Err *AuthError
}

func (InitiateSignUp) isSignUpEventType()         {}
func (InitiateSignUpComplete) isSignUpEventType() {}
func (ConfirmSignUp) isSignUpEventType()          {}
func (SignUpConfirmed) isSignUpEventType()        {}
func (ThrowSignUpError) isSignUpEventType()       {}
