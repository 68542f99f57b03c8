package authmachine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authmachine/credstore"
	"github.com/MrEthical07/authmachine/providertest"
	"github.com/MrEthical07/authmachine/state"
)

func TestSignInSRPEstablishesSession(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	sub := dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	engine := newTestEngine(t, testConfig(dir, true), dir, store)
	ctx := testContext(t)

	res := signInAlice(t, ctx, engine)
	if res.User == nil || res.User.Username != "alice" || res.User.UserID != sub {
		t.Fatalf("unexpected user: %+v", res.User)
	}
	if res.User.Method != state.MethodSRP {
		t.Fatalf("expected srp method, got %s", res.User.Method)
	}

	session, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if !session.IsSignedIn || session.Username != "alice" {
		t.Fatalf("expected alice session, got %+v", session)
	}
	if session.Kind != state.CredentialsUserPoolAndIdentityPool {
		t.Fatalf("expected user pool and identity pool credentials, got %s", session.Kind)
	}
	if session.IdentityID == "" || session.AWS == nil || session.Tokens == nil {
		t.Fatalf("expected identity id, AWS credentials and tokens, got %+v", session)
	}

	stored, err := store.Retrieve(ctx)
	if err != nil {
		t.Fatalf("store Retrieve failed: %v", err)
	}
	if !stored.HasUserPool() || stored.IdentityID != session.IdentityID {
		t.Fatalf("stored record does not match session: %+v", stored)
	}
}

func TestSignInUserPasswordWithoutIdentityPool(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	res, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse", Flow: AuthFlowUserPassword})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if res.User.Method != state.MethodUserPassword {
		t.Fatalf("expected userPassword method, got %s", res.User.Method)
	}

	session, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if session.Kind != state.CredentialsUserPoolOnly || session.AWS != nil {
		t.Fatalf("expected user pool only session, got %+v", session)
	}
	if n := dir.CallCount(providertest.OpGetID); n != 0 {
		t.Fatalf("expected no identity pool calls, got %d", n)
	}
}

func TestSignInWrongPasswordThenRetry(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, true), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	_, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "wrong horse"})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := engine.GetCurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	signInAlice(t, ctx, engine)
}

func TestSignInValidationError(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	_, err := engine.SignIn(ctx, SignInInput{Password: "correct horse"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Field != "username" {
		t.Fatalf("expected username field error, got %v", err)
	}
	if n := len(dir.Calls()); n != 0 {
		t.Fatalf("expected no provider calls, got %d", n)
	}
}

func TestSignInWhileSignedInFails(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, true), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	signInAlice(t, ctx, engine)

	_, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse"})
	if !errors.Is(err, ErrAlreadySignedIn) {
		t.Fatalf("expected ErrAlreadySignedIn, got %v", err)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestConfirmSignInMFARetriesWrongCode(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse", providertest.WithMFA("123456"))
	engine := newTestEngine(t, testConfig(dir, true), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	res, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse", Flow: AuthFlowUserPassword})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if res.NextStep != SignInStepConfirmSignInWithSMSMFACode {
		t.Fatalf("expected SMS MFA step, got %s", res.NextStep)
	}

	_, err = engine.ConfirmSignIn(ctx, ConfirmSignInInput{Answer: "000000"})
	var ae *AuthError
	if !errors.As(err, &ae) || !ae.Recoverable || ae.Code != "CodeMismatchException" {
		t.Fatalf("expected recoverable code mismatch, got %v", err)
	}

	res, err = engine.ConfirmSignIn(ctx, ConfirmSignInInput{Answer: "123456"})
	if err != nil {
		t.Fatalf("ConfirmSignIn failed: %v", err)
	}
	if !res.IsSignedIn() || res.User.Username != "alice" {
		t.Fatalf("expected alice signed in, got %+v", res)
	}
}

func TestConfirmSignInWithoutChallenge(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	_, err := engine.ConfirmSignIn(ctx, ConfirmSignInInput{Answer: "123456"})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestCustomSignIn(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse", providertest.WithCustomChallenge("blue"))
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	res, err := engine.SignIn(ctx, SignInInput{Username: "alice", Flow: AuthFlowCustom})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if res.NextStep != SignInStepConfirmSignInWithCustomChallenge {
		t.Fatalf("expected custom challenge step, got %s", res.NextStep)
	}

	res, err = engine.ConfirmSignIn(ctx, ConfirmSignInInput{Answer: "blue"})
	if err != nil {
		t.Fatalf("ConfirmSignIn failed: %v", err)
	}
	if res.User.Method != state.MethodCustom {
		t.Fatalf("expected custom method, got %s", res.User.Method)
	}
}

func TestSignUpConfirmAndSignIn(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	res, err := engine.SignUp(ctx, SignUpInput{
		Username:   "bob",
		Password:   "long enough secret",
		Attributes: map[string]string{"email": "bob@example.com"},
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if res.NextStep != SignUpStepConfirmSignUp || res.CodeDelivery == nil {
		t.Fatalf("expected confirmation step with delivery, got %+v", res)
	}
	if res.CodeDelivery.Destination != "b***@example.com" {
		t.Fatalf("unexpected destination %q", res.CodeDelivery.Destination)
	}

	res, err = engine.ConfirmSignUp(ctx, ConfirmSignUpInput{Code: dir.ConfirmationCode("bob")})
	if err != nil {
		t.Fatalf("ConfirmSignUp failed: %v", err)
	}
	if res.NextStep != SignUpStepDone || res.Username != "bob" {
		t.Fatalf("expected DONE for bob, got %+v", res)
	}

	in, err := engine.SignIn(ctx, SignInInput{Username: "bob", Password: "long enough secret"})
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if in.User.Username != "bob" {
		t.Fatalf("expected bob, got %s", in.User.Username)
	}
}

func TestSignUpInvalidEmail(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	_, err := engine.SignUp(ctx, SignUpInput{
		Username:   "bob",
		Password:   "long enough secret",
		Attributes: map[string]string{"email": "not-an-email"},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if dir.HasUser("bob") {
		t.Fatalf("expected no user to be created")
	}
}

func TestConfirmSignUpFromEarlierProcess(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("carol", "long enough secret", providertest.Unconfirmed())
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	_, err := engine.ConfirmSignUp(ctx, ConfirmSignUpInput{Username: "carol", Code: "999999"})
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Code != "CodeMismatchException" {
		t.Fatalf("expected code mismatch, got %v", err)
	}

	res, err := engine.ConfirmSignUp(ctx, ConfirmSignUpInput{Username: "carol", Code: dir.ConfirmationCode("carol")})
	if err != nil {
		t.Fatalf("ConfirmSignUp failed: %v", err)
	}
	if res.NextStep != SignUpStepDone {
		t.Fatalf("expected DONE, got %s", res.NextStep)
	}
}

func TestResendSignUpCode(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	if _, err := engine.SignUp(ctx, SignUpInput{Username: "bob", Password: "long enough secret"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	first := dir.ConfirmationCode("bob")

	if _, err := engine.ResendSignUpCode(ctx, "bob", nil); err != nil {
		t.Fatalf("ResendSignUpCode failed: %v", err)
	}
	second := dir.ConfirmationCode("bob")
	if second == first {
		t.Fatalf("expected a new code")
	}

	if _, err := engine.ConfirmSignUp(ctx, ConfirmSignUpInput{Username: "bob", Code: second}); err != nil {
		t.Fatalf("ConfirmSignUp failed: %v", err)
	}

	if _, err := engine.ResendSignUpCode(ctx, "", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSignOutClearsStoredCredentials(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	engine := newTestEngine(t, testConfig(dir, true), dir, store)
	ctx := testContext(t)

	signInAlice(t, ctx, engine)

	res, err := engine.SignOut(ctx, SignOutOptions{})
	if err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if res.Username != "alice" || res.Partial() {
		t.Fatalf("expected complete sign-out of alice, got %+v", res)
	}
	if n := dir.CallCount(providertest.OpRevokeToken); n != 1 {
		t.Fatalf("expected 1 revoke, got %d", n)
	}
	if n := dir.CallCount(providertest.OpGlobalSignOut); n != 0 {
		t.Fatalf("expected no global sign-out, got %d", n)
	}
	if _, err := store.Retrieve(ctx); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := engine.GetCurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	res, err = engine.SignOut(ctx, SignOutOptions{})
	if err != nil || res.Username != "" {
		t.Fatalf("expected no-op sign-out, got %+v, %v", res, err)
	}
}

func TestGlobalSignOutFailureIsPartial(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	signInAlice(t, ctx, engine)
	dir.Fail(providertest.OpGlobalSignOut, state.NewServiceError("InternalErrorException", "try later", true, nil))

	res, err := engine.SignOut(ctx, SignOutOptions{GlobalSignOut: true})
	if err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if !res.Partial() || res.GlobalSignOutErr == nil || res.RevokeTokenErr == nil {
		t.Fatalf("expected partial sign-out, got %+v", res)
	}
	if n := dir.CallCount(providertest.OpRevokeToken); n != 0 {
		t.Fatalf("expected revoke to be skipped, got %d calls", n)
	}
	if _, err := engine.GetCurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestSignOutLocalFailureKeepsSession(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	engine := newTestEngine(t, testConfig(dir, false), dir, store)
	ctx := testContext(t)

	signInAlice(t, ctx, engine)
	store.Fail(credstore.OpDelete, errors.New("disk full"))

	if _, err := engine.SignOut(ctx, SignOutOptions{}); err == nil {
		t.Fatalf("expected sign-out error")
	}
	user, err := engine.GetCurrentUser(ctx)
	if err != nil {
		t.Fatalf("expected alice still signed in, got %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}
	if got := engine.MetricsSnapshot().Counters[MetricCredentialStoreFailure]; got != 1 {
		t.Fatalf("expected 1 store failure, got %d", got)
	}

	if _, err := engine.SignOut(ctx, SignOutOptions{}); err != nil {
		t.Fatalf("second SignOut failed: %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	engine := newTestEngine(t, testConfig(dir, true), dir, store)
	ctx := testContext(t)

	if err := engine.DeleteUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	signInAlice(t, ctx, engine)
	if err := engine.DeleteUser(ctx); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if dir.HasUser("alice") {
		t.Fatalf("expected alice to be deleted")
	}
	if _, err := store.Retrieve(ctx); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := engine.GetCurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestDeleteUserFailureKeepsUserSignedIn(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	signInAlice(t, ctx, engine)
	dir.Fail(providertest.OpDeleteUser, state.NewServiceError("InternalErrorException", "try later", true, nil))

	if err := engine.DeleteUser(ctx); !errors.Is(err, ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if _, err := engine.GetCurrentUser(ctx); err != nil {
		t.Fatalf("expected user still signed in, got %v", err)
	}

	if err := engine.DeleteUser(ctx); err != nil {
		t.Fatalf("retry DeleteUser failed: %v", err)
	}
	if dir.HasUser("alice") {
		t.Fatalf("expected alice to be deleted")
	}
}

func TestFetchAuthSessionGuest(t *testing.T) {
	dir := providertest.New(providertest.Options{AllowGuests: true})
	engine := newTestEngine(t, testConfig(dir, true), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	first, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if first.IsSignedIn || first.Kind != state.CredentialsIdentityPoolOnly || first.AWS == nil {
		t.Fatalf("expected guest session, got %+v", first)
	}

	second, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if second.IdentityID != first.IdentityID {
		t.Fatalf("expected stable identity id")
	}
	if n := dir.CallCount(providertest.OpGetID); n != 1 {
		t.Fatalf("expected 1 GetID call, got %d", n)
	}
}

func TestFetchAuthSessionWithoutPoolsReturnsEmpty(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	session, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if session.IsSignedIn || session.Kind != state.CredentialsNone {
		t.Fatalf("expected empty session, got %+v", session)
	}
}

func TestFetchAuthSessionRefreshesNearExpiry(t *testing.T) {
	clock := newTestClock()
	dir := providertest.New(providertest.Options{Now: clock.Now, TokenTTL: 10 * time.Minute})
	dir.AddUser("alice", "correct horse")
	cfg := testConfig(dir, true)
	cfg.Session.ExpiryBuffer = 2 * time.Minute
	engine := newTestEngine(t, cfg, dir, credstore.NewMemoryStore(), func(b *Builder) { b.WithClock(clock.Now) })
	ctx := testContext(t)

	signInAlice(t, ctx, engine)
	before, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if n := dir.CallCount(providertest.OpRefreshTokens); n != 0 {
		t.Fatalf("expected no refresh, got %d", n)
	}

	clock.Advance(9 * time.Minute)
	after, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if n := dir.CallCount(providertest.OpRefreshTokens); n != 1 {
		t.Fatalf("expected 1 refresh, got %d", n)
	}
	if !after.Tokens.ExpiresAt.After(before.Tokens.ExpiresAt) {
		t.Fatalf("expected later expiry after refresh")
	}
	if after.IdentityID != before.IdentityID {
		t.Fatalf("expected identity id to be kept")
	}

	if _, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{ForceRefresh: true}); err != nil {
		t.Fatalf("forced FetchAuthSession failed: %v", err)
	}
	if n := dir.CallCount(providertest.OpRefreshTokens); n != 2 {
		t.Fatalf("expected 2 refreshes, got %d", n)
	}
	if got := engine.MetricsSnapshot().Counters[MetricSessionRefreshSuccess]; got < 2 {
		t.Fatalf("expected refresh successes to be counted, got %d", got)
	}
}

func TestFetchAuthSessionConcurrentCallsShareFetch(t *testing.T) {
	dir := providertest.New(providertest.Options{AllowGuests: true, Delay: 20 * time.Millisecond})
	engine := newTestEngine(t, testConfig(dir, true), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
			ids[i], errs[i] = s.IdentityID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got identity %q, want %q", i, ids[i], ids[0])
		}
	}
	if n := dir.CallCount(providertest.OpGetID); n != 1 {
		t.Fatalf("expected 1 GetID call, got %d", n)
	}
}

func TestFederateAndClear(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	engine := newTestEngine(t, testConfig(dir, true), dir, store)
	ctx := testContext(t)
	token := state.FederatedToken{Token: "google-id-token", Provider: "accounts.google.com"}

	res, err := engine.FederateToIdentityPool(ctx, token, FederateOptions{})
	if err != nil {
		t.Fatalf("FederateToIdentityPool failed: %v", err)
	}
	if res.IdentityID == "" || res.AWS.AccessKeyID == "" {
		t.Fatalf("expected identity and credentials, got %+v", res)
	}
	if _, ok := engine.Current().(state.AuthConfigured).Authentication.(state.FederatedToIdentityPool); !ok {
		t.Fatalf("expected federated state, got %T", engine.Current().(state.AuthConfigured).Authentication)
	}

	session, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{})
	if err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if session.FederatedProvider != "accounts.google.com" || session.IsSignedIn {
		t.Fatalf("unexpected federated session: %+v", session)
	}

	if _, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse"}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState while federated, got %v", err)
	}
	if _, err := engine.SignOut(ctx, SignOutOptions{}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState from SignOut, got %v", err)
	}

	if err := engine.ClearFederationToIdentityPool(ctx); err != nil {
		t.Fatalf("ClearFederationToIdentityPool failed: %v", err)
	}
	if _, err := store.Retrieve(ctx); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	signInAlice(t, ctx, engine)
}

func TestFederateWithoutIdentityPool(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	_, err := engine.FederateToIdentityPool(ctx, state.FederatedToken{Token: "t", Provider: "accounts.google.com"}, FederateOptions{})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if err := engine.ClearFederationToIdentityPool(ctx); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestPersistedSessionIsRestored(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	store := credstore.NewMemoryStore()
	cfg := testConfig(dir, true)
	ctx := testContext(t)

	first := newTestEngine(t, cfg, dir, store)
	signInAlice(t, ctx, first)
	if _, err := first.FetchAuthSession(ctx, FetchAuthSessionOptions{}); err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	first.Close()
	calls := len(dir.Calls())

	second := newTestEngine(t, cfg, dir, store)
	user, err := second.GetCurrentUser(ctx)
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}
	if _, err := second.FetchAuthSession(ctx, FetchAuthSessionOptions{}); err != nil {
		t.Fatalf("FetchAuthSession failed: %v", err)
	}
	if n := len(dir.Calls()); n != calls {
		t.Fatalf("expected restore without provider calls, got %d new", n-calls)
	}
}

func TestCorruptStoredRecordStartsSignedOut(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	store := credstore.NewMemoryStore()
	store.Fail(credstore.OpRetrieve, credstore.ErrCorrupt)
	engine := newTestEngine(t, testConfig(dir, false), dir, store)
	ctx := testContext(t)

	if _, err := engine.GetCurrentUser(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestOperationsAfterCloseFail(t *testing.T) {
	dir := providertest.New(providertest.Options{})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())
	ctx := testContext(t)

	engine.Close()
	engine.Close()

	if _, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse"}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.FetchAuthSession(ctx, FetchAuthSessionOptions{}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestSignInHonoursContextDeadline(t *testing.T) {
	dir := providertest.New(providertest.Options{Delay: time.Second})
	dir.AddUser("alice", "correct horse")
	engine := newTestEngine(t, testConfig(dir, false), dir, credstore.NewMemoryStore())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := engine.SignIn(ctx, SignInInput{Username: "alice", Password: "correct horse"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClientMetadataMerge(t *testing.T) {
	ctx := WithClientMetadata(context.Background(), map[string]string{"app": "web", "locale": "en"})
	ctx = WithClientMetadata(ctx, map[string]string{"tenant": "acme"})

	got := clientMetadata(ctx, map[string]string{"locale": "de"})
	want := map[string]string{"app": "web", "locale": "de", "tenant": "acme"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("key %q: expected %q, got %q", k, v, got[k])
		}
	}
	if clientMetadata(context.Background(), nil) != nil {
		t.Fatalf("expected nil metadata without inputs")
	}
}
