package providertest

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MrEthical07/authmachine/jwt"
	"github.com/MrEthical07/authmachine/password"
	"github.com/MrEthical07/authmachine/provider"
	"github.com/MrEthical07/authmachine/state"
)

func (d *Directory) InitiateSRPAuth(ctx context.Context, in provider.InitiateAuthInput) (provider.AuthResult, error) {
	if err := d.begin(ctx, OpInitiateSRPAuth); err != nil {
		return provider.AuthResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[in.Username]; !ok {
		return provider.AuthResult{}, incorrectCredentials()
	}
	session := d.newSessionLocked(pending{username: in.Username, challenge: state.ChallengePasswordVerifier, method: state.MethodSRP})
	return provider.AuthResult{
		Challenge: &state.AuthChallenge{
			Name:     state.ChallengePasswordVerifier,
			Username: in.Username,
			Session:  session,
			Parameters: map[string]string{
				"USERNAME":        in.Username,
				"USER_ID_FOR_SRP": in.Username,
			},
			Method: state.MethodSRP,
		},
		Handshake: &state.SRPHandshake{PrivateA: "local", PublicA: "local"},
	}, nil
}

func (d *Directory) RespondToPasswordVerifier(ctx context.Context, in provider.PasswordVerifierInput) (provider.AuthResult, error) {
	if err := d.begin(ctx, OpRespondToPasswordVerifier); err != nil {
		return provider.AuthResult{}, err
	}

	d.mu.Lock()
	p, ok := d.sessions[in.Challenge.Session]
	delete(d.sessions, in.Challenge.Session)
	d.mu.Unlock()
	if !ok || p.challenge != state.ChallengePasswordVerifier || p.username != in.Username {
		return provider.AuthResult{}, state.NewNotAuthorizedError("NotAuthorizedException", "Invalid session for the user.", nil)
	}
	return d.passwordStep(in.Username, in.Password, state.MethodSRP)
}

func (d *Directory) InitiateUserPasswordAuth(ctx context.Context, in provider.InitiateAuthInput) (provider.AuthResult, error) {
	if err := d.begin(ctx, OpInitiateUserPasswordAuth); err != nil {
		return provider.AuthResult{}, err
	}
	return d.passwordStep(in.Username, in.Password, state.MethodUserPassword)
}

func (d *Directory) InitiateCustomAuth(ctx context.Context, in provider.InitiateAuthInput) (provider.AuthResult, error) {
	if err := d.begin(ctx, OpInitiateCustomAuth); err != nil {
		return provider.AuthResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[in.Username]
	if !ok || u.customAnswer == "" {
		return provider.AuthResult{}, incorrectCredentials()
	}
	return d.challengeLocked(u, state.ChallengeCustom, state.MethodCustom), nil
}

func (d *Directory) RespondToAuthChallenge(ctx context.Context, in provider.ChallengeResponseInput) (provider.AuthResult, error) {
	if err := d.begin(ctx, OpRespondToAuthChallenge); err != nil {
		return provider.AuthResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.sessions[in.Challenge.Session]
	if !ok || p.challenge != in.Challenge.Name {
		return provider.AuthResult{}, state.NewNotAuthorizedError("NotAuthorizedException", "Invalid session for the user.", nil)
	}
	u, ok := d.users[p.username]
	if !ok {
		return provider.AuthResult{}, incorrectCredentials()
	}

	switch p.challenge {
	case state.ChallengeSMSMFA:
		if in.Answer != u.mfaCode {
			return provider.AuthResult{}, state.NewServiceError("CodeMismatchException", "Invalid code received for user", true, nil)
		}
	case state.ChallengeCustom:
		if in.Answer != u.customAnswer {
			delete(d.sessions, in.Challenge.Session)
			return provider.AuthResult{}, state.NewNotAuthorizedError("NotAuthorizedException", "Incorrect answer.", nil)
		}
	case state.ChallengeNewPassword:
		if err := d.opts.Policy.Check(in.Answer); err != nil {
			return provider.AuthResult{}, invalidPassword(err)
		}
		verifier, err := d.hasher.Hash(in.Answer)
		if err != nil {
			return provider.AuthResult{}, invalidPassword(err)
		}
		u.verifier = verifier
		u.newPassword = false
		if u.mfaCode != "" {
			delete(d.sessions, in.Challenge.Session)
			return d.challengeLocked(u, state.ChallengeSMSMFA, p.method), nil
		}
	default:
		return provider.AuthResult{}, state.NewServiceError("InvalidParameterException", "unsupported challenge "+string(p.challenge), false, nil)
	}

	delete(d.sessions, in.Challenge.Session)
	return d.issueLocked(u)
}

func (d *Directory) RefreshTokens(ctx context.Context, in provider.RefreshTokensInput) (state.UserPoolTokens, error) {
	if err := d.begin(ctx, OpRefreshTokens); err != nil {
		return state.UserPoolTokens{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	username, ok := d.refresh[in.RefreshToken]
	u, exists := d.users[username]
	if !ok || !exists {
		return state.UserPoolTokens{}, state.NewSessionExpiredError("Refresh Token has been revoked", nil)
	}
	res, err := d.issueLocked(u)
	if err != nil {
		return state.UserPoolTokens{}, err
	}
	delete(d.refresh, res.Tokens.RefreshToken)
	tokens := *res.Tokens
	tokens.RefreshToken = ""
	return tokens, nil
}

func (d *Directory) SignUp(ctx context.Context, in provider.SignUpInput) (state.SignUpResult, error) {
	if err := d.begin(ctx, OpSignUp); err != nil {
		return state.SignUpResult{}, err
	}
	if err := d.opts.Policy.Check(in.Password); err != nil {
		return state.SignUpResult{}, invalidPassword(err)
	}
	verifier, err := d.hasher.Hash(in.Password)
	if err != nil {
		return state.SignUpResult{}, invalidPassword(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.users[in.Username]; exists {
		return state.SignUpResult{}, state.NewServiceError("UsernameExistsException", "User already exists", false, nil)
	}
	u := &user{
		sub:       uuid.NewString(),
		username:  in.Username,
		email:     in.Attributes["email"],
		verifier:  verifier,
		confirmed: d.opts.AutoConfirm,
	}
	res := state.SignUpResult{UserID: u.sub, Confirmed: u.confirmed}
	if !u.confirmed {
		u.code = d.nextCodeLocked()
		res.CodeDelivery = d.deliveryLocked(u)
	}
	d.users[in.Username] = u
	return res, nil
}

func (d *Directory) ConfirmSignUp(ctx context.Context, in provider.ConfirmSignUpInput) (state.SignUpResult, error) {
	if err := d.begin(ctx, OpConfirmSignUp); err != nil {
		return state.SignUpResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[in.Username]
	if !ok {
		return state.SignUpResult{}, state.NewServiceError("UserNotFoundException", "Username/client id combination not found.", false, nil)
	}
	if u.confirmed {
		return state.SignUpResult{}, state.NewNotAuthorizedError("NotAuthorizedException", "User cannot be confirmed. Current status is CONFIRMED", nil)
	}
	if in.Code != u.code {
		return state.SignUpResult{}, state.NewServiceError("CodeMismatchException", "Invalid verification code provided, please try again.", true, nil)
	}
	u.confirmed = true
	u.code = ""
	return state.SignUpResult{UserID: u.sub, Confirmed: true}, nil
}

func (d *Directory) ResendSignUpCode(ctx context.Context, in provider.ResendSignUpCodeInput) (state.CodeDeliveryDetails, error) {
	if err := d.begin(ctx, OpResendSignUpCode); err != nil {
		return state.CodeDeliveryDetails{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[in.Username]
	if !ok {
		return state.CodeDeliveryDetails{}, state.NewServiceError("UserNotFoundException", "Username/client id combination not found.", false, nil)
	}
	if u.confirmed {
		return state.CodeDeliveryDetails{}, state.NewServiceError("InvalidParameterException", "User is already confirmed.", false, nil)
	}
	u.code = d.nextCodeLocked()
	return *d.deliveryLocked(u), nil
}

func (d *Directory) GlobalSignOut(ctx context.Context, accessToken string) error {
	if err := d.begin(ctx, OpGlobalSignOut); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	username, err := d.authorizeLocked(accessToken)
	if err != nil {
		return err
	}
	for tok, owner := range d.refresh {
		if owner == username {
			delete(d.refresh, tok)
		}
	}
	for tok, owner := range d.access {
		if owner == username {
			delete(d.access, tok)
		}
	}
	return nil
}

func (d *Directory) RevokeToken(ctx context.Context, refreshToken string) error {
	if err := d.begin(ctx, OpRevokeToken); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.refresh, refreshToken)
	return nil
}

func (d *Directory) DeleteUser(ctx context.Context, accessToken string) error {
	if err := d.begin(ctx, OpDeleteUser); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	username, err := d.authorizeLocked(accessToken)
	if err != nil {
		return err
	}
	delete(d.users, username)
	for tok, owner := range d.refresh {
		if owner == username {
			delete(d.refresh, tok)
		}
	}
	for tok, owner := range d.access {
		if owner == username {
			delete(d.access, tok)
		}
	}
	return nil
}

// passwordStep verifies a password and moves to the next challenge or tokens.
func (d *Directory) passwordStep(username, pw string, method state.SignInMethod) (provider.AuthResult, error) {
	d.mu.Lock()
	u, ok := d.users[username]
	var verifier string
	if ok {
		verifier = u.verifier
	}
	d.mu.Unlock()
	if !ok {
		return provider.AuthResult{}, incorrectCredentials()
	}

	match, err := d.hasher.Verify(pw, verifier)
	if err != nil || !match {
		return provider.AuthResult{}, incorrectCredentials()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !u.confirmed {
		return provider.AuthResult{}, state.NewServiceError("UserNotConfirmedException", "User is not confirmed.", false, nil)
	}
	if u.newPassword {
		return d.challengeLocked(u, state.ChallengeNewPassword, method), nil
	}
	if u.mfaCode != "" {
		return d.challengeLocked(u, state.ChallengeSMSMFA, method), nil
	}
	return d.issueLocked(u)
}

func (d *Directory) challengeLocked(u *user, name state.ChallengeName, method state.SignInMethod) provider.AuthResult {
	session := d.newSessionLocked(pending{username: u.username, challenge: name, method: method})
	params := map[string]string{"USERNAME": u.username}
	if name == state.ChallengeSMSMFA {
		params["CODE_DELIVERY_DELIVERY_MEDIUM"] = "SMS"
		params["CODE_DELIVERY_DESTINATION"] = "+*******0000"
	}
	return provider.AuthResult{Challenge: &state.AuthChallenge{
		Name:       name,
		Username:   u.username,
		Session:    session,
		Parameters: params,
		Method:     method,
	}}
}

func (d *Directory) issueLocked(u *user) (provider.AuthResult, error) {
	id, exp, err := d.tokens.CreateIDToken(u.sub, u.username, u.email)
	if err != nil {
		return provider.AuthResult{}, state.NewServiceError("InternalErrorException", "token issue failed", true, err)
	}
	access, _, err := d.tokens.CreateAccessToken(u.sub, u.username)
	if err != nil {
		return provider.AuthResult{}, state.NewServiceError("InternalErrorException", "token issue failed", true, err)
	}
	refresh := uuid.NewString()
	d.refresh[refresh] = u.username
	d.access[access] = u.username

	return provider.AuthResult{Tokens: &state.UserPoolTokens{
		IDToken:      id,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
	}}, nil
}

func (d *Directory) authorizeLocked(accessToken string) (string, error) {
	claims, err := d.tokens.Parse(accessToken, jwt.TokenUseAccess)
	if err != nil {
		return "", state.NewNotAuthorizedError("NotAuthorizedException", "Invalid Access Token", err)
	}
	username, ok := d.access[accessToken]
	if !ok || username != claims.Username {
		return "", state.NewNotAuthorizedError("NotAuthorizedException", "Access Token has been revoked", nil)
	}
	if _, exists := d.users[username]; !exists {
		return "", state.NewNotAuthorizedError("NotAuthorizedException", "User does not exist.", nil)
	}
	return username, nil
}

func (d *Directory) deliveryLocked(u *user) *state.CodeDeliveryDetails {
	return &state.CodeDeliveryDetails{
		Destination:   maskEmail(u.email),
		Medium:        "EMAIL",
		AttributeName: "email",
	}
}

func invalidPassword(err error) error {
	var pe *password.PolicyError
	if errors.As(err, &pe) {
		return state.NewServiceError("InvalidPasswordException", pe.Error(), true, err)
	}
	return state.NewServiceError("InvalidPasswordException", "Password did not conform with policy", true, err)
}

// VerifyAccessToken checks an access token the way a resource server behind
// the pool would: signature, expiry, revocation and user existence.
func (d *Directory) VerifyAccessToken(ctx context.Context, token string) (*jwt.Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.authorizeLocked(token); err != nil {
		return nil, err
	}
	return d.tokens.Parse(token, jwt.TokenUseAccess)
}
