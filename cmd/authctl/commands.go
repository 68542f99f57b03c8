package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/authmachine"
	"github.com/MrEthical07/authmachine/state"
)

/*
====================================
SIGN IN
====================================
*/

func newSignInCmd(a *app) *cobra.Command {
	var (
		password string
		flow     string
	)
	cmd := &cobra.Command{
		Use:   "sign-in USERNAME",
		Short: "Sign in, answering challenges from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flowType, err := parseFlow(flow)
			if err != nil {
				return err
			}
			if password == "" && flowType != authmachine.AuthFlowCustom {
				if password, err = a.prompt("Password: "); err != nil {
					return err
				}
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}

			res, err := engine.SignIn(ctx, authmachine.SignInInput{
				Username: args[0],
				Password: password,
				Flow:     flowType,
			})
			for err == nil && !res.IsSignedIn() {
				answer, perr := a.prompt(challengePrompt(res))
				if perr != nil {
					return perr
				}
				res, err = engine.ConfirmSignIn(ctx, authmachine.ConfirmSignInInput{Answer: answer})
			}
			if err != nil {
				return err
			}
			return a.printJSON(userView(res.User))
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password; prompted when empty")
	cmd.Flags().StringVar(&flow, "flow", "srp", "sign-in flow: srp, user-password or custom")
	return cmd
}

func parseFlow(s string) (authmachine.AuthFlowType, error) {
	switch s {
	case "", "srp":
		return authmachine.AuthFlowSRP, nil
	case "user-password":
		return authmachine.AuthFlowUserPassword, nil
	case "custom":
		return authmachine.AuthFlowCustom, nil
	}
	return 0, fmt.Errorf("unknown flow %q", s)
}

func challengePrompt(res authmachine.SignInResult) string {
	switch res.NextStep {
	case authmachine.SignInStepConfirmSignInWithSMSMFACode:
		if dest := res.Parameters["CODE_DELIVERY_DESTINATION"]; dest != "" {
			return fmt.Sprintf("SMS code sent to %s: ", dest)
		}
		return "SMS code: "
	case authmachine.SignInStepConfirmSignInWithTOTPCode:
		return "Authenticator code: "
	case authmachine.SignInStepContinueSignInWithMFASelection:
		return "MFA type (SMS_MFA or SOFTWARE_TOKEN_MFA): "
	case authmachine.SignInStepConfirmSignInWithNewPassword:
		return "New password: "
	default:
		return "Challenge answer: "
	}
}

/*
====================================
SIGN UP
====================================
*/

func newSignUpCmd(a *app) *cobra.Command {
	var (
		password   string
		attributes map[string]string
	)
	cmd := &cobra.Command{
		Use:   "sign-up USERNAME",
		Short: "Register a user and confirm it from stdin when a code is sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if password == "" {
				if password, err = a.prompt("Password: "); err != nil {
					return err
				}
			}

			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}

			res, err := engine.SignUp(ctx, authmachine.SignUpInput{
				Username:   args[0],
				Password:   password,
				Attributes: attributes,
			})
			if err != nil {
				return err
			}
			if res.NextStep == authmachine.SignUpStepConfirmSignUp {
				label := "Confirmation code: "
				if res.CodeDelivery != nil {
					label = fmt.Sprintf("Confirmation code sent to %s: ", res.CodeDelivery.Destination)
				}
				code, err := a.prompt(label)
				if err != nil {
					return err
				}
				if res, err = engine.ConfirmSignUp(ctx, authmachine.ConfirmSignUpInput{Code: code}); err != nil {
					return err
				}
			}
			return a.printJSON(signUpView(res))
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password; prompted when empty")
	cmd.Flags().StringToStringVar(&attributes, "attribute", nil, "user attribute, e.g. --attribute email=a@example.com")
	return cmd
}

func newConfirmSignUpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-sign-up USERNAME CODE",
		Short: "Confirm a sign-up started by another process",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			res, err := engine.ConfirmSignUp(ctx, authmachine.ConfirmSignUpInput{Username: args[0], Code: args[1]})
			if err != nil {
				return err
			}
			return a.printJSON(signUpView(res))
		},
	}
}

func newResendCodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resend-code USERNAME",
		Short: "Send the sign-up confirmation code again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			d, err := engine.ResendSignUpCode(ctx, args[0], nil)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{
				"destination": d.Destination,
				"medium":      d.Medium,
				"attribute":   d.AttributeName,
			})
		},
	}
}

/*
====================================
SESSION
====================================
*/

func newSessionCmd(a *app) *cobra.Command {
	var (
		force      bool
		showTokens bool
	)
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Fetch the current session, refreshing expired credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			s, err := engine.FetchAuthSession(ctx, authmachine.FetchAuthSessionOptions{ForceRefresh: force})
			if err != nil {
				return err
			}
			return a.printJSON(sessionView(s, showTokens))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "refresh even when credentials are still valid")
	cmd.Flags().BoolVar(&showTokens, "show-tokens", false, "print tokens and AWS secrets")
	return cmd
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user without contacting the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			u, err := engine.GetCurrentUser(ctx)
			if err != nil {
				return err
			}
			return a.printJSON(userView(&u))
		},
	}
}

/*
====================================
SIGN OUT
====================================
*/

func newSignOutCmd(a *app) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "sign-out",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			res, err := engine.SignOut(ctx, authmachine.SignOutOptions{GlobalSignOut: global})
			if err != nil {
				return err
			}
			if res.GlobalSignOutErr != nil {
				fmt.Fprintln(a.errOut, "warning: global sign-out failed:", res.GlobalSignOutErr)
			}
			if res.RevokeTokenErr != nil {
				fmt.Fprintln(a.errOut, "warning: token revocation failed:", res.RevokeTokenErr)
			}
			return a.printJSON(map[string]any{"username": res.Username, "partial": res.Partial()})
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "invalidate tokens on every device")
	return cmd
}

func newDeleteUserCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete without --yes")
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			return engine.DeleteUser(ctx)
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}

/*
====================================
FEDERATION
====================================
*/

func newFederateCmd(a *app) *cobra.Command {
	var (
		providerName string
		token        string
		identityID   string
	)
	cmd := &cobra.Command{
		Use:   "federate",
		Short: "Exchange a third-party token for identity pool credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			res, err := engine.FederateToIdentityPool(ctx,
				state.FederatedToken{Token: token, Provider: providerName},
				authmachine.FederateOptions{IdentityID: identityID},
			)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{
				"identity_id":    res.IdentityID,
				"aws_expiration": res.AWS.Expiration.Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "identity provider, e.g. accounts.google.com")
	cmd.Flags().StringVar(&token, "token", "", "token issued by the provider")
	cmd.Flags().StringVar(&identityID, "identity-id", "", "reuse a known identity")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newClearFederationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-federation",
		Short: "Drop the federated identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			engine, err := a.engineFor(ctx)
			if err != nil {
				return err
			}
			return engine.ClearFederationToIdentityPool(ctx)
		},
	}
}

/*
====================================
CONFIG
====================================
*/

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.UserPool.AppClientSecret != "" {
				cfg.UserPool.AppClientSecret = "<redacted>"
			}
			enc := yaml.NewEncoder(a.out)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Exit non-zero when the configuration is invalid",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if _, err := a.loadConfig(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "ok")
			return nil
		},
	})
	return cmd
}

/*
====================================
VIEWS
====================================
*/

func userView(u *authmachine.AuthUser) map[string]any {
	if u == nil {
		return map[string]any{}
	}
	return map[string]any{
		"user_id":      u.UserID,
		"username":     u.Username,
		"method":       u.Method.String(),
		"signed_in_at": u.SignedInAt.Format(time.RFC3339),
	}
}

func signUpView(r authmachine.SignUpResult) map[string]any {
	out := map[string]any{
		"next_step": string(r.NextStep),
		"username":  r.Username,
		"user_id":   r.UserID,
	}
	if r.CodeDelivery != nil {
		out["code_destination"] = r.CodeDelivery.Destination
	}
	return out
}

func sessionView(s authmachine.AuthSession, showTokens bool) map[string]any {
	out := map[string]any{
		"signed_in": s.IsSignedIn,
		"kind":      s.Kind.String(),
	}
	if s.Username != "" {
		out["username"] = s.Username
		out["user_id"] = s.UserID
	}
	if s.Tokens != nil {
		out["tokens_expire_at"] = s.Tokens.ExpiresAt.Format(time.RFC3339)
		if showTokens {
			out["id_token"] = s.Tokens.IDToken
			out["access_token"] = s.Tokens.AccessToken
		}
	}
	if s.IdentityID != "" {
		out["identity_id"] = s.IdentityID
	}
	if s.AWS != nil {
		out["aws_access_key_id"] = s.AWS.AccessKeyID
		out["aws_expiration"] = s.AWS.Expiration.Format(time.RFC3339)
		if showTokens {
			out["aws_secret_access_key"] = s.AWS.SecretAccessKey
			out["aws_session_token"] = s.AWS.SessionToken
		}
	}
	if s.FederatedProvider != "" {
		out["federated_provider"] = s.FederatedProvider
	}
	return out
}
