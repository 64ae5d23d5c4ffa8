package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

func (a *app) newSignUpCmd() *cobra.Command {
	var email, password, fullName string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with a free trial",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email, err = a.ask(email, "Email: "); err != nil {
				return err
			}
			if fullName, err = a.ask(fullName, "Full name: "); err != nil {
				return err
			}
			if password, err = a.askPassword(password, "Password: ", true); err != nil {
				return err
			}

			err = a.deps.Session.SignUp(cmd.Context(), email, password, fullName)
			if errors.Is(err, models.ErrEmailConfirmationPending) {
				fmt.Fprintf(cmd.OutOrStdout(), "Account created. Confirm %s from the email we sent, then run signin.\n", email)
				return nil
			}
			if err != nil {
				return fmt.Errorf("sign up failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created. Signed in as %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&fullName, "name", "", "full name")
	return cmd
}

func (a *app) newSignInCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email, err = a.ask(email, "Email: "); err != nil {
				return err
			}
			if password, err = a.askPassword(password, "Password: ", false); err != nil {
				return err
			}

			if err := a.deps.Session.SignIn(cmd.Context(), email, password); err != nil {
				return fmt.Errorf("sign in failed: %w", err)
			}

			name := email
			if u := a.deps.Session.Snapshot().User; u != nil && u.FullName != "" {
				name = u.FullName
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	return cmd
}

func (a *app) newSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.deps.Session.SignOut(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (a *app) newResetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email, err = a.ask(email, "Email: "); err != nil {
				return err
			}
			if err := a.deps.Session.ResetPassword(cmd.Context(), email); err != nil {
				return fmt.Errorf("password reset failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset email sent to %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func (a *app) newUpdatePasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "update-password",
		Short: "Change the password of the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if password, err = a.askPassword(password, "New password: ", true); err != nil {
				return err
			}
			if err := a.deps.Session.UpdatePassword(cmd.Context(), password); err != nil {
				return fmt.Errorf("password update failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}
