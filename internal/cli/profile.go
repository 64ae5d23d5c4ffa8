package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/therapy-rooms/internal/http/response"
	"github.com/magabrotheeeer/therapy-rooms/internal/models"
)

func (a *app) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := a.deps.Session.Snapshot()
			if !st.Authenticated() {
				return fmt.Errorf("%w: run signin first", models.ErrNotAuthenticated)
			}
			if a.format != formatTable {
				return printStructured(cmd.OutOrStdout(), a.format, response.NewSessionView(st))
			}
			printUser(cmd.OutOrStdout(), st.User, st.Subscription)
			return nil
		},
	}
}

func (a *app) newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Profile commands",
	}

	var name, language string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update full name or preferred language",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.FullName = &name
			}
			if cmd.Flags().Changed("language") {
				lang := models.Language(language)
				patch.PreferredLanguage = &lang
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update: pass --name or --language")
			}

			user, err := a.deps.Session.UpdateProfile(cmd.Context(), patch)
			if err != nil {
				return fmt.Errorf("profile update failed: %w", err)
			}
			return a.printProfile(cmd.OutOrStdout(), user)
		},
	}
	update.Flags().StringVar(&name, "name", "", "full name")
	update.Flags().StringVar(&language, "language", "", "preferred language: en or ar")

	cmd.AddCommand(update)
	return cmd
}

func (a *app) newOnboardingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Onboarding commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "complete",
		Short: "Mark onboarding as completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.deps.Session.CompleteOnboarding(cmd.Context())
			if err != nil {
				return fmt.Errorf("onboarding failed: %w", err)
			}
			return a.printProfile(cmd.OutOrStdout(), user)
		},
	})
	return cmd
}

func (a *app) printProfile(w io.Writer, user *models.User) error {
	if a.format != formatTable {
		return printStructured(w, a.format, user)
	}
	printUser(w, user, a.deps.Session.Snapshot().Subscription)
	return nil
}

func printUser(w io.Writer, u *models.User, sub models.SubscriptionState) {
	fmt.Fprintf(w, "ID:           %s\n", u.ID)
	fmt.Fprintf(w, "Email:        %s\n", u.Email)
	if u.FullName != "" {
		fmt.Fprintf(w, "Name:         %s\n", u.FullName)
	}
	fmt.Fprintf(w, "Language:     %s\n", u.PreferredLanguage)
	fmt.Fprintf(w, "Onboarded:    %s\n", strconv.FormatBool(u.OnboardingCompleted))
	fmt.Fprintf(w, "Subscription: %s\n", formatSubscription(sub))
	if u.TrialEndsAt != nil && sub.Status == models.StatusTrial {
		fmt.Fprintf(w, "Trial ends:   %s\n", u.TrialEndsAt.Local().Format(time.RFC1123))
	}
}

func formatSubscription(s models.SubscriptionState) string {
	switch s.Status {
	case models.StatusTrial, models.StatusActive:
		return fmt.Sprintf("%s (%d days left)", s.Status, s.DaysRemaining)
	default:
		return string(s.Status)
	}
}
