package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
	"github.com/fish-not-phish/pixurebyte/internal/ui"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store an API token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return errors.New("please provide --email")
			}
			password, err := readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			if _, err := a.client.Login(cmd.Context(), schema.Credentials{Email: email, Password: password}); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			a.user.Clear()
			me, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			// pick a team automatically when the choice is obvious
			if a.session.ActiveTeam() == "" && len(me.Memberships) == 1 {
				if err := a.session.SetActiveTeam(me.Memberships[0].TeamID); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render("Signed in as "+me.Email))
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.client.Logout(); err != nil {
				return err
			}
			a.user.Clear()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (when registration is open)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			email, _ := cmd.Flags().GetString("email")
			if email == "" {
				return errors.New("please provide --email")
			}
			settings, err := a.client.GetSettings(cmd.Context())
			if err == nil && !settings.AllowRegistration {
				return errors.New("registration is disabled on this server")
			}
			password, err := readSecret(cmd, "Choose a password: ")
			if err != nil {
				return err
			}
			u, err := a.client.Register(cmd.Context(), schema.Credentials{Email: email, Password: password})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `pixure login --email %s` to sign in.\n", u.Email, u.Email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and team memberships",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			me, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.TitleStyle.Render(me.Email))
			active := a.session.ActiveTeam()
			for _, m := range me.Memberships {
				marker := "  "
				if m.TeamID == active {
					marker = "* "
				}
				fmt.Fprintf(out, "%s%-24s %-10s %s\n", marker, m.TeamName, m.Role, ui.MutedStyle.Render(m.TeamID))
			}
			return nil
		},
	}
}

func newPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			current, err := readSecret(cmd, "Current password: ")
			if err != nil {
				return err
			}
			next, err := readSecret(cmd, "New password: ")
			if err != nil {
				return err
			}
			if strings.TrimSpace(next) == "" {
				return errors.New("new password must not be empty")
			}
			if err := a.client.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
			return nil
		},
	}
}
