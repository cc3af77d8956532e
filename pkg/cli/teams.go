package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fish-not-phish/pixurebyte/internal/schema"
	"github.com/fish-not-phish/pixurebyte/internal/ui"
)

func newTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List, create and select teams",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your teams (* marks the active one)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			teams, err := a.client.ListTeams(cmd.Context())
			if err != nil {
				return err
			}
			a.teams.SetTeams(teams)
			ui.Teams(cmd.OutOrStdout(), teams, a.session.ActiveTeam())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a team and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			team, err := a.client.CreateTeam(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.session.SetActiveTeam(team.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created team %s (%s)\n", team.Name, team.ID)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "use <team-id>",
		Short: "Select the team used by scan, members and analytics commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			id, err := parseID("team", args[0])
			if err != nil {
				return err
			}
			teams, err := a.client.ListTeams(cmd.Context())
			if err != nil {
				return err
			}
			a.teams.SetTeams(teams)
			a.teams.SetActive(id)
			team, _ := a.teams.Active()
			if team.Name == "" {
				return fmt.Errorf("you are not a member of team %s", id)
			}
			if err := a.session.SetActiveTeam(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active team: %s\n", team.Name)
			return nil
		},
	})
	return cmd
}

func newMembersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage members of the active team",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List team members",
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, _ []string) error {
			members, err := a.client.ListMembers(cmd.Context(), team)
			if err != nil {
				return err
			}
			ui.Members(cmd.OutOrStdout(), members)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search <query>",
		Short: "Find users that can be invited",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			users, err := a.client.SearchUsers(cmd.Context(), team, args[0])
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", u.Email, ui.MutedStyle.Render(u.ID))
			}
			return nil
		}),
	})

	invite := &cobra.Command{
		Use:   "invite <email>",
		Short: "Add an existing user to the team",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			role, err := roleFlag(cmd)
			if err != nil {
				return err
			}
			m, err := a.client.InviteMember(cmd.Context(), team, args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s as %s\n", m.Email, m.Role)
			return nil
		}),
	}
	invite.Flags().String("role", string(schema.RoleViewer), "Role: admin, requestor or viewer")
	cmd.AddCommand(invite)

	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new account in the team",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			role, err := roleFlag(cmd)
			if err != nil {
				return err
			}
			m, err := a.client.CreateMember(cmd.Context(), team, args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s as %s\n", m.Email, m.Role)
			if m.Password != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Temporary password: %s\n", m.Password)
			}
			return nil
		}),
	}
	create.Flags().String("role", string(schema.RoleViewer), "Role: admin, requestor or viewer")
	cmd.AddCommand(create)

	role := &cobra.Command{
		Use:   "role <user-id>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			user, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			r, err := roleFlag(cmd)
			if err != nil {
				return err
			}
			m, err := a.client.UpdateMember(cmd.Context(), team, user, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", m.Email, m.Role)
			return nil
		}),
	}
	role.Flags().String("role", "", "New role: admin, requestor or viewer")
	cmd.AddCommand(role)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <user-id>",
		Short: "Remove a member from the team",
		Args:  cobra.ExactArgs(1),
		RunE: withTeam(func(cmd *cobra.Command, a *app, team string, args []string) error {
			user, err := parseID("user", args[0])
			if err != nil {
				return err
			}
			if err := a.client.RemoveMember(cmd.Context(), team, user); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Member removed.")
			return nil
		}),
	})
	return cmd
}

// withTeam builds the app and resolves the team before running fn.
func withTeam(fn func(cmd *cobra.Command, a *app, team string, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		team, err := a.teamID()
		if err != nil {
			return err
		}
		return fn(cmd, a, team, args)
	}
}

func roleFlag(cmd *cobra.Command) (schema.Role, error) {
	v, _ := cmd.Flags().GetString("role")
	r := schema.Role(v)
	if !r.Valid() {
		return "", errors.New("please provide --role admin, requestor or viewer")
	}
	return r, nil
}
