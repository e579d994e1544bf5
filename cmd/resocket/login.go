package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func loginCmd(a *app) *cobra.Command {
	var (
		username string
		password string
		code     string
		nickname string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Long: "Sign in as an admin or quiz master with --username and --password, " +
			"or as a team with --team-code and --nickname.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := a.newAPI()
			ctx := cmd.Context()

			switch {
			case code != "":
				tok, err := client.TeamLogin(ctx, code, nickname)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as team (%s)\n", tok.Role)
			case username != "":
				tok, err := client.Login(ctx, username, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", username, tok.Role)
			default:
				return errors.New("either --username or --team-code is required")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "admin or quiz master user name")
	f.StringVar(&password, "password", "", "password for --username")
	f.StringVar(&code, "team-code", "", "team join code")
	f.StringVar(&nickname, "nickname", "", "team nickname for --team-code")
	cmd.MarkFlagsMutuallyExclusive("username", "team-code")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.newAPI().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
