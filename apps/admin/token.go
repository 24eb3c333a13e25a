package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	echoapi "github.com/trezcool/examguard/apps/api/echo"
	"github.com/trezcool/examguard/core"
)

func (cli *commandLine) tokenCmd() *cobra.Command {
	var subject, email string
	var roles []string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with the server secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.token(subject, email, roles)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject; the candidate id for candidates")
	cmd.Flags().StringVar(&email, "email", "", "email carried by the token")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "roles: "+strings.Join(echoapi.Roles, ", "))
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func (cli *commandLine) token(subject, email string, roles []string) error {
	subject = core.CleanString(subject)
	if subject == "" {
		return fmt.Errorf("subject is required")
	}
	for _, role := range roles {
		if !validRole(role) {
			return fmt.Errorf("%q: unknown role", role)
		}
	}

	token, err := echoapi.GenerateToken(cli.conf, echoapi.GetClaims(cli.conf, subject, email, roles...))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cli.out, token)
	return err
}

func validRole(role string) bool {
	for _, r := range echoapi.Roles {
		if role == r {
			return true
		}
	}
	return false
}
