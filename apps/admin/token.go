package main

import (
	"fmt"

	echoapi "github.com/trezcool/jukwaa/apps/api/echo"
	"github.com/trezcool/jukwaa/core/user"
)

// token prints a bearer token signed with the app's secret key.
// Tokens are normally issued by the auth service: this one is meant for local use.
func (cli *commandLine) token(userID, name, username string, isAdmin bool) error {
	usr := user.User{
		ID:       userID,
		Name:     name,
		Username: username,
		Roles:    []string{user.RoleTeacher},
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}

	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
