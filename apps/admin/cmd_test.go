package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/jukwaa/apps/api/echo"
	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
	"github.com/trezcool/jukwaa/core/user"
	testutil "github.com/trezcool/jukwaa/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	var out bytes.Buffer
	conf := testutil.NewConfig()
	return &commandLine{
		conf: conf,
		in:   strings.NewReader(""),
		out:  &out,
		openDB: func() (*sqlx.DB, error) {
			return testutil.OpenDB(t), nil
		},
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || !strings.Contains(err.Error(), tt.wantErrStr) {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "timeline: no file", args: []string{"timeline"}, wantErr: errHelp},
		{name: "token: no user", args: []string{"token", "-admin"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "stage_index", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_createDB(t *testing.T) {
	cli, out := setup(t)

	var called bool
	createIfNotExistFn = func(conf *core.Config) error {
		called = true
		return nil
	}
	require.NoError(t, cli.run([]string{"admin", "createdb"}))
	assert.True(t, called)
	assert.Contains(t, out.String(), "is ready")
}

const debateStages = `[
	{"key": "preparation", "startAt": "2021-03-15T08:00:00Z"},
	{"key": "kickoff"},
	{"name": "Opening statements", "startAt": "2021-03-15T10:00:00Z"},
	{"key": "rebuttals", "name": "Rebuttals", "startAt": "2021-03-15T11:00:00Z"},
	{"name": "Closing"}
]`

func writeStages(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "stages.json")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func Test_commandLine_timeline(t *testing.T) {
	file := writeStages(t, debateStages)
	dates := []string{"-start", "2021-03-15T09:00:00Z", "-end", "2021-03-15T12:00:00Z"}

	tests := []cliTest{
		{name: "missing file", args: []string{"timeline", "-file", filepath.Join(t.TempDir(), "nope.json")}, wantErrStr: "opening stages file"},
		{name: "not json", args: []string{"timeline", "-file", writeStages(t, "stages")}, wantErrStr: "decoding stages"},
		{name: "invalid date", args: []string{"timeline", "-file", file, "-at", "noon"}, wantErrStr: `-at: invalid date "noon"`},
		{
			name: "out of order",
			args: append([]string{"timeline", "-file", writeStages(t, `[
				{"key": "kickoff", "startAt": "2021-03-15T10:00:00Z"},
				{"name": "Talks", "startAt": "2021-03-15T09:30:00Z"}
			]`)}, dates...),
			wantErrStr: `stage "Talks": starts before the previous stage (Kickoff)`,
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			cli, _ := setup(t)
			tt.check(t, cli.run(args))
		})
	}

	t.Run("table", func(t *testing.T) {
		cli, out := setup(t)
		args := append([]string{"admin", "timeline", "-file", file, "-at", "2021-03-15T10:30:00Z"}, dates...)
		require.NoError(t, cli.run(args))

		var currentLine string
		for _, line := range strings.Split(out.String(), "\n") {
			if strings.Contains(line, "<") {
				currentLine = line
			}
		}
		assert.Contains(t, currentLine, "Opening statements")
		assert.Contains(t, currentLine, "30 minutes ago")
		for _, s := range []string{"preparation", "kickoff", "rebuttals", "closing", "2021-03-15 12:00 UTC"} {
			assert.Contains(t, out.String(), s)
		}
	})

	t.Run("json from stdin", func(t *testing.T) {
		cli, out := setup(t)
		cli.in = strings.NewReader(debateStages)
		args := append([]string{"admin", "timeline", "-file", "-", "-json", "-at", "2021-03-15T11:30:00Z"}, dates...)
		require.NoError(t, cli.run(args))

		var view activity.View
		require.NoError(t, json.Unmarshal(out.Bytes(), &view))
		require.Len(t, view.Stages, 5)
		assert.Equal(t, stage.KeyPreparation, view.Stages[0].Key)
		assert.Equal(t, stage.KeyKickoff, view.Stages[1].Key)
		assert.Equal(t, "Opening statements", view.Stages[2].Name)
		assert.Equal(t, "rebuttals", view.Stages[3].Key)
		assert.Equal(t, stage.KeyClosing, view.Stages[4].Key)
		require.NotNil(t, view.CurrentStage)
		assert.Equal(t, "rebuttals", view.CurrentStage.Key)
		assert.Equal(t, stage.StatusCompleted, view.Stages[2].Status)
	})
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)
	require.NoError(t, cli.run([]string{"admin", "token", "-user", "u1", "-username", "alice", "-admin"}))

	var claims echoapi.Claims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	usr := claims.User()
	assert.Equal(t, "u1", usr.ID)
	assert.Equal(t, "alice", usr.Username)
	assert.True(t, usr.IsAdmin())
	assert.Equal(t, user.AllRoles, usr.Roles)
}
