package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/jukwaa/core"
	"github.com/trezcool/jukwaa/core/stage"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	in     io.Reader
	out    io.Writer
	openDB func() (*sqlx.DB, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command on the database (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  createdb - create the app user and database if they do not exist (postgres)")
	fmt.Fprintln(cli.out, "  timeline -file FILE [-start DATE] [-end DATE] [-at DATE] [-json] - normalize & resolve a stage list")
	fmt.Fprintln(cli.out, "  token -user ID [-name NAME] [-username USERNAME] [-admin] - issue a bearer token for local use")
}

// parseDate parses an optional ISO-8601 flag value.
func parseDate(flagName, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, ok := stage.ParseTime(value)
	if !ok {
		return nil, fmt.Errorf("-%s: invalid date %q", flagName, value)
	}
	return &t, nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	timelineCmd := flag.NewFlagSet("timeline", flag.ContinueOnError)
	timelineCmd.SetOutput(cli.out)
	timelineFile := timelineCmd.String("file", "", "JSON file holding the list of stages; - reads stdin.")
	timelineStart := timelineCmd.String("start", "", "Start date, used when kickoff has no start time.")
	timelineEnd := timelineCmd.String("end", "", "End date, used when closing has no start time.")
	timelineAt := timelineCmd.String("at", "", "Resolve the current stage at this date instead of now.")
	timelineJSON := timelineCmd.Bool("json", false, "Print the resolved timeline as JSON.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenUser := tokenCmd.String("user", "", "The user ID (token subject).")
	tokenName := tokenCmd.String("name", "", "The user's display name.")
	tokenUsername := tokenCmd.String("username", "", "The user's username.")
	tokenAdmin := tokenCmd.Bool("admin", false, "Grant admin roles.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createdb":
		return cli.createDB()
	case "timeline":
		if err := timelineCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *timelineFile == "" {
			timelineCmd.Usage()
			return errHelp
		}
		opts := timelineOptions{file: *timelineFile, json: *timelineJSON}
		var err error
		if opts.start, err = parseDate("start", *timelineStart); err != nil {
			return err
		}
		if opts.end, err = parseDate("end", *timelineEnd); err != nil {
			return err
		}
		if opts.at, err = parseDate("at", *timelineAt); err != nil {
			return err
		}
		return cli.timeline(opts)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUser, *tokenName, *tokenUsername, *tokenAdmin)
	default:
		cli.printUsage()
		return errHelp
	}
}
