package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/jukwaa/core/activity"
	"github.com/trezcool/jukwaa/core/stage"
	logsvc "github.com/trezcool/jukwaa/services/logger"
)

type timelineOptions struct {
	file       string // "-" for stdin
	start, end *time.Time
	at         *time.Time // defaults to now
	json       bool
}

// timeline normalizes the stages of `opts.file` and resolves them, the way the API does on create, without saving.
func (cli *commandLine) timeline(opts timelineOptions) error {
	raw, err := cli.readStages(opts.file)
	if err != nil {
		return err
	}

	svcOpts := []activity.Option{
		activity.WithStrictOrder(cli.conf.Activity.StrictStageOrder),
		activity.WithMaxStages(cli.conf.Activity.MaxStages),
	}
	if opts.at != nil {
		at := *opts.at
		svcOpts = append(svcOpts, activity.WithNowFunc(func() time.Time { return at }))
	}
	svc := activity.NewService(nil, logsvc.New("ADMIN : ", cli.conf), svcOpts...)

	view, err := svc.Preview(activity.PreviewRequest{StartDate: opts.start, EndDate: opts.end, Stages: raw})
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	cli.renderTimeline(view)
	return nil
}

func (cli *commandLine) readStages(file string) ([]stage.Input, error) {
	var r io.Reader
	if file == "-" {
		r = cli.in
	} else {
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, "opening stages file")
		}
		defer f.Close()
		r = f
	}

	var raw []stage.Input
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrapf(err, "decoding stages of %s", file)
	}
	return raw, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04 MST")
}

func (cli *commandLine) renderTimeline(view activity.View) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cli.out)
	if f, ok := cli.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			tw.SetAllowedRowLength(width)
		}
	}

	tw.AppendHeader(table.Row{"#", "Key", "Name", "Start", "When", "End", "Status", ""})
	for _, s := range view.Stages {
		var current string
		if view.CurrentStage != nil && view.CurrentStage.Key == s.Key {
			current = "<"
		}
		start := s.StartAt
		when := humanize.RelTime(start, view.ServerTime, "ago", "from now")
		tw.AppendRow(table.Row{s.Order, s.Key, s.Name, formatTime(&start), when, formatTime(s.EndAt), s.Status, current})
	}
	tw.AppendFooter(table.Row{"", "", "At", formatTime(&view.ServerTime), "", "", "", ""})
	tw.Render()
}
