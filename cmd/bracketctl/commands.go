package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/AdamBeresnev/bracket-manager/internal/bracket"
	"github.com/AdamBeresnev/bracket-manager/internal/config"
	"github.com/AdamBeresnev/bracket-manager/internal/db"
	"github.com/AdamBeresnev/bracket-manager/internal/legacy"
	"github.com/AdamBeresnev/bracket-manager/views"
	"github.com/urfave/cli/v2"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "bracketctl",
		Usage:  "offline tools for bracket export files",
		Writer: out,
		Commands: []*cli.Command{
			translateCommand(),
			validateCommand(),
			renderCommand(),
			migrateCommand(),
		},
	}
}

func inFlag() cli.Flag {
	return &cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "export file to read", Required: true}
}

func outFlag() cli.Flag {
	return &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write here instead of stdout"}
}

// loadBracket reads an export file, translating legacy documents. Keys dropped by the
// translation are listed before keys that did not fit the topology.
func loadBracket(path string) (bracket.Snapshot, bracket.State, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return bracket.Snapshot{}, bracket.State{}, nil, err
	}
	snap, err := bracket.DecodeSnapshot(data)
	if err != nil {
		return bracket.Snapshot{}, bracket.State{}, nil, fmt.Errorf("%s: %w", path, err)
	}

	var dropped []string
	if legacy.IsLegacy(snap) {
		res := legacy.Translate(snap)
		snap = res.Snapshot
		dropped = res.Dropped
	}

	state, more, err := bracket.FromSnapshot(snap, bracket.DefaultConfig())
	if err != nil {
		return bracket.Snapshot{}, bracket.State{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, state, append(dropped, more...), nil
}

func output(c *cli.Context) (io.Writer, func() error, error) {
	path := c.String("out")
	if path == "" {
		return c.App.Writer, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func translateCommand() *cli.Command {
	return &cli.Command{
		Name:  "translate",
		Usage: "rewrite a legacy export into the current format",
		Flags: []cli.Flag{inFlag(), outFlag()},
		Action: func(c *cli.Context) error {
			snap, state, dropped, err := loadBracket(c.String("in"))
			if err != nil {
				return err
			}

			next := bracket.ToSnapshot(state)
			next.TournamentName = snap.TournamentName
			next.ExportDate = time.Now().UTC().Format(time.RFC3339)
			data, err := next.Encode()
			if err != nil {
				return err
			}

			w, closeOut, err := output(c)
			if err != nil {
				return err
			}
			if _, err := w.Write(append(data, '\n')); err != nil {
				closeOut()
				return err
			}
			for _, key := range dropped {
				slog.Warn("dropped key", "key", key)
			}
			return closeOut()
		},
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check an export file and report keys that would be skipped",
		Flags: []cli.Flag{
			inFlag(),
			&cli.BoolFlag{Name: "strict", Usage: "fail when any key would be skipped"},
		},
		Action: func(c *cli.Context) error {
			_, state, dropped, err := loadBracket(c.String("in"))
			if err != nil {
				return err
			}

			cfg := state.Config
			fmt.Fprintf(c.App.Writer, "config: %s, bracket size %d", cfg.Mode, cfg.BracketSize)
			if cfg.IsTeams() {
				fmt.Fprintf(c.App.Writer, ", %d players per team", cfg.PlayersPerTeam)
			}
			fmt.Fprintf(c.App.Writer, "\nwinners: %d of %d matches\n", len(state.Winners), cfg.BracketSize-1)

			if len(dropped) == 0 {
				fmt.Fprintln(c.App.Writer, "ok")
				return nil
			}
			fmt.Fprintf(c.App.Writer, "skipped %d keys: %s\n", len(dropped), strings.Join(dropped, ", "))
			if c.Bool("strict") {
				return errors.New("export contains keys that do not fit the bracket")
			}
			return nil
		},
	}
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "write the standalone presentation page for an export file",
		Flags: []cli.Flag{
			inFlag(),
			outFlag(),
			&cli.StringFlag{Name: "settings", Aliases: []string{"s"}, Usage: "display settings JSON"},
			&cli.StringFlag{Name: "title", Usage: "tournament title, overrides settings and export"},
		},
		Action: func(c *cli.Context) error {
			snap, state, _, err := loadBracket(c.String("in"))
			if err != nil {
				return err
			}

			var settings bracket.DisplaySettings
			if path := c.String("settings"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &settings); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			if settings.TournamentTitle == "" {
				settings.TournamentTitle = snap.TournamentName
			}
			if title := c.String("title"); title != "" {
				settings.TournamentTitle = title
			}

			var buf bytes.Buffer
			page := views.Presentation(views.PrepareBracketData(state), settings.Resolve(state.Config.BracketSize))
			if err := page.Render(c.Context, &buf); err != nil {
				return err
			}

			w, closeOut, err := output(c)
			if err != nil {
				return err
			}
			if _, err := buf.WriteTo(w); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "configuration file"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			database := db.InitDB(cfg.Database.Path)
			defer database.Close()

			if err := db.RunMigrations(database.DB, cfg.Database.Migrations); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "migrated %s\n", cfg.Database.Path)
			return nil
		},
	}
}
