package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/bodgit/patronlink"
	"github.com/bodgit/patronlink/avatar"
	"github.com/bodgit/patronlink/config"
	"github.com/bodgit/patronlink/logging"
	"github.com/bodgit/patronlink/roster"
	"github.com/bodgit/patronlink/state"
	"github.com/bodgit/patronlink/upload"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const defaultConfig = "patronlink.yaml"

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

type env struct {
	config *config.Config
	logger *slog.Logger
	close  func()
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"), os.Environ())
	if err != nil {
		return nil, err
	}
	if c.IsSet("db") {
		cfg.Database = c.String("db")
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}

	h := logging.NewHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	e := &env{
		config: cfg,
		logger: slog.New(h),
		close:  func() {},
	}

	if cfg.Log.Directory != "" {
		loc, err := cfg.Location()
		if err != nil {
			return nil, err
		}
		f, err := logging.CreateFile(cfg.Log.Directory, loc, time.Now())
		if err != nil {
			return nil, err
		}
		cancel := h.Observe(logging.NewWriter(f, loc).Observe)
		e.close = func() {
			cancel()
			f.Close()
		}
	}

	return e, nil
}

func newUploader(cfg *config.Config) (interface {
	upload.Uploader
	avatar.Fetcher
}, error) {
	if cfg.Upload.URL != "" {
		return upload.NewHTTP(cfg.Upload.URL, &http.Client{Timeout: cfg.Upload.Timeout}), nil
	}
	return upload.NewDirectory(cfg.Upload.Directory)
}

func withLinker(c *cli.Context, fn func(*env, *patronlink.Linker) error) error {
	e, err := setup(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer e.close()

	db, err := patronlink.NewLinkDB(e.config.Database)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer db.Close()

	st, err := state.Open(e.config.State)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer st.Close()

	u, err := newUploader(e.config)
	if err != nil {
		return cli.Exit(err, 1)
	}

	l, err := patronlink.FromConfig(e.config, db, st, u, e.logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := fn(e, l); err != nil {
		e.logger.Error("command failed", "err", err)
		return cli.Exit(err, 1)
	}

	return nil
}

func withDB(c *cli.Context, fn func(*env, *patronlink.LinkDB) error) error {
	e, err := setup(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer e.close()

	db, err := patronlink.NewLinkDB(e.config.Database)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer db.Close()

	if err := fn(e, db); err != nil {
		return cli.Exit(err, 1)
	}

	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal(err)
	}

	app := cli.NewApp()

	app.Name = "patronlink"
	app.Usage = "Export linked Discord patrons to VRChat avatar images"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"PATRONLINK_CONFIG"},
			Value:   filepath.Join(cwd, defaultConfig),
			Usage:   "path to configuration file",
		},
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"PATRONLINK_DB"},
			Usage:   "path to link database, overrides the configuration file",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "import",
			Usage:     "Import guild members and roles",
			ArgsUsage: "FILE",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return withDB(c, func(e *env, db *patronlink.LinkDB) error {
					if err := db.ImportYAML(c.Args().First()); err != nil {
						return err
					}
					e.logger.Info("imported members", "file", c.Args().First())
					return nil
				})
			},
		},
		{
			Name:      "link",
			Usage:     "Link a member to a VRChat profile",
			ArgsUsage: "MEMBER PROFILE NAME",
			Action: func(c *cli.Context) error {
				if c.NArg() < 3 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return withDB(c, func(e *env, db *patronlink.LinkDB) error {
					member, profile, name := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)
					if !roster.Valid(name) {
						return fmt.Errorf("profile name %q cannot contain %q or a newline", name, roster.Separator)
					}
					if err := db.Link(member, profile, name); err != nil {
						return err
					}
					e.logger.Info("member linked", "member", member, "profile", profile, "name", name)
					return nil
				})
			},
		},
		{
			Name:      "unlink",
			Usage:     "Remove the VRChat profile from a member",
			ArgsUsage: "MEMBER",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				return withDB(c, func(e *env, db *patronlink.LinkDB) error {
					if err := db.Unlink(c.Args().First()); err != nil {
						return err
					}
					e.logger.Info("member unlinked", "member", c.Args().First())
					return nil
				})
			},
		},
		{
			Name:  "status",
			Usage: "Show the number of members in each link state",
			Action: func(c *cli.Context) error {
				return withDB(c, func(e *env, db *patronlink.LinkDB) error {
					counts, err := db.Counts()
					if err != nil {
						return err
					}

					states := make([]patronlink.LinkState, 0, len(counts))
					for s := range counts {
						states = append(states, s)
					}
					sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })

					for _, s := range states {
						fmt.Fprintf(c.App.Writer, "%-20s %d\n", s, counts[s])
					}

					pending, err := db.Pending()
					if err != nil {
						return err
					}
					for _, m := range pending {
						fmt.Fprintf(c.App.Writer, "pending invite: %s\n", m)
					}
					return nil
				})
			},
		},
		{
			Name:  "sync",
			Usage: "Export the roster once",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:    "force",
					Aliases: []string{"f"},
					Usage:   "upload even if the roster is unchanged",
				},
			},
			Action: func(c *cli.Context) error {
				return withLinker(c, func(e *env, l *patronlink.Linker) error {
					result, err := l.Sync(c.Context, c.Bool("force"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, result)
					return nil
				})
			},
		},
		{
			Name:  "run",
			Usage: "Export the roster periodically",
			Action: func(c *cli.Context) error {
				return withLinker(c, func(e *env, l *patronlink.Linker) error {
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					e.logger.Info("patronlink is ready", "interval", e.config.Interval)
					if err := l.Run(ctx, e.config.StartupDelay, e.config.Interval); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			},
		},
		{
			Name:      "decode",
			Usage:     "Decode the roster from uploaded images",
			ArgsUsage: "[AVATAR]",
			Action: func(c *cli.Context) error {
				e, err := setup(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer e.close()

				f, err := newUploader(e.config)
				if err != nil {
					return cli.Exit(err, 1)
				}

				first := e.config.Avatars[0]
				if c.NArg() > 0 {
					first = c.Args().First()
				}
				id, err := avatar.ParseID(first)
				if err != nil {
					return cli.Exit(err, 1)
				}

				b, err := avatar.DecodeChain(c.Context, f, id)
				if err != nil {
					return cli.Exit(err, 1)
				}

				for _, t := range roster.Parse(string(b)) {
					fmt.Fprintf(c.App.Writer, "%s (%d)\n", t.Name, len(t.Members))
					for _, m := range t.Members {
						fmt.Fprintf(c.App.Writer, "  %s\n", m)
					}
				}
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
