package main

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp(name string, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name: "fundwire",
		Commands: []*cli.Command{
			{
				Name:   name,
				Action: action,
				Flags:  flags,
			},
		},
	}
}

func dbFlagForTest() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db",
		Required: true,
	}
}

func TestAddAndListFeeds(t *testing.T) {
	dbPath := t.TempDir()

	addApp := testApp("add-feed", addFeedCommand,
		dbFlagForTest(),
		&cli.StringFlag{Name: "url", Required: true},
		&cli.StringFlag{Name: "name"},
	)
	err := addApp.Run([]string{"fundwire", "add-feed",
		"--db", dbPath,
		"--url", "https://example.com/feed.xml",
		"--name", "example"})
	require.NoError(t, err)

	listApp := testApp("list-feeds", listFeedsCommand, dbFlagForTest())
	err = listApp.Run([]string{"fundwire", "list-feeds", "--db", dbPath})
	require.NoError(t, err)
}

func TestAddFeedRequiresFlags(t *testing.T) {
	app := testApp("add-feed", addFeedCommand,
		dbFlagForTest(),
		&cli.StringFlag{Name: "url", Required: true},
	)

	t.Run("missing db flag fails", func(t *testing.T) {
		err := app.Run([]string{"fundwire", "add-feed", "--url", "https://example.com/feed.xml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("missing url flag fails", func(t *testing.T) {
		err := app.Run([]string{"fundwire", "add-feed", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "url")
	})
}

func TestReconcileDryRunOnEmptyStore(t *testing.T) {
	app := testApp("reconcile", reconcileCommand,
		dbFlagForTest(),
		&cli.BoolFlag{Name: "execute"},
		&cli.BoolFlag{Name: "no-fix-amounts"},
		&cli.BoolFlag{Name: "no-delete-rounds"},
		&cli.BoolFlag{Name: "no-delete-entities"},
		&cli.BoolFlag{Name: "no-fix-dates"},
		&cli.BoolFlag{Name: "no-rearm"},
		&cli.BoolFlag{Name: "reset-stuck"},
		&cli.DurationFlag{Name: "stuck-cutoff"},
		&cli.BoolFlag{Name: "reprocess"},
	)

	err := app.Run([]string{"fundwire", "reconcile", "--db", t.TempDir()})
	require.NoError(t, err)
}

func TestSearchRequiresQuery(t *testing.T) {
	app := testApp("search", searchCommand,
		dbFlagForTest(),
		&cli.StringFlag{Name: "embedding-host"},
		&cli.StringFlag{Name: "embedding-model"},
		&cli.IntFlag{Name: "limit", Value: 5},
		&cli.Float64Flag{Name: "min-similarity", Value: 0.6},
	)

	err := app.Run([]string{"fundwire", "search", "--db", t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

func TestSetupLogger(t *testing.T) {
	newApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "WARN", "Info"} {
			t.Run(level, func(t *testing.T) {
				err := newApp().Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newApp().Run([]string{"test", "--log-level", "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	// keep the default usable after the level tests above
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}
