package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func loggerApp() *cli.App {
	return &cli.App{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
			},
		},
		Before: setupLogger,
		Action: func(c *cli.Context) error {
			return nil
		},
	}
}

func TestSetupLogger(t *testing.T) {
	t.Run("accepts all valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
			t.Run(level, func(t *testing.T) {
				err := loggerApp().Run([]string{"test", "--log-level", level})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := loggerApp().Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("alias -l works", func(t *testing.T) {
		err := loggerApp().Run([]string{"test", "-l", "debug"})
		require.NoError(t, err)
	})
}

func TestIngestCommandValidation(t *testing.T) {
	app := &cli.App{
		Name: "evidentia",
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "db", Required: true},
					&cli.StringFlag{Name: "type", Value: "generic"},
				},
			},
		},
	}

	t.Run("db flag is required", func(t *testing.T) {
		err := app.Run([]string{"evidentia", "ingest", "file.pdf"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})

	t.Run("at least one file is required", func(t *testing.T) {
		err := app.Run([]string{"evidentia", "ingest", "--db", t.TempDir()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file")
	})

	t.Run("unknown document type is rejected", func(t *testing.T) {
		err := app.Run([]string{"evidentia", "ingest", "--db", t.TempDir(), "--type", "napkin", "file.pdf"})
		require.Error(t, err)
	})
}

func TestAskCommandValidation(t *testing.T) {
	app := &cli.App{
		Name: "evidentia",
		Commands: []*cli.Command{
			{
				Name:   "ask",
				Action: askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner", Value: "cli"},
					&cli.StringFlag{Name: "generation-host", Value: "http://localhost:11434/v1"},
					&cli.StringFlag{Name: "generation-model", Value: "qwen2.5:3b"},
				},
			},
		},
	}

	err := app.Run([]string{"evidentia", "ask"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question")
}
