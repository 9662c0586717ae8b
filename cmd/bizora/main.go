package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool             `help:"Enable debug logging." env:"DEBUG"`
		Version kong.VersionFlag `help:"Print the version and exit."`
		Serve   ServeCmd         `cmd:"" default:"1" help:"Start the HTTP server."`
		Migrate MigrateCmd       `cmd:"" help:"Apply pending database migrations and exit."`
	}
)

// Globals are shared by every command.
type Globals struct {
	Logger  *slog.Logger
	Version string
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("bizora"),
		kong.Description("Tenant onboarding and billing service."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	err := cmd.Run(&Globals{Logger: logger, Version: version})
	cmd.FatalIfErrorf(err)
}
