package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/codestash/internal"
	"github.com/starford/codestash/internal/exporter"
	"github.com/starford/codestash/internal/payload"
	"github.com/starford/codestash/internal/storage"
	"github.com/starford/codestash/internal/symbology"
	pkgconfig "github.com/starford/codestash/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	found, err := pkgconfig.LoadIfExists(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", path))
	}
	return cfg, nil
}

// cliLogger keeps stdout free for command output.
func cliLogger(cfg *internal.Config) *slog.Logger {
	return internal.NewLogger(os.Stderr, cfg.App.LogLevel)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
		internal.WithVersion(version),
	)
}

func renderCode(ctx context.Context, cmd *cli.Command) error {
	data := cmd.Args().First()
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("render: exactly one payload argument is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sym := cfg.Library.Symbology()
	if id := cmd.String("symbology"); id != "" {
		if sym, err = symbology.Parse(id); err != nil {
			return err
		}
	}

	r, err := internal.NewRenderer(cfg, cliLogger(cfg))
	if err != nil {
		return err
	}
	png, err := r.Render(ctx, data, sym)
	if err != nil {
		return fmt.Errorf("cannot display this code: %w", err)
	}

	out := cmd.String("out")
	if out == "" || out == "-" {
		_, err = os.Stdout.Write(png)
		return err
	}
	return os.WriteFile(out, png, 0o644)
}

func classify(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("classify: exactly one payload argument is required")
	}
	return printJSON(os.Stdout, payload.Classify(cmd.Args().First()))
}

func listSymbologies(_ context.Context, cmd *cli.Command) error {
	catalog := symbology.Catalog()
	if cmd.Bool("json") {
		return printJSON(os.Stdout, catalog)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCAPABILITY\tCATEGORY")
	for _, info := range catalog {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.ID, info.Name, info.Capability, info.Category)
	}
	return tw.Flush()
}

func seed(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	lib, err := internal.OpenLibrary(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer lib.Close()

	records, err := lib.Service.Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	// Let remote renders land before the database closes.
	lib.Service.Wait()

	for _, r := range records {
		fmt.Printf("%s\t%s\t%s\n", r.ID, r.DisplayName, r.Symbology)
	}
	logger.Info("seeded sample records", slog.Int("count", len(records)))
	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)

	var dst storage.Provider
	switch cfg.Export.Target {
	case internal.ExportTargetS3:
		dst, err = storage.NewS3(ctx, cfg.Export.S3.Options())
	default:
		dst, err = storage.NewFS(cfg.Export.Path)
	}
	if err != nil {
		return fmt.Errorf("export target: %w", err)
	}

	opts := exporter.Options{
		Dir:       cmd.String("dir"),
		Favorites: cmd.Bool("favorites"),
	}
	if id := cmd.String("symbology"); id != "" {
		if opts.Symbology, err = symbology.Parse(id); err != nil {
			return err
		}
	}

	lib, err := internal.OpenLibrary(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer lib.Close()

	m, err := exporter.New(lib.DB, dst, logger).Export(ctx, opts)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	logger.Info("export finished",
		slog.String("target", cfg.Export.Target),
		slog.Int("written", m.Written),
		slog.Int("skipped", m.Skipped))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cmd := &cli.Command{
		Name:    "codestash",
		Usage:   "Personal library of barcodes and QR codes with on-device and remote rendering",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the library to MCP clients over stdio",
				Action: serveMCP,
			},
			{
				Name:      "render",
				Usage:     "Render a payload to PNG",
				ArgsUsage: "<payload>",
				Action:    renderCode,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "symbology", Aliases: []string{"s"}, Usage: "Symbology identifier (default from config)"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, - for stdout", Value: "-"},
				},
			},
			{
				Name:      "classify",
				Usage:     "Print how a payload is interpreted",
				ArgsUsage: "<payload>",
				Action:    classify,
			},
			{
				Name:   "symbologies",
				Usage:  "List known symbologies",
				Action: listSymbologies,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
				},
			},
			{
				Name:   "seed",
				Usage:  "Insert the sample records",
				Action: seed,
			},
			{
				Name:   "export",
				Usage:  "Write cached images and a manifest to the export target",
				Action: export,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "Directory below the export target", Value: "codes"},
					&cli.BoolFlag{Name: "favorites", Usage: "Only export favorites"},
					&cli.StringFlag{Name: "symbology", Usage: "Only export this symbology"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
