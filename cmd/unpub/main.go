package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yuanying/unpub/internal/catalog"
	"github.com/yuanying/unpub/internal/config"
	"github.com/yuanying/unpub/internal/converter"
	"github.com/yuanying/unpub/internal/importer"
)

const version = "0.1.0"

// app holds what a subcommand needs once flags and config are resolved.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	importer *importer.Importer
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpub",
		Short: "Unpack EPUB books into a browsable HTML library",
		Long: `unpub extracts EPUB archives and turns each one into a single book.html
with its images and fonts, a generated style.css and a cover thumbnail.
Every imported book is recorded in books.yaml in the library directory.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file path (default: $XDG_CONFIG_HOME/unpub/unpub.yaml)")
	flags.String("library", "", "Library directory (overrides library_dir)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newImportCmd(), newAddCmd(), newListCmd(), newExportCmd(), newStyleCmd())
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <src-dir>",
		Short: "Import every EPUB under a directory, replacing the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			books, err := a.importer.ImportAll(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d books into %s\n", len(books), a.cfg.LibraryDir)
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.epub>...",
		Short: "Add EPUB files to the library; each file succeeds or fails on its own",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			results, err := a.importer.ImportFiles(cmd.Context(), args)
			failed := 0
			for _, r := range results {
				fmt.Fprintln(cmd.OutOrStdout(), r.Message())
				if r.Err != nil {
					failed++
				}
			}
			if err != nil {
				return fmt.Errorf("failed to save catalog: %w", err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to import", failed, len(results))
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the books in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			sortKey, _ := cmd.Flags().GetString("sort")
			books := a.importer.Catalog().Snapshot()
			if err := catalog.SortBy(books, sortKey); err != nil {
				return fmt.Errorf("invalid --sort: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tDATE")
			for _, b := range books {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.Date)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("sort", "title", "Sort by: title, author")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.parquet>",
		Short: "Export the catalog as a parquet file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			books := a.importer.Catalog().Snapshot()
			if err := catalog.WriteParquet(f, books); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", args[0], err)
			}
			a.logger.Info("exported catalog", "path", args[0], "books", len(books))
			return nil
		},
	}
}

func newStyleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "style",
		Short: "Print the stylesheet written next to each book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), a.cfg.Style.Stylesheet())
			return err
		},
	}
}

// loadApp resolves persistent flags, the config file and the catalog.
func loadApp(cmd *cobra.Command) (*app, error) {
	logger, err := readLogger(cmd)
	if err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if library, _ := cmd.Flags().GetString("library"); library != "" {
		cfg.LibraryDir = library
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --library: %w", err)
		}
	}
	logger.Debug("loaded config", "path", path, "library", cfg.LibraryDir, "workers", cfg.Workers)

	cat, err := catalog.Load(cfg.LibraryDir)
	if err != nil {
		return nil, err
	}

	processor := converter.NewProcessor(converter.ProcessOptions{
		Style:          cfg.Style,
		ThumbnailWidth: cfg.ThumbnailWidth,
		Logger:         logger,
	})
	imp := importer.New(importer.Options{
		LibraryDir: cfg.LibraryDir,
		StagingDir: cfg.StagingDir,
		Workers:    cfg.Workers,
		Processor:  processor,
		Logger:     logger,
	}, cat)

	return &app{cfg: cfg, logger: logger, importer: imp}, nil
}

func readLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level = strings.ToLower(level)
	if _, ok := logLevels[level]; !ok {
		return nil, fmt.Errorf("invalid --log-level %q: must be debug, info, warn or error", level)
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid --log-format %q: must be text or json", format)
	}
	if verbose {
		level = "debug"
	}
	return buildLogger(cmd.ErrOrStderr(), level, format), nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
