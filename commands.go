package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/pfsparse/internal/parser"
	"github.com/ossyrian/pfsparse/internal/pfs"
)

var listCmd = &cobra.Command{
	Use:   "list [ext]",
	Short: "List archive entries, optionally only those ending in ext",
	Args:  cobra.MaximumNArgs(1),
	RunE:  list,
}

var extractCmd = &cobra.Command{
	Use:   "extract [ext]",
	Short: "Write archive entries to a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  extract,
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Build an archive from every regular file in the input directory",
	Args:  cobra.NoArgs,
	RunE:  pack,
}

func init() {
	extractCmd.Flags().StringP("dir", "d", "", "directory to extract entries to (required)")
	extractCmd.MarkFlagRequired("dir")
	viper.BindPFlag("extract_dir", extractCmd.Flags().Lookup("dir"))

	packCmd.Flags().Bool("versioned", false, "stamp the archive with a dated footer")
	viper.BindPFlag("versioned", packCmd.Flags().Lookup("versioned"))
}

func extArg(args []string) string {
	if len(args) == 0 {
		return "*"
	}
	return args[0]
}

// openArchive opens the configured input archive with the configured options.
func openArchive() (*pfs.Archive, error) {
	opts, err := parser.ArchiveOptions(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	archive, err := pfs.Open(cfg.InputFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return archive, nil
}

func list(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	for _, name := range archive.List(extArg(args)) {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func extract(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	archive, err := openArchive()
	if err != nil {
		return err
	}
	defer archive.Close()

	names := archive.List(extArg(args))
	slog.Info("extracting", "input", cfg.InputFile, "dir", cfg.ExtractDir, "count", len(names))

	if cfg.DryRun {
		return nil
	}
	if err := os.MkdirAll(cfg.ExtractDir, 0o755); err != nil {
		return fmt.Errorf("failed to create extract directory: %w", err)
	}

	_, err = extractEntries(archive, names, cfg.ExtractDir)
	return err
}

// extractEntries writes each named entry into dir and returns the names written.
// Names that would land outside dir or in a subdirectory are skipped.
func extractEntries(archive *pfs.Archive, names []string, dir string) ([]string, error) {
	var written []string
	for _, name := range names {
		if !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
			slog.Warn("skipping entry with unsafe name", "entry", name)
			continue
		}
		data, err := archive.Get(name)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}
		slog.Debug("extracted entry", "entry", name, "size", len(data))
		written = append(written, name)
	}
	return written, nil
}

func pack(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.OutputFile == "" {
		return fmt.Errorf("pack needs an output archive path")
	}

	opts, err := parser.ArchiveOptions(cfg, slog.Default())
	if err != nil {
		return err
	}
	archive := pfs.New(opts...)

	entries, err := godirwalk.ReadDirents(cfg.InputFile, nil)
	if err != nil {
		return fmt.Errorf("failed to read input directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsRegular() {
			slog.Debug("skipping non-regular file", "name", e.Name())
			continue
		}
		data, err := os.ReadFile(filepath.Join(cfg.InputFile, e.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		if err := archive.Set(e.Name(), data); err != nil {
			return err
		}
	}

	slog.Info("packing", "input", cfg.InputFile, "output", cfg.OutputFile, "count", archive.Len())

	if cfg.DryRun {
		return nil
	}
	return archive.Save(cfg.OutputFile)
}
