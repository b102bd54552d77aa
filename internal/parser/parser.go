package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/ossyrian/pfsparse/internal/codec"
	"github.com/ossyrian/pfsparse/internal/config"
	"github.com/ossyrian/pfsparse/internal/pfs"
	zonetypes "github.com/ossyrian/pfsparse/internal/types"
	"github.com/ossyrian/pfsparse/internal/wld"
)

// WorldExt is the suffix of fragment graph entries inside a zone archive.
const WorldExt = ".wld"

// ZoneReader decodes the WLD entries of an open archive.
type ZoneReader struct {
	archive *pfs.Archive
	config  *config.Config
	logger  *slog.Logger
}

// NewZoneReader returns a ZoneReader over an open archive.
func NewZoneReader(archive *pfs.Archive, cfg *config.Config, logger *slog.Logger) *ZoneReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ZoneReader{
		archive: archive,
		config:  cfg,
		logger:  logger,
	}
}

// Entries returns the WLD entries to decode: the configured entry, or every .wld entry.
func (r *ZoneReader) Entries() ([]string, error) {
	if r.config.Entry != "" {
		if !r.archive.Exists(r.config.Entry) {
			return nil, fmt.Errorf("%w: %s", pfs.ErrNotFound, r.config.Entry)
		}
		return []string{strings.ToLower(r.config.Entry)}, nil
	}
	return r.archive.List(WorldExt), nil
}

// ReadWorld decodes one WLD entry.
func (r *ZoneReader) ReadWorld(name string) (*wld.World, error) {
	data, err := r.archive.Get(name)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With("entry", name)
	logger.Debug("decoding WLD", "size", len(data))

	w, err := wld.NewDecoder(data, logger).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	logger.Info("decoded WLD",
		"legacy", w.Legacy(),
		"fragment_count", len(w.Fragments),
	)
	return w, nil
}

// Report decodes every selected entry and summarizes the archive.
// Entries are independent: one that fails to decode is reported with its error
// and does not stop the others.
func (r *ZoneReader) Report(ctx context.Context) (*zonetypes.Report, error) {
	entries, err := r.Entries()
	if err != nil {
		return nil, err
	}

	report := &zonetypes.Report{
		Archive: r.config.InputFile,
		Version: r.archive.Version(),
		Worlds:  make([]zonetypes.World, len(entries)),
	}
	if f, ok := r.archive.Footer(); ok {
		report.Footer = &zonetypes.Footer{Tag: string(f.Tag[:]), Date: f.Date}
	}
	for _, name := range r.archive.List("*") {
		data, err := r.archive.Get(name)
		if err != nil {
			return nil, err
		}
		report.Files = append(report.Files, zonetypes.File{
			Name:   name,
			Size:   len(data),
			Digest: digest.FromBytes(data).String(),
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	if r.config.Workers > 0 {
		g.SetLimit(r.config.Workers)
	}
	for i, name := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w, err := r.ReadWorld(name)
			if err != nil {
				r.logger.Error("failed to decode entry", "entry", name, "error", err)
				report.Worlds[i] = zonetypes.World{Entry: name, Error: err.Error()}
				return nil
			}
			report.Worlds[i] = Summarize(name, w)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return report, nil
}

// Summarize counts what a decoded world contains.
func Summarize(entry string, w *wld.World) zonetypes.World {
	s := zonetypes.World{
		Entry:     entry,
		Encoding:  zonetypes.EncodingCurrent,
		Kinds:     make(map[string]int),
		Fragments: len(w.Fragments),
	}
	if w.Legacy() {
		s.Encoding = zonetypes.EncodingLegacy
	}

	models := make(map[string]struct{})
	regionNodes := make(map[string]int)
	var (
		regions []string
		tree    *wld.BSPTree
	)

	for _, f := range w.Fragments {
		s.Kinds[f.Kind.String()]++

		switch p := f.Payload.(type) {
		case *wld.Texture:
			s.Textures = append(s.Textures, p.Names...)
		case *wld.Mesh:
			s.Meshes++
			s.Vertices += len(p.Vertices)
			s.Polygons += len(p.Polygons)
		case *wld.Placeable:
			s.Placeables++
			if p.ModelName != "" {
				models[p.ModelName] = struct{}{}
			}
		case *wld.Light:
			if p.Instance {
				s.Lights++
			}
		case *wld.BSPTree:
			tree = p
		case *wld.BSPRegion:
			if p.Name == "" {
				break
			}
			if !slices.Contains(regions, p.Name) {
				regions = append(regions, p.Name)
			}
			// a node shared by several regions counts once for each of them
			if tree != nil {
				regionNodes[p.Name] += claimedNodes(tree, p.Regions)
			}
		}
	}

	for m := range models {
		s.Models = append(s.Models, m)
	}
	slices.Sort(s.Models)
	for _, name := range regions {
		s.Regions = append(s.Regions, zonetypes.Region{Name: name, Nodes: regionNodes[name]})
	}
	return s
}

// claimedNodes counts the tree nodes whose 1-based region id is one of the 0-based ids.
func claimedNodes(tree *wld.BSPTree, ids []uint32) int {
	n := 0
	for _, node := range tree.Nodes {
		if node.Region != 0 && slices.Contains(ids, node.Region-1) {
			n++
		}
	}
	return n
}

// ArchiveOptions maps configuration onto archive options.
func ArchiveOptions(cfg *config.Config, logger *slog.Logger) ([]pfs.Option, error) {
	format, err := codec.ParseFormat(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return []pfs.Option{
		pfs.WithCodec(codec.New(format)),
		pfs.WithLogger(logger),
		pfs.WithConcurrency(cfg.Workers),
		pfs.WithVersioned(cfg.Versioned),
	}, nil
}

// EncodeReport writes report to w as indented JSON.
func EncodeReport(w io.Writer, report *zonetypes.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteReport writes report as indented JSON to path, creating the parent directory.
func WriteReport(path string, report *zonetypes.Report) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := EncodeReport(f, report); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Parse opens the configured archive, decodes its WLD entries and writes the report
// unless this is a dry run.
func Parse(ctx context.Context, cfg *config.Config) (*zonetypes.Report, error) {
	logger := slog.With(
		"file", cfg.InputFile,
	)

	logger.Info("starting")

	opts, err := ArchiveOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	archive, err := pfs.Open(cfg.InputFile, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	logger.Info("opened archive",
		"entry_count", archive.Len(),
		"version", archive.Version(),
	)

	report, err := NewZoneReader(archive, cfg, logger).Report(ctx)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, w := range report.Worlds {
		if w.Error != "" {
			failed++
		}
	}
	logger.Info("decoded zone",
		"world_count", len(report.Worlds),
		"failed", failed,
	)

	if cfg.DryRun || cfg.OutputFile == "" {
		return report, nil
	}
	if err := WriteReport(cfg.OutputFile, report); err != nil {
		return nil, err
	}
	logger.Info("wrote report", "output", cfg.OutputFile)
	return report, nil
}
