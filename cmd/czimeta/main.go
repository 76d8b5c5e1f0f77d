// czimeta prints the normalized metadata of CZI images.
//
// Usage:
//
//	czimeta [options] <source> [<source> ...]
//
// A source is a .czi file, an XML metadata document (optionally gzip or
// zstd compressed), or an s3://bucket/key URL of either.
//
// Options:
//
//	-j, --json              Print the metadata as JSON.
//	-p, --planetable <path> Export the plane table to <path>. A .db path is a
//	                        SQLite database holding all sources; otherwise a
//	                        ';'-separated CSV file for a single source.
//	-v, --verbose           Log default substitutions and lookups to stderr.
//	-h, --help              Show this help message.
//	--version               Show version information.
//
// S3 sources are configured through CZIMETA_S3_REGION, CZIMETA_S3_ENDPOINT,
// CZIMETA_S3_PATH_STYLE and the standard AWS credential variables.
//
// Exit codes:
//
//	0: All sources read
//	1: One or more sources could not be read
//	2: Usage error
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sebi06/czimetadata-tools/czimd"
	"github.com/sebi06/czimetadata-tools/czimeta"
	"github.com/sebi06/czimetadata-tools/planetable"
)

const version = "1.0.0"

type config struct {
	json       bool
	planetable string
	verbose    bool
	sources    []string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, code, ok := parseArgs(args, stdout, stderr)
	if !ok {
		return code
	}

	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	loaderOpts := []czimd.LoaderOption{czimd.WithLoaderLogger(log)}
	if needsS3(cfg.sources) {
		client, err := czimd.NewS3Client(ctx, czimd.S3ConfigFromEnv())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		loaderOpts = append(loaderOpts, czimd.WithS3(client))
	}
	loader := czimd.NewLoader(loaderOpts...)

	var store *planetable.SQLStore
	failed := 0
	var reports []*report
	for _, src := range cfg.sources {
		md, err := czimeta.ReadMetadata(ctx, src, czimeta.WithLoader(loader), czimeta.WithLogger(log))
		if err != nil {
			fmt.Fprintf(stderr, "%s: error: %v\n", src, err)
			failed++
			continue
		}
		reports = append(reports, newReport(md))

		if cfg.planetable != "" {
			if err := exportPlaneTable(ctx, loader, src, cfg.planetable, &store); err != nil {
				fmt.Fprintf(stderr, "%s: plane table: %v\n", src, err)
				failed++
			}
		}
	}
	if store != nil {
		store.Close()
	}

	if cfg.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	} else {
		for _, r := range reports {
			printReport(stdout, r)
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func parseArgs(args []string, stdout, stderr io.Writer) (cfg config, code int, ok bool) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-j", "--json":
			cfg.json = true
		case "-v", "--verbose":
			cfg.verbose = true
		case "-p", "--planetable":
			if i+1 >= len(args) {
				fmt.Fprintf(stderr, "Option %s requires a path\n", arg)
				return cfg, 2, false
			}
			i++
			cfg.planetable = args[i]
		case "-h", "--help":
			printUsage(stdout)
			return cfg, 0, false
		case "--version":
			fmt.Fprintf(stdout, "czimeta version %s\n", version)
			return cfg, 0, false
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(stderr, "Unknown option: %s\n", arg)
				printUsage(stderr)
				return cfg, 2, false
			}
			cfg.sources = append(cfg.sources, arg)
		}
	}

	if len(cfg.sources) == 0 {
		fmt.Fprintln(stderr, "Error: No input sources specified")
		printUsage(stderr)
		return cfg, 2, false
	}
	if cfg.planetable != "" && !isSQLite(cfg.planetable) && len(cfg.sources) > 1 {
		fmt.Fprintln(stderr, "Error: CSV plane table export takes a single source; use a .db path for several")
		return cfg, 2, false
	}
	return cfg, 0, true
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: czimeta [options] <source> [<source> ...]

Print the normalized channel, sample and instrument metadata of CZI images.

Options:
  -j, --json               Print the metadata as JSON.
  -p, --planetable <path>  Export the plane table (.db for SQLite, else CSV).
  -v, --verbose            Log default substitutions and lookups.
  -h, --help               Show this help message.
  --version                Show version information.

Examples:
  czimeta plate.czi                       Print metadata of a file
  czimeta --json s3://lab/run1/plate.czi  Read from S3 and print JSON
  czimeta -p planes.db *.czi              Collect plane tables in SQLite`)
}

func needsS3(sources []string) bool {
	for _, s := range sources {
		if strings.HasPrefix(s, "s3://") {
			return true
		}
	}
	return false
}

func isSQLite(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

func exportPlaneTable(ctx context.Context, loader *czimd.Loader, src, dst string, store **planetable.SQLStore) error {
	f, err := loader.OpenContainer(ctx, src)
	if err != nil {
		return err
	}
	tbl, err := planetable.FromCZI(f)
	f.Close()
	if err != nil {
		return err
	}

	if !isSQLite(dst) {
		out, err := os.Create(dst)
		if err != nil {
			return err
		}
		if err := planetable.WriteCSV(out, tbl); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}

	if *store == nil {
		s, err := planetable.OpenSQLite(dst, src)
		if err != nil {
			return err
		}
		*store = s
	}
	return (*store).Bind(src).Save(ctx, tbl)
}

// report is the printable form of one source's metadata.
type report struct {
	Source     string                `json:"source"`
	Channels   *czimeta.ChannelInfo  `json:"channels"`
	Sample     *czimeta.SampleInfo   `json:"sample"`
	Microscope *czimeta.Microscope   `json:"microscope"`
	Blocks     map[string]bool       `json:"blocks"`
	Defaults   map[czimeta.Field]int `json:"defaults,omitempty"`
}

func newReport(md *czimeta.Metadata) *report {
	a := md.Additional
	r := &report{
		Source:     md.Source,
		Channels:   md.Channels,
		Sample:     md.Sample,
		Microscope: md.Microscope,
		Blocks: map[string]bool{
			"Experiment":       a.Experiment != nil,
			"HardwareSetting":  a.HardwareSetting != nil,
			"CustomAttributes": a.CustomAttributes != nil,
			"DisplaySetting":   a.DisplaySetting != nil,
			"Layers":           a.Layers != nil,
		},
		Defaults: map[czimeta.Field]int{},
	}
	for _, s := range md.Channels.Defaulted {
		r.Defaults[s.Field]++
	}
	for _, s := range md.Sample.Defaulted {
		r.Defaults[s.Field]++
	}
	return r
}

func printReport(w io.Writer, r *report) {
	fmt.Fprintf(w, "%s\n", r.Source)

	m := r.Microscope
	if m.Name != "" || m.ID != "" {
		fmt.Fprintf(w, "  Microscope: %s (%s) %s\n", m.Name, m.ID, m.System)
	}

	ch := r.Channels
	fmt.Fprintf(w, "  Channels: %s\n", strings.Join(ch.Names, ", "))
	for i := range ch.Dyes {
		line := fmt.Sprintf("    [%d] %s color=%s limits=%g..%g gamma=%g",
			i, ch.Dyes[i], ch.Colors[i], ch.Limits[i].Low, ch.Limits[i].High, ch.Gamma[i])
		if i < len(ch.RenderSettings) {
			rs := ch.RenderSettings[i]
			line += fmt.Sprintf(" render=%s %g..%g %s", rs.TintingMode, rs.BlackPoint, rs.WhitePoint, rs.TintColor.Hex())
		}
		if pt, ok := ch.PixelTypes[i]; ok {
			line += " pixeltype=" + pt
		}
		fmt.Fprintln(w, line)
	}
	if len(ch.PixelTypes) > 0 {
		fmt.Fprintf(w, "  Consistent pixel types: %v\n", ch.ConsistentPixelTypes)
	}

	s := r.Sample
	if len(s.Indices) > 0 {
		fmt.Fprintf(w, "  Scenes: %d\n", len(s.Indices))
		for i := range s.Indices {
			fmt.Fprintf(w, "    %s index=%d col=%d row=%d stage=(%g, %g)\n",
				s.PositionNames[i], s.Indices[i], s.ColumnIDs[i], s.RowIDs[i], s.StageX[i], s.StageY[i])
		}
	}
	if len(s.WellCounter) > 0 {
		names := make([]string, 0, len(s.WellCounter))
		for n := range s.WellCounter {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(w, "  Wells in %s: %d\n", n, s.WellCounter[n])
		}
	}
	if s.Fallback != nil {
		fmt.Fprintf(w, "  Stage position: (%g, %g)\n", s.Fallback.X, s.Fallback.Y)
	}

	var present []string
	for _, name := range []string{"Experiment", "HardwareSetting", "CustomAttributes", "DisplaySetting", "Layers"} {
		if r.Blocks[name] {
			present = append(present, name)
		}
	}
	if len(present) > 0 {
		fmt.Fprintf(w, "  Blocks: %s\n", strings.Join(present, ", "))
	}

	if len(r.Defaults) > 0 {
		fields := make([]string, 0, len(r.Defaults))
		for f := range r.Defaults {
			fields = append(fields, string(f))
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(w, "  Defaulted %s: %d\n", f, r.Defaults[czimeta.Field(f)])
		}
	}
}
