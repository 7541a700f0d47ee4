// atlasexport unpacks sprite sheet atlases into one PNG per sprite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/atlas-export/internal/command"
	"github.com/Faultbox/atlas-export/internal/config"
	"github.com/Faultbox/atlas-export/internal/export"
	"github.com/Faultbox/atlas-export/internal/logger"
	"github.com/Faultbox/atlas-export/internal/source"
	"github.com/Faultbox/atlas-export/internal/watch"
	"github.com/Faultbox/atlas-export/pkg/manifest"
)

var errBatchFailed = errors.New("some atlases failed to export")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	name := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var err error
	switch name {
	case "export", "x":
		err = cmdExport(ctx, args)
	case "list", "ls":
		err = cmdList(args)
	case "info":
		err = cmdInfo(args)
	case "exec":
		err = cmdExec(ctx, args)
	case "watch":
		err = cmdWatch(ctx, args)
	case "pack":
		err = cmdPack(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", name)
		printUsage()
		stop()
		os.Exit(1)
	}

	stop()
	logger.Sync()
	if err != nil {
		if !errors.Is(err, errBatchFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`atlasexport - sprite sheet atlas unpacker

Usage:
  atlasexport <command> [options] [source...]

Sources are directories or GRF archives. Later sources override files of
earlier ones. Without a source, source.paths from the config file is used.

Commands:
  export [-o dir] [-scope prefix] [-flat] <source>  Export every atlas in scope
  list <source>                                     List atlases in scope
  info <source>                                     Show source and manifest statistics
  exec <source> "<command line>"                    Run a console command
  watch <source>                                    Export again whenever sources change
  pack <out.grf> <source...>                        Merge sources into one GRF archive

Common options:
  -config file     Config file (default ./atlasexport.yaml)
  -formats list    Manifest formats: spine,texturepacker,bmfont,yaml,toml
  -debug           Enable debug logging
  -log file        Also write logs to a rotated file

Console commands:
  ExportAllAtlas [destination]
  ExportAtlas <name> [destination]
  ListAtlases

Examples:
  atlasexport export -o ./Saved/Atlases ./assets
  atlasexport export -scope game/ui -flat data.grf mods/
  atlasexport exec ./assets "ExportAtlas hero ./out"
  atlasexport watch -o ./out ./assets
  atlasexport pack merged.grf data.grf mods/`)
}

// parse registers the shared flags on a new FlagSet and parses args.
func parse(name string, args []string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)
	flags.Sources = fs.Args()
	return fs, flags
}

func cmdExport(ctx context.Context, args []string) error {
	_, flags := parse("export", args)

	p, err := open(flags)
	if err != nil {
		return err
	}
	defer p.Close()

	batch, err := p.exporter.ExportScope(ctx, p.finder, p.scope, p.cfg.Export.Destination)
	if err != nil {
		return err
	}
	return finish(os.Stdout, batch)
}

// finish prints the batch summary and reports whether anything failed.
func finish(w io.Writer, batch export.BatchResult) error {
	command.Report(w, batch)
	if batch.OK() {
		return nil
	}
	ok, failed := batch.Counts()
	logger.Warn("export finished with failures",
		zap.String("run", batch.RunID), zap.Int("ok", ok), zap.Int("failed", failed))
	return errBatchFailed
}

func cmdList(args []string) error {
	_, flags := parse("list", args)

	p, err := open(flags)
	if err != nil {
		return err
	}
	defer p.Close()

	_, err = p.registry(os.Stdout).Exec(context.Background(), "ListAtlases")
	return err
}

func cmdInfo(args []string) error {
	_, flags := parse("info", args)

	p, err := open(flags)
	if err != nil {
		return err
	}
	defer p.Close()

	files := p.src.List()
	extCount := make(map[string]int)
	formatCount := make(map[manifest.Format]int)
	for _, f := range files {
		if format := manifest.DetectFormat(f); format != manifest.FormatUnknown {
			formatCount[format]++
		}
		ext := strings.ToLower(path.Ext(f))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
	}

	fmt.Printf("Sources: %s\n", p.src)
	fmt.Printf("Files:   %d\n", len(files))
	fmt.Printf("Scope:   %q (recursive: %v)\n", p.scope.Root, p.scope.Recursive)
	fmt.Println()

	fmt.Println("Manifests by format:")
	for _, format := range manifest.AllFormats() {
		fmt.Printf("  %-14s %d\n", format, formatCount[format])
	}
	fmt.Println()

	type extStat struct {
		ext   string
		count int
	}
	var stats []extStat
	for ext, count := range extCount {
		stats = append(stats, extStat{ext, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].count != stats[j].count {
			return stats[i].count > stats[j].count
		}
		return stats[i].ext < stats[j].ext
	})
	fmt.Println("Files by type:")
	for _, s := range stats {
		fmt.Printf("  %-10s %d\n", s.ext, s.count)
	}
	fmt.Println()

	atlases, err := p.finder.FindAtlases(p.scope)
	if err != nil {
		return err
	}
	regions := 0
	for _, a := range atlases {
		regions += len(a.Regions)
	}
	fmt.Printf("Atlases in scope: %d (%d regions)\n", len(atlases), regions)
	return nil
}

func cmdExec(ctx context.Context, args []string) error {
	fs, flags := parse("exec", args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, `Usage: atlasexport exec [source...] "<command line>"`)
		os.Exit(1)
	}

	// The command line is the last argument, everything before it a source.
	line := fs.Arg(fs.NArg() - 1)
	flags.Sources = fs.Args()[:fs.NArg()-1]

	p, err := open(flags)
	if err != nil {
		return err
	}
	defer p.Close()

	reg := p.registry(os.Stdout)
	handled, err := reg.Exec(ctx, line)
	if !handled && err == nil {
		fmt.Fprintf(os.Stderr, "Unknown console command: %s\n\nAvailable commands:\n", line)
		for _, cmd := range reg.Commands() {
			fmt.Fprintf(os.Stderr, "  %-36s %s\n", cmd.Usage, cmd.Help)
		}
		p.Close()
		os.Exit(1)
	}
	if errors.Is(err, command.ErrExportFailed) {
		return errBatchFailed
	}
	return err
}

func cmdWatch(ctx context.Context, args []string) error {
	_, flags := parse("watch", args)

	cfg, err := load(flags)
	if err != nil {
		return err
	}

	w, err := watch.New(cfg.Source.Paths, cfg.Watch.Debounce, logger.Log)
	if err != nil {
		return fmt.Errorf("watching sources: %w", err)
	}
	w.Ignore(cfg.Export.Destination)

	// Every run reopens the sources so new and removed files are seen.
	run := func(ctx context.Context) {
		p, err := build(cfg)
		if err != nil {
			logger.Error("failed to open sources", zap.Error(err))
			return
		}
		defer p.Close()

		batch, err := p.exporter.ExportScope(ctx, p.finder, p.scope, cfg.Export.Destination)
		if err != nil {
			logger.Error("export failed", zap.Error(err))
			return
		}
		finish(os.Stdout, batch)
	}

	run(ctx)
	logger.Info("watching for changes", zap.Strings("sources", cfg.Source.Paths))
	return w.Run(ctx, run)
}

func cmdPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: atlasexport pack <out.grf> <source...>")
		os.Exit(1)
	}
	out := fs.Arg(0)

	src, err := source.OpenAll(fs.Args()[1:])
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	n, err := source.Pack(src, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(out)
		return err
	}
	fmt.Printf("Packed %d files into %s\n", n, out)
	return nil
}
