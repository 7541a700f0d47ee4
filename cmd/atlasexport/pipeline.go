package main

import (
	"io"

	"go.uber.org/zap"

	"github.com/Faultbox/atlas-export/internal/command"
	"github.com/Faultbox/atlas-export/internal/config"
	"github.com/Faultbox/atlas-export/internal/discovery"
	"github.com/Faultbox/atlas-export/internal/export"
	"github.com/Faultbox/atlas-export/internal/logger"
	"github.com/Faultbox/atlas-export/internal/source"
	"github.com/Faultbox/atlas-export/internal/texture"
)

// pipeline wires the sources to the exporter for one run.
type pipeline struct {
	cfg      *config.Config
	src      *source.Overlay
	scope    discovery.Scope
	finder   *discovery.Finder
	exporter *export.Exporter
}

// load reads the config and initializes the global logger from it.
func load(flags *config.Flags) (*config.Config, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads the config and builds a pipeline from it.
func open(flags *config.Flags) (*pipeline, error) {
	cfg, err := load(flags)
	if err != nil {
		return nil, err
	}
	return build(cfg)
}

func build(cfg *config.Config) (*pipeline, error) {
	formats, err := cfg.Source.ManifestFormats()
	if err != nil {
		return nil, err
	}
	level, err := cfg.Export.CompressionLevel()
	if err != nil {
		return nil, err
	}

	src, err := source.OpenAll(cfg.Source.Paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened sources", zap.Stringer("sources", src), zap.Int("files", len(src.List())))

	exporter := export.New(texture.NewProvider(src), export.NewPNGWriter(level), logger.Log)
	exporter.WriteAtlasImage = cfg.Export.WriteAtlasImage

	return &pipeline{
		cfg: cfg,
		src: src,
		scope: discovery.Scope{
			Root:      cfg.Source.Root,
			Recursive: cfg.Source.Recursive,
			Formats:   formats,
		},
		finder:   discovery.NewFinder(src, logger.Log),
		exporter: exporter,
	}, nil
}

func (p *pipeline) registry(out io.Writer) *command.Registry {
	return command.NewRegistry(command.Env{
		Exporter:    p.exporter,
		Finder:      p.finder,
		Scope:       p.scope,
		Destination: p.cfg.Export.Destination,
		Out:         out,
		Log:         logger.Log,
	})
}

// Close releases the sources.
func (p *pipeline) Close() error {
	return p.src.Close()
}
