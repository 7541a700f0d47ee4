package config

import "flag"

// Flags holds command-line overrides registered on a subcommand's FlagSet.
type Flags struct {
	Config  *string
	Debug   *bool
	LogFile *string
	Output  *string
	Scope   *string
	Flat    *bool
	Formats *string

	// Sources are the positional arguments, set by the caller after parsing.
	Sources []string
}

// RegisterFlags adds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		Config:  fs.String("config", "", "Path to config file"),
		Debug:   fs.Bool("debug", false, "Enable debug logging"),
		LogFile: fs.String("log", "", "Write logs to file"),
		Output:  fs.String("o", "", "Export destination directory"),
		Scope:   fs.String("scope", "", "Only use manifests below this path prefix"),
		Flat:    fs.Bool("flat", false, "Do not descend into subdirectories of the scope"),
		Formats: fs.String("formats", "", "Comma-separated manifest formats (spine,texturepacker,bmfont,yaml,toml)"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	if f == nil || f.Config == nil {
		return ""
	}
	return *f.Config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug != nil && *f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != nil && *f.LogFile != "" {
		cfg.Logging.LogFile = *f.LogFile
	}
	if f.Output != nil && *f.Output != "" {
		cfg.Export.Destination = *f.Output
	}
	if f.Scope != nil && *f.Scope != "" {
		cfg.Source.Root = *f.Scope
	}
	if f.Flat != nil && *f.Flat {
		cfg.Source.Recursive = false
	}
	if f.Formats != nil && *f.Formats != "" {
		cfg.Source.Formats = splitList(*f.Formats)
	}
	if len(f.Sources) > 0 {
		cfg.Source.Paths = f.Sources
	}
}
