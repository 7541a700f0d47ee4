// Package command implements the text console commands that drive exports.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/atlas-export/internal/discovery"
	"github.com/Faultbox/atlas-export/internal/export"
	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// Command errors.
var (
	ErrUsage             = errors.New("invalid command usage")
	ErrUnterminatedQuote = errors.New("unterminated quote")
	ErrExportFailed      = errors.New("export failed")
)

// Finder resolves atlases for the commands.
type Finder interface {
	FindAtlases(scope discovery.Scope) ([]atlas.Atlas, error)
	FindAtlas(scope discovery.Scope, name string) (atlas.Atlas, error)
}

// Env is what the commands operate on.
type Env struct {
	Exporter    *export.Exporter
	Finder      Finder
	Scope       discovery.Scope
	Destination string // Used when a command has no destination argument
	Out         io.Writer
	Log         *zap.Logger
}

// Command is a single console command.
type Command struct {
	Name  string
	Usage string
	Help  string
	Run   func(ctx context.Context, env *Env, args []string) error
}

// Registry dispatches command lines by their first token.
type Registry struct {
	env      Env
	commands map[string]Command
}

// NewRegistry creates a registry with the built-in commands.
func NewRegistry(env Env) *Registry {
	if env.Log == nil {
		env.Log = zap.NewNop()
	}
	if env.Out == nil {
		env.Out = io.Discard
	}
	r := &Registry{env: env, commands: make(map[string]Command)}
	r.Register(Command{
		Name:  "ExportAllAtlas",
		Usage: "ExportAllAtlas [destination]",
		Help:  "Export every atlas in scope",
		Run:   exportAll,
	})
	r.Register(Command{
		Name:  "ExportAtlas",
		Usage: "ExportAtlas <name> [destination]",
		Help:  "Export a single atlas by name",
		Run:   exportOne,
	})
	r.Register(Command{
		Name:  "ListAtlases",
		Usage: "ListAtlases",
		Help:  "List the atlases in scope",
		Run:   listAtlases,
	})
	return r
}

// Register adds or replaces a command.
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name] = cmd
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	cmds := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}

// Exec runs line. handled is false when the first token names no command.
// A command that ran but failed reports handled with a non-nil error.
func (r *Registry) Exec(ctx context.Context, line string) (handled bool, err error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return false, err
	}
	if len(tokens) == 0 {
		return false, nil
	}

	cmd, ok := r.commands[tokens[0]]
	if !ok {
		return false, nil
	}

	r.env.Log.Debug("executing command", zap.String("command", cmd.Name), zap.Strings("args", tokens[1:]))
	if err := cmd.Run(ctx, &r.env, tokens[1:]); err != nil {
		return true, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return true, nil
}

// Tokenize splits line on whitespace. Double quotes group a token and are
// removed.
func Tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
		started bool
	)

	for _, c := range line {
		switch {
		case c == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			if started {
				tokens = append(tokens, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(c)
			started = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("%w in %q", ErrUnterminatedQuote, line)
	}
	if started {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

func destination(env *Env, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return env.Destination
}

func exportAll(ctx context.Context, env *Env, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("%w: ExportAllAtlas [destination]", ErrUsage)
	}
	batch, err := env.Exporter.ExportScope(ctx, env.Finder, env.Scope, destination(env, args))
	if err != nil {
		return err
	}
	Report(env.Out, batch)
	if !batch.OK() {
		return fmt.Errorf("%w: %w", ErrExportFailed, batch.Err())
	}
	return nil
}

func exportOne(ctx context.Context, env *Env, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: ExportAtlas <name> [destination]", ErrUsage)
	}
	a, err := env.Finder.FindAtlas(env.Scope, args[0])
	if err != nil {
		return err
	}
	batch := env.Exporter.ExportAll(ctx, []atlas.Atlas{a}, destination(env, args[1:]))
	Report(env.Out, batch)
	if !batch.OK() {
		return fmt.Errorf("%w: %w", ErrExportFailed, batch.Err())
	}
	return nil
}

func listAtlases(_ context.Context, env *Env, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: ListAtlases", ErrUsage)
	}
	atlases, err := env.Finder.FindAtlases(env.Scope)
	if err != nil {
		return err
	}
	for _, a := range atlases {
		fmt.Fprintf(env.Out, "%-32s %4d regions  %s\n", a.Name, len(a.Regions), a.Texture)
	}
	fmt.Fprintf(env.Out, "\nTotal: %d atlases\n", len(atlases))
	return nil
}

// Report prints a summary of batch followed by every failed item.
func Report(w io.Writer, batch export.BatchResult) {
	ok, failed := batch.Counts()
	for _, a := range batch.Atlases {
		status := "ok"
		if !a.OK() {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%-6s %-32s %d/%d regions\n", status, a.Atlas, a.Exported(), len(a.Regions))
	}
	fmt.Fprintf(w, "\nExported %d atlases, %d failed\n", ok, failed)

	if failed == 0 {
		return
	}
	fmt.Fprintln(w, "\nFailures:")
	for _, a := range batch.Atlases {
		if a.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", a.Atlas, a.Err)
			continue
		}
		for _, item := range a.Failed() {
			fmt.Fprintf(w, "  %s/%s: %v\n", a.Atlas, item.Name, item.Err)
		}
	}
}
