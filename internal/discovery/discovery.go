// Package discovery finds sprite sheet manifests in a source and resolves
// them into atlas descriptors.
package discovery

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/atlas-export/internal/source"
	"github.com/Faultbox/atlas-export/pkg/atlas"
	"github.com/Faultbox/atlas-export/pkg/manifest"
)

// Discovery errors.
var (
	ErrNoValidManifest = errors.New("no manifest could be parsed")
	ErrAtlasNotFound   = errors.New("atlas not found")
)

// Scope filters which manifests are considered.
type Scope struct {
	Root      string            // Slash-separated prefix, empty for the whole source
	Recursive bool              // Include manifests below Root's subdirectories
	Formats   []manifest.Format // Empty means every format
}

// Match reports whether the manifest at name falls inside the scope.
func (s Scope) Match(name string) bool {
	format := manifest.DetectFormat(name)
	if format == manifest.FormatUnknown || !s.allows(format) {
		return false
	}

	rest := name
	if root := strings.Trim(s.Root, "/"); root != "" {
		prefix := root + "/"
		if len(name) <= len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
			return false
		}
		rest = name[len(prefix):]
	}
	return s.Recursive || !strings.Contains(rest, "/")
}

func (s Scope) allows(f manifest.Format) bool {
	if len(s.Formats) == 0 {
		return true
	}
	for _, allowed := range s.Formats {
		if allowed == f {
			return true
		}
	}
	return false
}

// Finder resolves atlases from a Source.
type Finder struct {
	src source.Source
	log *zap.Logger
}

// NewFinder creates a finder. A nil logger discards output.
func NewFinder(src source.Source, log *zap.Logger) *Finder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Finder{src: src, log: log}
}

// FindAtlases returns one atlas per manifest page in scope, ordered by
// manifest path. Manifests that fail to parse are logged and skipped; an
// error is returned only when no candidate could be parsed at all.
func (f *Finder) FindAtlases(scope Scope) ([]atlas.Atlas, error) {
	var (
		atlases    []atlas.Atlas
		errs       error
		candidates int
		parsed     int
		names      = make(map[string]int)
	)

	for _, name := range f.src.List() {
		if !scope.Match(name) {
			continue
		}
		candidates++

		sheets, err := f.load(name)
		if err != nil {
			f.log.Warn("skipping manifest", zap.String("manifest", name), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		parsed++

		dir := path.Dir(name)
		for _, sheet := range sheets {
			texture := path.Join(dir, sheet.Texture)
			a := atlas.Atlas{
				Name:    uniqueName(names, textureStem(texture)),
				Texture: texture,
				Size:    atlas.Size{W: sheet.Width, H: sheet.Height},
				Regions: sheet.Regions,
			}
			if a.Name != textureStem(texture) {
				f.log.Warn("atlas name collision, renamed",
					zap.String("texture", texture), zap.String("atlas", a.Name))
			}
			f.log.Debug("found atlas",
				zap.String("atlas", a.Name),
				zap.String("manifest", name),
				zap.Int("regions", len(a.Regions)))
			atlases = append(atlases, a)
		}
	}

	if candidates > 0 && parsed == 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoValidManifest, errs)
	}
	return atlases, nil
}

// FindAtlas returns the atlas called name within scope.
func (f *Finder) FindAtlas(scope Scope, name string) (atlas.Atlas, error) {
	atlases, err := f.FindAtlases(scope)
	if err != nil {
		return atlas.Atlas{}, err
	}
	for _, a := range atlases {
		if a.Name == name {
			return a, nil
		}
	}
	return atlas.Atlas{}, fmt.Errorf("%w: %s", ErrAtlasNotFound, name)
}

func (f *Finder) load(name string) ([]manifest.Sheet, error) {
	data, err := f.src.Read(name)
	if err != nil {
		return nil, err
	}
	return manifest.Parse(manifest.DetectFormat(name), name, data)
}

// textureStem returns the texture file name without directory or extension.
func textureStem(texture string) string {
	base := path.Base(texture)
	return strings.TrimSuffix(base, path.Ext(base))
}

// uniqueName returns name, or name-N if it has been handed out before.
func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return fmt.Sprintf("%s-%d", name, n)
	}
	return name
}
