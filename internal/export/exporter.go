// Package export writes atlas textures and their sprite regions to disk.
package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/atlas-export/internal/discovery"
	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// Export errors.
var (
	ErrSourceUnavailable      = errors.New("atlas texture unavailable")
	ErrEncodeFailed           = errors.New("image encode failed")
	ErrWriteFailed            = errors.New("image write failed")
	ErrInvalidDestinationPath = errors.New("invalid destination path")
)

// TextureSource loads the base mip level of an atlas texture.
type TextureSource interface {
	BaseLevelPixels(texture string) (atlas.PixelBuffer, error)
}

// ImageWriter encodes a buffer and stores it at path.
type ImageWriter interface {
	WriteImage(buf atlas.PixelBuffer, path string) error
}

// Finder enumerates atlases within a scope.
type Finder interface {
	FindAtlases(scope discovery.Scope) ([]atlas.Atlas, error)
}

// Exporter unpacks atlases into one image per region.
type Exporter struct {
	textures TextureSource
	writer   ImageWriter
	log      *zap.Logger

	// WriteAtlasImage controls whether the full texture is written next to
	// the regions. Enabled by New.
	WriteAtlasImage bool
}

// New creates an exporter. A nil logger discards output.
func New(textures TextureSource, writer ImageWriter, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{
		textures:        textures,
		writer:          writer,
		log:             log,
		WriteAtlasImage: true,
	}
}

// ExportAtlas writes the atlas texture and every region of a to
// root/<atlas name>/. A failing region does not stop the others.
func (e *Exporter) ExportAtlas(a atlas.Atlas, root string) AtlasResult {
	return e.exportAtlas(e.log, a, root)
}

func (e *Exporter) exportAtlas(log *zap.Logger, a atlas.Atlas, root string) AtlasResult {
	log = log.With(zap.String("atlas", a.Name))
	res := AtlasResult{Atlas: a.Name}

	if err := ValidateName(a.Name); err != nil {
		res.Err = err
		log.Warn("skipping atlas", zap.Error(err))
		return res
	}
	res.Dir = filepath.Join(root, filepath.FromSlash(a.Name))

	pixels, err := e.textures.BaseLevelPixels(a.Texture)
	if err == nil {
		err = pixels.Validate()
	}
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, a.Texture, err)
		log.Warn("atlas texture unavailable", zap.String("texture", a.Texture), zap.Error(err))
		return res
	}

	if a.Size != (atlas.Size{}) && (a.Size.W != pixels.Width || a.Size.H != pixels.Height) {
		log.Warn("texture size differs from manifest",
			zap.String("texture", a.Texture),
			zap.Int("width", pixels.Width), zap.Int("height", pixels.Height),
			zap.Int("declaredWidth", a.Size.W), zap.Int("declaredHeight", a.Size.H))
	}

	stem := ""
	if e.WriteAtlasImage {
		stem = textureStem(a.Texture)
		res.Image = e.write(log, pixels, res.Dir, stem)
	}

	res.Regions = make([]ItemResult, 0, len(a.Regions))
	for _, r := range a.Regions {
		if stem != "" && strings.EqualFold(r.Name, stem) {
			err := fmt.Errorf("%w: region %q collides with the atlas image", ErrInvalidDestinationPath, r.Name)
			log.Warn("invalid destination path", zap.String("region", r.Name), zap.Error(err))
			res.Regions = append(res.Regions, ItemResult{Name: r.Name, Size: atlas.OutputSize(r), Err: err})
			continue
		}
		res.Regions = append(res.Regions, e.exportRegion(log, pixels, r, res.Dir))
	}

	log.Info("exported atlas",
		zap.Int("regions", len(a.Regions)),
		zap.Int("exported", res.Exported()),
		zap.Bool("ok", res.OK()))
	return res
}

func (e *Exporter) exportRegion(log *zap.Logger, pixels atlas.PixelBuffer, r atlas.Region, dir string) ItemResult {
	buf, err := atlas.Extract(pixels, r)
	if err != nil {
		log.Warn("failed to extract region", zap.String("region", r.Name), zap.Error(err))
		return ItemResult{Name: r.Name, Size: atlas.OutputSize(r), Err: err}
	}
	return e.write(log, buf, dir, r.Name)
}

// write stores buf as dir/<name>.png and records the outcome.
func (e *Exporter) write(log *zap.Logger, buf atlas.PixelBuffer, dir, name string) ItemResult {
	item := ItemResult{Name: name, Size: atlas.Size{W: buf.Width, H: buf.Height}}

	if err := ValidateName(name); err != nil {
		item.Err = err
		log.Warn("invalid destination path", zap.String("region", name), zap.Error(err))
		return item
	}
	item.Path = filepath.Join(dir, filepath.FromSlash(name)+".png")

	if err := e.writer.WriteImage(buf, item.Path); err != nil {
		item.Err = err
		if errors.Is(err, ErrInvalidDestinationPath) {
			log.Warn("invalid destination path", zap.String("path", item.Path), zap.Error(err))
		} else {
			log.Warn("failed to write image", zap.String("path", item.Path), zap.Error(err))
		}
		return item
	}
	log.Debug("wrote image", zap.String("path", item.Path), zap.Stringer("size", item.Size))
	return item
}

// ExportAll exports atlases one after another. Every atlas is attempted
// unless ctx is done, in which case the remaining ones are recorded with
// the context error.
func (e *Exporter) ExportAll(ctx context.Context, atlases []atlas.Atlas, root string) BatchResult {
	batch := BatchResult{RunID: uuid.NewString()}
	log := e.log.With(zap.String("run", batch.RunID))
	log.Info("export started", zap.Int("atlases", len(atlases)), zap.String("destination", root))

	for _, a := range atlases {
		if err := ctx.Err(); err != nil {
			batch.Atlases = append(batch.Atlases, AtlasResult{Atlas: a.Name, Err: err})
			continue
		}
		batch.Atlases = append(batch.Atlases, e.exportAtlas(log, a, root))
	}

	ok, failed := batch.Counts()
	if failed > 0 {
		log.Warn("export finished with failures", zap.Int("ok", ok), zap.Int("failed", failed))
	} else {
		log.Info("export finished", zap.Int("ok", ok))
	}
	return batch
}

// ExportScope discovers the atlases in scope and exports all of them.
func (e *Exporter) ExportScope(ctx context.Context, finder Finder, scope discovery.Scope, root string) (BatchResult, error) {
	atlases, err := finder.FindAtlases(scope)
	if err != nil {
		return BatchResult{}, fmt.Errorf("discovering atlases: %w", err)
	}
	return e.ExportAll(ctx, atlases, root), nil
}

func textureStem(texture string) string {
	base := path.Base(filepath.ToSlash(texture))
	return strings.TrimSuffix(base, path.Ext(base))
}
