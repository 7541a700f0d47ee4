package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/atlas-export/internal/discovery"
	"github.com/Faultbox/atlas-export/pkg/atlas"
)

type fakeTextures map[string]atlas.PixelBuffer

func (f fakeTextures) BaseLevelPixels(texture string) (atlas.PixelBuffer, error) {
	buf, ok := f[texture]
	if !ok {
		return atlas.PixelBuffer{}, fmt.Errorf("no texture %s", texture)
	}
	return buf, nil
}

type written struct {
	path string
	buf  atlas.PixelBuffer
}

// recordingWriter stores every call and fails for paths listed in fail.
type recordingWriter struct {
	writes []written
	fail   map[string]error
}

func (w *recordingWriter) WriteImage(buf atlas.PixelBuffer, path string) error {
	if err, ok := w.fail[path]; ok {
		return err
	}
	w.writes = append(w.writes, written{path: path, buf: buf})
	return nil
}

func (w *recordingWriter) find(path string) (atlas.PixelBuffer, bool) {
	for _, wr := range w.writes {
		if wr.path == path {
			return wr.buf, true
		}
	}
	return atlas.PixelBuffer{}, false
}

// sheet returns a 4x2 Gray8 texture with pixel values 0..7.
func sheet() atlas.PixelBuffer {
	return atlas.PixelBuffer{
		Pix:    []byte{0, 1, 2, 3, 4, 5, 6, 7},
		Width:  4,
		Height: 2,
		Format: atlas.Gray8,
	}
}

func region(name string, x, y, w, h int, rotated bool) atlas.Region {
	return atlas.Region{Name: name, Origin: image.Pt(x, y), Size: atlas.Size{W: w, H: h}, Rotated: rotated}
}

func TestExportAtlas(t *testing.T) {
	textures := fakeTextures{"ui/tex.png": sheet()}
	writer := &recordingWriter{}
	exp := New(textures, writer, nil)

	a := atlas.Atlas{
		Name:    "tex",
		Texture: "ui/tex.png",
		Regions: []atlas.Region{
			region("plain", 2, 0, 2, 2, false),
			region("turned", 2, 0, 2, 2, true),
			region("thin", 2, 0, 2, 1, true),
		},
	}

	res := exp.ExportAtlas(a, "out")
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Error())
	}
	if res.Dir != filepath.Join("out", "tex") {
		t.Errorf("expected dir out/tex, got %s", res.Dir)
	}
	if len(writer.writes) != 4 {
		t.Fatalf("expected 4 writes, got %d", len(writer.writes))
	}

	full, ok := writer.find(filepath.Join("out", "tex", "tex.png"))
	if !ok || full.Width != 4 || full.Height != 2 {
		t.Errorf("expected full 4x2 atlas image, got %+v", full)
	}

	tests := []struct {
		name   string
		width  int
		height int
		pix    []byte
	}{
		{"plain", 2, 2, []byte{2, 3, 6, 7}},
		{"turned", 2, 2, []byte{3, 7, 2, 6}},
		{"thin", 1, 2, []byte{3, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, ok := writer.find(filepath.Join("out", "tex", tt.name+".png"))
			if !ok {
				t.Fatalf("region %s was not written", tt.name)
			}
			if buf.Width != tt.width || buf.Height != tt.height {
				t.Errorf("expected %dx%d, got %dx%d", tt.width, tt.height, buf.Width, buf.Height)
			}
			if !bytes.Equal(buf.Pix, tt.pix) {
				t.Errorf("expected pixels %v, got %v", tt.pix, buf.Pix)
			}
		})
	}

	if res.Regions[2].Size != (atlas.Size{W: 1, H: 2}) {
		t.Errorf("expected declared size 1x2, got %s", res.Regions[2].Size)
	}
}

func TestExportAtlas_NoRegions(t *testing.T) {
	writer := &recordingWriter{}
	exp := New(fakeTextures{"tex.png": sheet()}, writer, nil)

	res := exp.ExportAtlas(atlas.Atlas{Name: "tex", Texture: "tex.png"}, "out")
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Error())
	}
	if len(writer.writes) != 1 || writer.writes[0].path != filepath.Join("out", "tex", "tex.png") {
		t.Errorf("expected only the atlas image to be written, got %+v", writer.writes)
	}
}

func TestExportAtlas_SkipAtlasImage(t *testing.T) {
	writer := &recordingWriter{}
	exp := New(fakeTextures{"tex.png": sheet()}, writer, nil)
	exp.WriteAtlasImage = false

	a := atlas.Atlas{Name: "tex", Texture: "tex.png", Regions: []atlas.Region{region("a", 0, 0, 1, 1, false)}}
	res := exp.ExportAtlas(a, "out")
	if !res.OK() {
		t.Fatalf("expected success, got %v", res.Error())
	}
	if len(writer.writes) != 1 || writer.writes[0].path != filepath.Join("out", "tex", "a.png") {
		t.Errorf("expected only the region to be written, got %+v", writer.writes)
	}
}

func TestExportAtlas_SourceUnavailable(t *testing.T) {
	writer := &recordingWriter{}
	exp := New(fakeTextures{}, writer, nil)

	a := atlas.Atlas{Name: "gone", Texture: "gone.png", Regions: []atlas.Region{region("a", 0, 0, 1, 1, false)}}
	res := exp.ExportAtlas(a, "out")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", res.Err)
	}
	if len(writer.writes) != 0 || len(res.Regions) != 0 {
		t.Errorf("expected nothing processed, got %d writes and %d regions", len(writer.writes), len(res.Regions))
	}
}

func TestExportAtlas_InvalidTexture(t *testing.T) {
	bad := atlas.PixelBuffer{Pix: []byte{1, 2}, Width: 4, Height: 4, Format: atlas.Gray8}
	exp := New(fakeTextures{"bad.png": bad}, &recordingWriter{}, nil)

	res := exp.ExportAtlas(atlas.Atlas{Name: "bad", Texture: "bad.png"}, "out")
	if !errors.Is(res.Err, ErrSourceUnavailable) || !errors.Is(res.Err, atlas.ErrInvalidBuffer) {
		t.Errorf("expected ErrSourceUnavailable wrapping ErrInvalidBuffer, got %v", res.Err)
	}
}

func TestExportAtlas_OverflowingTexture(t *testing.T) {
	huge := atlas.PixelBuffer{Width: math.MaxInt / 4, Height: 4, Format: atlas.BGRA8}
	writer := &recordingWriter{}
	exp := New(fakeTextures{"huge.png": huge}, writer, nil)

	a := atlas.Atlas{Name: "huge", Texture: "huge.png", Regions: []atlas.Region{region("a", 0, 0, 1, 1, false)}}
	res := exp.ExportAtlas(a, "out")
	if !errors.Is(res.Err, atlas.ErrInvalidBuffer) {
		t.Errorf("expected ErrInvalidBuffer, got %v", res.Err)
	}
	if len(writer.writes) != 0 {
		t.Errorf("expected no writes, got %d", len(writer.writes))
	}
}

func TestExportAtlas_DeclaredSizeMismatch(t *testing.T) {
	tests := []struct {
		name     string
		size     atlas.Size
		warnings int
	}{
		{"matches", atlas.Size{W: 4, H: 2}, 0},
		{"undeclared", atlas.Size{}, 0},
		{"differs", atlas.Size{W: 8, H: 8}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			exp := New(fakeTextures{"tex.png": sheet()}, &recordingWriter{}, zap.New(core))

			a := atlas.Atlas{Name: "tex", Texture: "tex.png", Size: tt.size, Regions: []atlas.Region{region("a", 0, 0, 1, 1, false)}}
			if res := exp.ExportAtlas(a, "out"); !res.OK() {
				t.Fatalf("expected success, got %v", res.Error())
			}
			if n := logs.FilterMessage("texture size differs from manifest").Len(); n != tt.warnings {
				t.Errorf("expected %d warnings, got %d", tt.warnings, n)
			}
		})
	}
}

func TestExportAtlas_RegionNamedLikeAtlasImage(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	writer := &recordingWriter{}
	exp := New(fakeTextures{"ui/tex.png": sheet()}, writer, zap.New(core))

	a := atlas.Atlas{
		Name:    "tex",
		Texture: "ui/tex.png",
		Regions: []atlas.Region{
			region("TEX", 0, 0, 1, 1, false),
			region("other", 1, 0, 1, 1, false),
		},
	}

	res := exp.ExportAtlas(a, "out")
	if !errors.Is(res.Regions[0].Err, ErrInvalidDestinationPath) {
		t.Errorf("expected ErrInvalidDestinationPath, got %v", res.Regions[0].Err)
	}
	if !res.Image.OK() || !res.Regions[1].OK() {
		t.Errorf("expected atlas image and other region to succeed: %+v", res)
	}
	if len(writer.writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writer.writes))
	}
	full, _ := writer.find(filepath.Join("out", "tex", "tex.png"))
	if full.Width != 4 || full.Height != 2 {
		t.Errorf("expected atlas image to stay 4x2, got %dx%d", full.Width, full.Height)
	}
	if n := logs.FilterMessage("invalid destination path").Len(); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}

	// Without the atlas image the name is free.
	writer = &recordingWriter{}
	exp = New(fakeTextures{"ui/tex.png": sheet()}, writer, nil)
	exp.WriteAtlasImage = false
	if res := exp.ExportAtlas(a, "out"); !res.OK() {
		t.Errorf("expected success without atlas image, got %v", res.Error())
	}
}

func TestExportAtlas_RegionFailuresContinue(t *testing.T) {
	diskFull := fmt.Errorf("%w: disk full", ErrWriteFailed)
	writer := &recordingWriter{fail: map[string]error{
		filepath.Join("out", "tex", "b.png"): diskFull,
	}}
	exp := New(fakeTextures{"tex.png": sheet()}, writer, nil)

	a := atlas.Atlas{
		Name:    "tex",
		Texture: "tex.png",
		Regions: []atlas.Region{
			region("a", 0, 0, 1, 1, false),
			region("b", 1, 0, 1, 1, false),
			region("outside", 3, 1, 2, 2, false),
			region("d", 3, 1, 1, 1, false),
		},
	}

	res := exp.ExportAtlas(a, "out")
	if res.OK() {
		t.Fatal("expected failure")
	}
	if len(res.Regions) != 4 {
		t.Fatalf("expected 4 region results, got %d", len(res.Regions))
	}
	if !errors.Is(res.Regions[1].Err, ErrWriteFailed) {
		t.Errorf("expected ErrWriteFailed for b, got %v", res.Regions[1].Err)
	}
	if !errors.Is(res.Regions[2].Err, atlas.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for outside, got %v", res.Regions[2].Err)
	}
	if !res.Regions[0].OK() || !res.Regions[3].OK() {
		t.Errorf("expected a and d to succeed: %+v", res.Regions)
	}
	if len(res.Failed()) != 2 || res.Exported() != 2 {
		t.Errorf("expected 2 failed and 2 exported, got %d and %d", len(res.Failed()), res.Exported())
	}
	if _, ok := writer.find(filepath.Join("out", "tex", "d.png")); !ok {
		t.Error("expected d to be written after earlier failures")
	}
}

func TestExportAtlas_InvalidRegionName(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	writer := &recordingWriter{}
	exp := New(fakeTextures{"tex.png": sheet()}, writer, zap.New(core))

	a := atlas.Atlas{
		Name:    "tex",
		Texture: "tex.png",
		Regions: []atlas.Region{
			region("../escape", 0, 0, 1, 1, false),
			region("ok", 0, 0, 1, 1, false),
		},
	}

	res := exp.ExportAtlas(a, "out")
	if !errors.Is(res.Regions[0].Err, ErrInvalidDestinationPath) {
		t.Errorf("expected ErrInvalidDestinationPath, got %v", res.Regions[0].Err)
	}
	if !res.Regions[1].OK() {
		t.Errorf("expected ok region to succeed, got %v", res.Regions[1].Err)
	}
	for _, w := range writer.writes {
		if w.path == filepath.Join("out", "escape.png") {
			t.Error("writer was called for an invalid path")
		}
	}
	if n := logs.FilterMessage("invalid destination path").Len(); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}
}

func TestExportAtlas_SubfolderRegion(t *testing.T) {
	writer := &recordingWriter{}
	exp := New(fakeTextures{"tex.png": sheet()}, writer, nil)

	a := atlas.Atlas{Name: "tex", Texture: "tex.png", Regions: []atlas.Region{region("hero/idle", 0, 0, 1, 1, false)}}
	if res := exp.ExportAtlas(a, "out"); !res.OK() {
		t.Fatalf("expected success, got %v", res.Error())
	}
	if _, ok := writer.find(filepath.Join("out", "tex", "hero", "idle.png")); !ok {
		t.Errorf("expected nested region path, got %+v", writer.writes)
	}
}

func TestExportAll(t *testing.T) {
	textures := fakeTextures{"a.png": sheet(), "c.png": sheet()}
	writer := &recordingWriter{}
	exp := New(textures, writer, nil)

	atlases := []atlas.Atlas{
		{Name: "a", Texture: "a.png", Regions: []atlas.Region{region("x", 0, 0, 1, 1, false)}},
		{Name: "b", Texture: "b.png", Regions: []atlas.Region{region("x", 0, 0, 1, 1, false)}},
		{Name: "c", Texture: "c.png", Regions: []atlas.Region{region("x", 0, 0, 1, 1, false)}},
	}

	batch := exp.ExportAll(context.Background(), atlases, "out")
	if batch.RunID == "" {
		t.Error("expected a run id")
	}
	if len(batch.Atlases) != 3 {
		t.Fatalf("expected 3 results, got %d", len(batch.Atlases))
	}
	if batch.OK() {
		t.Error("expected batch failure")
	}
	if !batch.Atlases[0].OK() || batch.Atlases[1].OK() || !batch.Atlases[2].OK() {
		t.Errorf("unexpected per-atlas results: %+v", batch.Atlases)
	}
	if ok, failed := batch.Counts(); ok != 2 || failed != 1 {
		t.Errorf("expected 2 ok and 1 failed, got %d and %d", ok, failed)
	}
	if err := batch.Err(); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected combined error to wrap ErrSourceUnavailable, got %v", err)
	}
	if _, ok := writer.find(filepath.Join("out", "c", "x.png")); !ok {
		t.Error("expected atlas c to be exported after b failed")
	}
}

func TestExportAll_Empty(t *testing.T) {
	batch := New(fakeTextures{}, &recordingWriter{}, nil).ExportAll(context.Background(), nil, "out")
	if !batch.OK() || batch.Err() != nil {
		t.Errorf("expected empty batch to succeed, got %v", batch.Err())
	}
}

func TestExportAll_Cancelled(t *testing.T) {
	writer := &recordingWriter{}
	exp := New(fakeTextures{"a.png": sheet()}, writer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := exp.ExportAll(ctx, []atlas.Atlas{{Name: "a", Texture: "a.png"}, {Name: "b", Texture: "a.png"}}, "out")
	if len(batch.Atlases) != 2 {
		t.Fatalf("expected 2 results, got %d", len(batch.Atlases))
	}
	for _, res := range batch.Atlases {
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("expected context.Canceled for %s, got %v", res.Atlas, res.Err)
		}
	}
	if len(writer.writes) != 0 {
		t.Errorf("expected no writes, got %d", len(writer.writes))
	}
}

type fakeFinder struct {
	atlases []atlas.Atlas
	err     error
	scope   discovery.Scope
}

func (f *fakeFinder) FindAtlases(scope discovery.Scope) ([]atlas.Atlas, error) {
	f.scope = scope
	return f.atlases, f.err
}

func TestExportScope(t *testing.T) {
	exp := New(fakeTextures{"a.png": sheet()}, &recordingWriter{}, nil)
	finder := &fakeFinder{atlases: []atlas.Atlas{{Name: "a", Texture: "a.png"}}}

	scope := discovery.Scope{Root: "game", Recursive: true}
	batch, err := exp.ExportScope(context.Background(), finder, scope, "out")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finder.scope.Root != "game" || !finder.scope.Recursive {
		t.Errorf("scope was not passed through: %+v", finder.scope)
	}
	if len(batch.Atlases) != 1 || !batch.OK() {
		t.Errorf("unexpected batch: %+v", batch)
	}

	finder = &fakeFinder{err: discovery.ErrNoValidManifest}
	if _, err := exp.ExportScope(context.Background(), finder, scope, "out"); !errors.Is(err, discovery.ErrNoValidManifest) {
		t.Errorf("expected ErrNoValidManifest, got %v", err)
	}
}
