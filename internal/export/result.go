package export

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/atlas-export/pkg/atlas"
)

// ItemResult is the outcome of writing one image.
type ItemResult struct {
	Name string
	Path string
	Size atlas.Size // Declared output size
	Err  error
}

// OK reports whether the image was written.
func (r ItemResult) OK() bool {
	return r.Err == nil
}

// AtlasResult is the outcome of exporting one atlas.
type AtlasResult struct {
	Atlas   string
	Dir     string
	Err     error // Set when the atlas was not processed at all
	Image   ItemResult
	Regions []ItemResult
}

// OK is the AND of the source load, the atlas image and every region.
func (r AtlasResult) OK() bool {
	if r.Err != nil || !r.Image.OK() {
		return false
	}
	for _, item := range r.Regions {
		if !item.OK() {
			return false
		}
	}
	return true
}

// Failed returns the items that did not export.
func (r AtlasResult) Failed() []ItemResult {
	var failed []ItemResult
	if !r.Image.OK() {
		failed = append(failed, r.Image)
	}
	for _, item := range r.Regions {
		if !item.OK() {
			failed = append(failed, item)
		}
	}
	return failed
}

// Exported counts the regions written successfully.
func (r AtlasResult) Exported() int {
	n := 0
	for _, item := range r.Regions {
		if item.OK() {
			n++
		}
	}
	return n
}

// Error combines every failure of the atlas, or returns nil.
func (r AtlasResult) Error() error {
	if r.Err != nil {
		return fmt.Errorf("atlas %s: %w", r.Atlas, r.Err)
	}
	var err error
	for _, item := range r.Failed() {
		err = multierr.Append(err, fmt.Errorf("atlas %s: %s: %w", r.Atlas, item.Name, item.Err))
	}
	return err
}

// BatchResult is the outcome of exporting several atlases.
type BatchResult struct {
	RunID   string
	Atlases []AtlasResult
}

// OK is the AND of every atlas result. An empty batch is successful.
func (b BatchResult) OK() bool {
	for _, a := range b.Atlases {
		if !a.OK() {
			return false
		}
	}
	return true
}

// Err combines the errors of every failed atlas.
func (b BatchResult) Err() error {
	var err error
	for _, a := range b.Atlases {
		err = multierr.Append(err, a.Error())
	}
	return err
}

// Counts returns the number of atlases that succeeded and failed.
func (b BatchResult) Counts() (ok, failed int) {
	for _, a := range b.Atlases {
		if a.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
