package source

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

// Overlay layers several sources. Sources are searched in reverse order, so
// the last one added wins when two contain the same path.
type Overlay struct {
	mu      sync.RWMutex
	sources []Source
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{}
}

// OpenAll opens every path and layers them in order.
func OpenAll(paths []string) (*Overlay, error) {
	o := NewOverlay()
	for _, p := range paths {
		src, err := Open(p)
		if err != nil {
			o.Close()
			return nil, err
		}
		o.Add(src)
	}
	return o, nil
}

// Add appends src with the highest priority.
func (o *Overlay) Add(src Source) {
	o.mu.Lock()
	o.sources = append(o.sources, src)
	o.mu.Unlock()
}

// List returns the union of all listings, sorted. Archive paths are
// lowercase, so names are deduplicated case-insensitively.
func (o *Overlay) List() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	seen := make(map[string]bool)
	var result []string
	for i := len(o.sources) - 1; i >= 0; i-- {
		for _, name := range o.sources[i].List() {
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// Read returns name from the highest-priority source containing it.
func (o *Overlay) Read(name string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for i := len(o.sources) - 1; i >= 0; i-- {
		data, err := o.sources[i].Read(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Close closes every layered source.
func (o *Overlay) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	for _, src := range o.sources {
		err = multierr.Append(err, src.Close())
	}
	o.sources = nil
	return err
}

func (o *Overlay) String() string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, len(o.sources))
	for i, src := range o.sources {
		names[i] = src.String()
	}
	return "overlay[" + strings.Join(names, ", ") + "]"
}
