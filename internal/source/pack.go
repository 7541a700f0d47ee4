package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/Faultbox/atlas-export/pkg/grf"
)

// Pack stores every file of src in a GRF archive written to w and returns
// the number of files stored.
func Pack(src Source, w io.Writer) (int, error) {
	names := src.List()
	files := make([]grf.File, 0, len(names))
	for _, name := range names {
		data, err := src.Read(name)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", name, err)
		}
		files = append(files, grf.File{Name: strings.ReplaceAll(name, "/", `\`), Data: data})
	}
	if err := grf.Write(w, files); err != nil {
		return 0, fmt.Errorf("writing archive: %w", err)
	}
	return len(files), nil
}
