package ui

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirSaver writes downloads into Dir without overwriting: an existing name gets a
// " (n)" suffix.
type DirSaver struct {
	Dir string

	write func(io.Writer, []byte) error // nil writes data as is
}

// Save writes data as name and returns the path written.
func (s DirSaver) Save(name string, data []byte) (string, error) {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.Dir, err)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		p := filepath.Join(s.Dir, name)
		if i > 1 {
			p = filepath.Join(s.Dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		}
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("open %s: %w", p, err)
		}
		werr := s.writeData(f, data)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(p)
			return "", fmt.Errorf("write %s: %w", p, werr)
		}
		return p, nil
	}
}

func (s DirSaver) writeData(w io.Writer, data []byte) error {
	if s.write != nil {
		return s.write(w, data)
	}
	_, err := w.Write(data)
	return err
}
