// Package workspace gives each request a private directory for its upload
// and rendered artifacts and guarantees their removal.
package workspace

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Prefix marks every file a workspace creates.
const Prefix = "temp_"

type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// New creates a fresh directory under root. id is folded into the directory
// name to make it easy to match with request logs.
func New(root, id string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	dir, err := os.MkdirTemp(root, "mlviz-"+sanitize(id)+"-")
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path returns the location of the artifact called name.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, Prefix+filepath.Base(name))
}

// SaveUpload copies r into the workspace under name and returns its path.
func (w *Workspace) SaveUpload(name string, r io.Reader) (string, error) {
	path := w.Path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("workspace: save %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("workspace: save %s: %w", name, err)
	}
	return path, nil
}

// Encode reads the artifact called name and returns it base64 encoded.
func (w *Workspace) Encode(name string) (string, error) {
	b, err := os.ReadFile(w.Path(name))
	if err != nil {
		return "", fmt.Errorf("workspace: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Sweep removes every prefixed file in the workspace and returns how many
// were removed.
func (w *Workspace) Sweep() (int, error) {
	matches, err := filepath.Glob(filepath.Join(w.dir, Prefix+"*"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("workspace: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Close sweeps the workspace and deletes its directory. It is safe to call
// more than once.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		if _, err := w.Sweep(); err != nil {
			w.err = err
		}
		if err := os.RemoveAll(w.dir); err != nil && w.err == nil {
			w.err = fmt.Errorf("workspace: %w", err)
		}
	})
	return w.err
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, id)
}
