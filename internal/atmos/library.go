package atmos

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const modelExt = ".atmos"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Library manages model atmosphere files in a directory.
// Safe for concurrent use.
type Library struct {
	dir      string
	maxFiles int
	logger   *slog.Logger
	mu       sync.Mutex // serializes writes and pruning
}

// NewLibrary creates a Library rooted at dir that keeps at most maxFiles models.
func NewLibrary(dir string, maxFiles int, logger *slog.Logger) *Library {
	if maxFiles <= 0 {
		maxFiles = 100
	}
	return &Library{
		dir:      dir,
		maxFiles: maxFiles,
		logger:   logger,
	}
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// CheckName reports whether name can be used as a model name.
func CheckName(name string) error {
	if !validName.MatchString(name) || strings.HasSuffix(name, modelExt) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Save writes m under its name and prunes the oldest models beyond maxFiles.
func (l *Library) Save(m *Model) error {
	if err := CheckName(m.Name); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("creating library dir: %w", err)
	}

	// Write to a temp file then rename so readers never see a partial model.
	path := filepath.Join(l.dir, m.Name+modelExt)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming model file: %w", err)
	}

	return l.prune()
}

// Load reads the named model.
func (l *Library) Load(name string) (*Model, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(l.dir, name+modelExt))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading model file: %w", err)
	}

	m, err := Parse(bytes.NewReader(data), l.logger.With("model", name))
	if err != nil {
		return nil, fmt.Errorf("parsing model %s: %w", name, err)
	}
	// The file name is authoritative.
	m.Name = name
	return m, nil
}

// List returns the stored models, oldest first. Point counts are read from
// each file; unreadable files are reported with zero points.
func (l *Library) List() ([]Info, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing library dir: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(e.Name(), modelExt)
		if !ok || CheckName(name) != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info := Info{Name: name, ModTime: fi.ModTime().UTC()}
		if m, err := l.Load(name); err == nil {
			info.Points = m.Len()
		} else {
			l.logger.Warn("unreadable model in library", "model", name, "error", err)
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ModTime.Before(infos[j].ModTime)
	})
	return infos, nil
}

// Ready reports whether the library directory can be read.
func (l *Library) Ready() error {
	_, err := os.ReadDir(l.dir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *Library) prune() error {
	infos, err := l.modTimes()
	if err != nil {
		return err
	}
	if len(infos) <= l.maxFiles {
		return nil
	}

	// Remove oldest files.
	for _, info := range infos[:len(infos)-l.maxFiles] {
		path := filepath.Join(l.dir, info.Name+modelExt)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("pruning model %s: %w", info.Name, err)
		}
		l.logger.Info("pruned model from library", "model", info.Name)
	}
	return nil
}

// modTimes lists model names by modification time without parsing them.
func (l *Library) modTimes() ([]Info, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("listing library dir: %w", err)
	}
	var infos []Info
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), modelExt)
		if e.IsDir() || !ok {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: name, ModTime: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModTime.Equal(infos[j].ModTime) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].ModTime.Before(infos[j].ModTime)
	})
	return infos, nil
}
