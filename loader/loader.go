// Package loader finds and parses class files in files, directories and jar
// archives.
package loader

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BarrensZeppelin/jvmtype/classfile"
)

var ErrLoad = errors.New("errors encountered while loading classes")

type Config struct {
	// Dir is the directory relative paths are resolved against.
	Dir string

	// Skip, if set, is called with each class's internal name. Classes for
	// which it returns true are not returned.
	Skip func(name string) bool

	Logger *zap.Logger
}

// Load loads the classes in the given paths. A path is a .class file, a
// .jar or .zip archive, or a directory searched recursively for class
// files.
func Load(paths ...string) ([]*classfile.Class, error) {
	return LoadWithConfig(&Config{}, paths...)
}

// LoadWithConfig is like Load. Classes that fail to parse are reported in
// the returned error, which wraps ErrLoad, alongside the classes that did
// load.
func LoadWithConfig(config *Config, paths ...string) ([]*classfile.Class, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &loader{config: config, logger: logger}
	for _, path := range paths {
		if !filepath.IsAbs(path) && config.Dir != "" {
			path = filepath.Join(config.Dir, path)
		}
		if err := l.load(path); err != nil {
			return nil, err
		}
	}

	return l.result()
}

type loader struct {
	config  *Config
	logger  *zap.Logger
	classes []*classfile.Class
	// Per-class parse errors.
	errs []error
}

// result returns the loaded classes sorted by name.
func (l *loader) result() ([]*classfile.Class, error) {
	sort.SliceStable(l.classes, func(i, j int) bool {
		return l.classes[i].Name < l.classes[j].Name
	})
	l.logger.Debug("loaded classes", zap.Int("classes", len(l.classes)), zap.Int("errors", len(l.errs)))

	if len(l.errs) > 0 {
		return l.classes, fmt.Errorf("%w: %w", ErrLoad, errors.Join(l.errs...))
	}
	return l.classes, nil
}

func (l *loader) load(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	switch {
	case info.IsDir():
		return l.loadFS(os.DirFS(path), path)
	case isArchive(path):
		zr, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		return l.loadFS(zr, path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		l.add(path, data)
		return nil
	}
}

func isArchive(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".jar" || ext == ".zip"
}

// LoadFS loads every class file in fsys.
func LoadFS(config *Config, fsys fs.FS) ([]*classfile.Class, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &loader{config: config, logger: logger}
	if err := l.loadFS(fsys, "."); err != nil {
		return nil, err
	}
	return l.result()
}

func (l *loader) loadFS(fsys fs.FS, origin string) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		l.add(origin+"!"+path, data)
		return nil
	})
}

func (l *loader) add(origin string, data []byte) {
	c, err := classfile.Parse(data)
	if err != nil {
		l.logger.Warn("skipping class", zap.String("origin", origin), zap.Error(err))
		l.errs = append(l.errs, fmt.Errorf("%s: %w", origin, err))
		return
	}
	if l.config.Skip != nil && l.config.Skip(c.Name) {
		return
	}
	l.logger.Debug("loaded class", zap.String("class", c.Name), zap.String("origin", origin))
	l.classes = append(l.classes, c)
}
