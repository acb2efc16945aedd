// Package patterns loads STRIDE threat and mitigation pattern definitions.
//
// A pattern library is a directory holding one file per classification,
// named after the classification stem: "spoofing.dubhe",
// "information_disclosure.yaml" and so on. The default library is embedded in
// the binary.
package patterns

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/dubhe-dev/dubhe/pkg/models"
	"github.com/dubhe-dev/dubhe/pkg/version"
)

//go:embed library/*.dubhe
var defaultLibrary embed.FS

// ErrIncompatibleVersion is returned when a pattern file declares a version
// older than the configured minimum, one this build cannot read, or one that
// is not valid semver.
var ErrIncompatibleVersion = errors.New("incompatible pattern library version")

// Source provides the threat definitions of a classification.
type Source interface {
	Load(ctx context.Context, c models.Classification) ([]models.ThreatInfo, error)
}

// Store loads pattern files from a file system.
type Store struct {
	fsys       fs.FS
	logger     *zap.Logger
	minVersion string
}

// NewStore creates a store over fsys. minVersion, when set, is the oldest
// library version accepted.
func NewStore(fsys fs.FS, logger *zap.Logger, minVersion string) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fsys: fsys, logger: logger, minVersion: minVersion}
}

// NewDefaultStore returns a store over the embedded library.
func NewDefaultStore(logger *zap.Logger, minVersion string) *Store {
	sub, err := fs.Sub(defaultLibrary, "library")
	if err != nil {
		// the embed directive guarantees the directory exists
		panic(fmt.Sprintf("embedded pattern library: %v", err))
	}
	return NewStore(sub, logger, minVersion)
}

// NewDirStore returns a store over a directory on disk.
func NewDirStore(dir string, logger *zap.Logger, minVersion string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open pattern directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pattern path %s is not a directory", dir)
	}
	return NewStore(os.DirFS(dir), logger, minVersion), nil
}

type format struct {
	ext   string
	parse func(io.Reader) (*Library, error)
}

var formats = []format{
	{".dubhe", ParseDubhe},
	{".yaml", ParseYAML},
	{".yml", ParseYAML},
}

// Load reads the threat definitions for c, in file order. A classification
// with no pattern file has no threats.
func (s *Store) Load(ctx context.Context, c models.Classification) ([]models.ThreatInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, f := range formats {
		name := c.String() + f.ext
		file, err := s.fsys.Open(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open pattern file %s: %w", name, err)
		}

		lib, err := f.parse(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to load pattern file %s: %w", name, err)
		}
		if err := s.checkVersion(name, lib.Version); err != nil {
			return nil, err
		}

		s.logger.Debug("Loaded threat patterns",
			zap.String("classification", c.String()),
			zap.String("file", name),
			zap.String("version", lib.Version),
			zap.Int("threats", len(lib.Threats)))
		return lib.Threats, nil
	}

	s.logger.Warn("No pattern file for classification", zap.String("classification", c.String()))
	return nil, nil
}

func (s *Store) checkVersion(name, declared string) error {
	if declared == "" {
		return nil
	}
	if !semver.IsValid(declared) {
		return fmt.Errorf("%w: %s declares %q", ErrIncompatibleVersion, name, declared)
	}
	if s.minVersion != "" && semver.Compare(declared, s.minVersion) < 0 {
		return fmt.Errorf("%w: %s is %s, need at least %s", ErrIncompatibleVersion, name, declared, s.minVersion)
	}
	if !version.SupportsPatterns(declared) {
		return fmt.Errorf("%w: %s is %s, this build reads up to %s", ErrIncompatibleVersion, name, declared, version.PatternFormat)
	}
	return nil
}

// Files lists the pattern files present in the store.
func (s *Store) Files() []string {
	var names []string
	for _, c := range models.Classifications() {
		for _, f := range formats {
			name := c.String() + f.ext
			if _, err := fs.Stat(s.fsys, name); err == nil {
				names = append(names, name)
				break
			}
		}
	}
	return names
}
