package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/growth.report/internal/fsutil"
	"github.com/banshee-data/growth.report/internal/security"
	"github.com/banshee-data/growth.report/internal/timeutil"
)

// ChartExtensions are the artifact types a ChartStore serves.
var ChartExtensions = []string{".png", ".html"}

// ChartStore keeps rendered chart files in one directory.
type ChartStore struct {
	FS    fsutil.FileSystem
	Dir   string
	Clock timeutil.Clock
}

// NewChartStore returns a store writing under dir.
func NewChartStore(fsys fsutil.FileSystem, dir string, clock timeutil.Clock) *ChartStore {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ChartStore{FS: fsys, Dir: dir, Clock: clock}
}

// Save writes data as a new file for userID and returns its name.
func (c *ChartStore) Save(userID, ext string, data []byte) (string, error) {
	if err := c.FS.MkdirAll(c.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	name := fmt.Sprintf("%s_%d%s", security.SanitizeFilename(userID), c.Clock.Now().UnixNano(), ext)
	path, err := c.Path(name)
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(c.FS, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write chart %s: %w", name, err)
	}
	return name, nil
}

// Read returns the stored file called name.
func (c *ChartStore) Read(name string) ([]byte, error) {
	path, err := c.Path(name)
	if err != nil {
		return nil, err
	}
	return c.FS.ReadFile(path)
}

// Path resolves name inside the chart directory, rejecting anything that is
// not a plain chart file name.
func (c *ChartStore) Path(name string) (string, error) {
	if err := security.ValidateArtifactName(name, ChartExtensions...); err != nil {
		return "", err
	}
	path := filepath.Join(c.Dir, name)
	if _, onDisk := c.FS.(fsutil.OSFileSystem); onDisk {
		if err := security.ValidatePathWithinDirectory(path, c.Dir); err != nil {
			return "", err
		}
	}
	return path, nil
}

// Prune removes chart files older than maxAge and returns how many were
// removed.
func (c *ChartStore) Prune(maxAge time.Duration) (int, error) {
	cutoff := c.Clock.Now().Add(-maxAge)
	n := 0
	for _, ext := range ChartExtensions {
		matches, err := c.FS.Glob(filepath.Join(c.Dir, "*"+ext))
		if err != nil {
			return n, err
		}
		for _, m := range matches {
			info, err := c.FS.Stat(m)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return n, err
			}
			if info.IsDir() || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := c.FS.Remove(m); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
