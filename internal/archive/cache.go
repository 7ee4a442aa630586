// Package archive extracts per-zone MGRS square archives into scratch directories.
//
// Every acquisition gets its own directory, so concurrent lookups in the same zone never
// share or delete each other's files. Release removes exactly one acquisition; Purge
// clears leftovers of exited processes and leaves live ones alone.
package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/fetcher"
	"github.com/sells-group/gridconv/internal/griddata"
	"github.com/sells-group/gridconv/internal/tileid"
)

// Options configures a Cache.
type Options struct {
	Layout     griddata.Layout
	ScratchDir string // default <os temp>/gridconv
	Logger     *zap.Logger
}

// Entry is one extracted archive.
type Entry struct {
	Zone    string
	Dir     string
	Stem    string
	Members []string
}

// ShapefilePath is <dir>/<stem>.shp.
func (e *Entry) ShapefilePath() string {
	return filepath.Join(e.Dir, e.Stem+".shp")
}

// Cache hands out extracted zone archives. It is safe for concurrent use.
type Cache struct {
	layout  griddata.Layout
	scratch string
	log     *zap.Logger

	mu     sync.Mutex
	active map[string]*Entry // by Dir
}

// New creates the scratch directory and returns a Cache.
func New(opts Options) (*Cache, error) {
	if opts.ScratchDir == "" {
		opts.ScratchDir = filepath.Join(os.TempDir(), "gridconv")
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	if err := os.MkdirAll(opts.ScratchDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "archive: create scratch dir")
	}
	return &Cache{
		layout:  opts.Layout,
		scratch: opts.ScratchDir,
		log:     opts.Logger.With(zap.String("component", "archive.cache")),
		active:  make(map[string]*Entry),
	}, nil
}

// ScratchDir returns the parent of all extraction directories.
func (c *Cache) ScratchDir() string {
	return c.scratch
}

// Acquire extracts the zone's archive into a fresh directory. Members are flattened to
// their base names. A missing or empty archive is ErrReferenceDataMissing.
func (c *Cache) Acquire(ctx context.Context, zone string) (*Entry, error) {
	if !tileid.IsZone(zone) {
		return nil, eris.Wrapf(tileid.ErrInvalid, "archive: not a grid zone: %q", zone)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "archive: acquire")
	}
	if err := c.layout.RequireZoneArchive(zone); err != nil {
		return nil, err
	}

	dir := filepath.Join(c.scratch, dirName(zone))
	hold(dir)
	members, err := fetcher.ExtractZIPFlat(c.layout.ZoneArchivePath(zone), dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		unhold(dir)
		return nil, eris.Wrapf(err, "archive: extract zone %s", zone)
	}
	if len(members) == 0 {
		_ = os.RemoveAll(dir)
		unhold(dir)
		return nil, eris.Wrapf(griddata.ErrReferenceDataMissing, "archive for zone %s is empty", zone)
	}

	e := &Entry{Zone: zone, Dir: dir, Stem: memberStem(members), Members: members}

	c.mu.Lock()
	c.active[dir] = e
	c.mu.Unlock()

	c.log.Debug("zone archive extracted",
		zap.String("zone", zone),
		zap.String("dir", dir),
		zap.String("stem", e.Stem),
		zap.Int("members", len(members)),
	)
	return e, nil
}

// memberStem names the layer after the first extracted member, whatever the archive
// itself is called.
func memberStem(members []string) string {
	first := filepath.Base(members[0])
	return strings.TrimSuffix(first, filepath.Ext(first))
}

// Release removes the entry's directory. Releasing twice is a no-op.
func (c *Cache) Release(e *Entry) error {
	if e == nil {
		return nil
	}
	c.mu.Lock()
	_, ok := c.active[e.Dir]
	delete(c.active, e.Dir)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	err := os.RemoveAll(e.Dir)
	unhold(e.Dir)
	if err != nil {
		return eris.Wrapf(err, "archive: remove %s", e.Dir)
	}
	c.log.Debug("zone archive released", zap.String("zone", e.Zone), zap.String("dir", e.Dir))
	return nil
}

// With acquires the zone, runs fn, and releases the entry whatever fn returns.
func (c *Cache) With(ctx context.Context, zone string, fn func(*Entry) error) (err error) {
	e, err := c.Acquire(ctx, zone)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := c.Release(e); relErr != nil && err == nil {
			err = relErr
		}
	}()
	return fn(e)
}

// Active returns the number of unreleased entries.
func (c *Cache) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Purge removes orphaned extraction directories from the scratch dir, such as
// leftovers of a crashed run. Directories held by any Cache in this process, or
// tagged with the pid of another live process, are kept. It returns how many were
// removed.
func (c *Cache) Purge() (int, error) {
	entries, err := os.ReadDir(c.scratch)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "archive: read scratch dir")
	}

	removed := 0
	for _, de := range entries {
		if !de.IsDir() || !strings.HasPrefix(de.Name(), griddata.ZoneArchivePrefix) {
			continue
		}
		dir := filepath.Join(c.scratch, de.Name())
		if !orphaned(dir, de.Name()) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, eris.Wrapf(err, "archive: purge %s", dir)
		}
		removed++
	}
	if removed > 0 {
		c.log.Info("purged stale extraction directories", zap.Int("removed", removed))
	}
	return removed, nil
}
