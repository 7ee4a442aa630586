package griddata

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gridconv/internal/fetcher"
	"github.com/sells-group/gridconv/internal/shapefile"
	"github.com/sells-group/gridconv/internal/tileid"
)

// InstallOptions configures Install.
type InstallOptions struct {
	Layout  Layout
	BaseURL string          // mirror holding the archives side by side
	Zones   []string        // zone archives to fetch; empty = every zone of the zone master
	Fetcher fetcher.Fetcher // defaults to fetcher.New
	// Concurrency bounds parallel zone archive downloads (default 4).
	Concurrency int
	Logger      *zap.Logger
}

// InstallReport lists what Install downloaded and what was already present.
type InstallReport struct {
	Downloaded []string `json:"downloaded" yaml:"downloaded"`
	Skipped    []string `json:"skipped" yaml:"skipped"`
}

// Install downloads the reference data into the layout. The two master archives are
// extracted into their directories; zone archives are stored as-is. Files that already
// exist with content are not downloaded again.
func Install(ctx context.Context, opts InstallOptions) (*InstallReport, error) {
	if opts.BaseURL == "" {
		return nil, eris.New("griddata: install requires a mirror base URL")
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetcher.New(fetcher.Options{})
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	log := opts.Logger.With(
		zap.String("component", "griddata.install"),
		zap.String("root", opts.Layout.Root),
	)

	for _, z := range opts.Zones {
		if !tileid.IsZone(z) {
			return nil, eris.Errorf("griddata: invalid grid zone %q", z)
		}
	}

	inst := &installer{opts: opts, log: log, report: &InstallReport{}}

	masters := []struct {
		archive string
		dir     string
		shp     string
	}{
		{archive: WRSArchiveName, dir: filepath.Join(opts.Layout.Root, WRSDirName), shp: opts.Layout.WRSMasterPath()},
		{archive: ZoneMasterZip, dir: opts.Layout.ZoneArchiveDir(), shp: opts.Layout.ZoneMasterPath()},
	}
	for _, m := range masters {
		if err := inst.master(ctx, m.archive, m.dir, m.shp); err != nil {
			return nil, err
		}
	}

	zones := opts.Zones
	if len(zones) == 0 {
		var err error
		if zones, err = ZonesFromMaster(opts.Layout); err != nil {
			return nil, err
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, zone := range zones {
		zone := zone
		g.Go(func() error {
			name := ZoneArchiveName(zone)
			return inst.fetch(gCtx, name, opts.Layout.ZoneArchivePath(zone))
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(inst.report.Downloaded)
	sort.Strings(inst.report.Skipped)
	log.Info("reference data installed",
		zap.Int("downloaded", len(inst.report.Downloaded)),
		zap.Int("skipped", len(inst.report.Skipped)),
	)
	return inst.report, nil
}

type installer struct {
	opts InstallOptions
	log  *zap.Logger

	mu     sync.Mutex
	report *InstallReport
}

// master fetches a master archive and extracts it unless the layer is already present.
func (i *installer) master(ctx context.Context, archive, dir, shpPath string) error {
	if RequireShapefile(shpPath) == nil {
		i.record(archive, false)
		i.log.Debug("layer already installed, skipping", zap.String("path", shpPath))
		return nil
	}

	zipPath := filepath.Join(i.opts.Layout.Root, archive)
	if err := i.fetch(ctx, archive, zipPath); err != nil {
		return err
	}
	if _, err := fetcher.ExtractZIPFlat(zipPath, dir); err != nil {
		return eris.Wrapf(err, "griddata: extract %s", archive)
	}
	if err := RequireShapefile(shpPath); err != nil {
		return eris.Wrapf(err, "griddata: %s did not contain %s", archive, filepath.Base(shpPath))
	}
	return nil
}

// fetch downloads name from the mirror to dest, skipping a non-empty existing file.
func (i *installer) fetch(ctx context.Context, name, dest string) error {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		i.log.Debug("archive already exists, skipping download", zap.String("path", dest))
		i.record(name, false)
		return nil
	}

	url := fetcher.JoinURL(i.opts.BaseURL, name)
	i.log.Info("downloading reference archive", zap.String("url", url))
	n, err := i.opts.Fetcher.DownloadToFile(ctx, url, dest)
	if err != nil {
		return eris.Wrapf(err, "griddata: download %s", name)
	}
	i.log.Debug("archive downloaded", zap.String("path", dest), zap.Int64("bytes", n))
	i.record(name, true)
	return nil
}

func (i *installer) record(name string, downloaded bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if downloaded {
		i.report.Downloaded = append(i.report.Downloaded, name)
	} else {
		i.report.Skipped = append(i.report.Skipped, name)
	}
}

// ZonesFromMaster lists the distinct grid zone designators of the zone master layer.
func ZonesFromMaster(l Layout) ([]string, error) {
	path := l.ZoneMasterPath()
	if err := RequireShapefile(path); err != nil {
		return nil, err
	}
	layer, err := shapefile.Read(path)
	if err != nil {
		return nil, eris.Wrap(err, "griddata: read zone master")
	}
	if !layer.HasField(FieldGZD) {
		return nil, eris.Wrapf(ErrReferenceDataMissing, "zone master has no %s field", FieldGZD)
	}

	seen := make(map[string]bool)
	var zones []string
	for _, rec := range layer.Records {
		z := strings.ToUpper(rec.Attr(FieldGZD))
		if len(z) == 2 {
			z = "0" + z
		}
		if !tileid.IsZone(z) || seen[z] {
			continue
		}
		seen[z] = true
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones, nil
}
