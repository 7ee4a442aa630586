// Package griddata describes the on-disk layout of the reference grid data (WRS-2 master
// layer, MGRS grid-zone master layer, per-zone 100 km square archives) and installs it
// from a mirror.
package griddata

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gridconv/internal/tileid"
)

// ErrReferenceDataMissing is wrapped by every error caused by an absent reference
// shapefile, attribute table, or zone archive.
var ErrReferenceDataMissing = eris.New("griddata: reference data missing")

// Attribute names in the reference layers.
const (
	FieldPR       = "PR"         // WRS-2 path/row
	FieldGZD      = "gzd"        // grid zone designator
	FieldSquareID = "100kmSQ_ID" // two-letter 100 km square id
	FieldMGRS     = "MGRS"       // full MGRS id of a 100 km square
)

// File and directory names under the grid-data root.
const (
	WRSDirName        = "WRS2_descending"
	WRSArchiveName    = "WRS2_descending.zip"
	ZoneDirName       = "MGRS_100kmSQ_ID"
	ZoneMasterName    = "mgrs_gzd_final"
	ZoneMasterZip     = "mgrs_gzd_final.zip"
	ZoneArchivePrefix = "MGRS_100kmSQ_ID_"
)

// Layout resolves reference data paths under a grid-data root.
type Layout struct {
	Root string
}

// WRSMasterPath is {root}/WRS2_descending/WRS2_descending.shp.
func (l Layout) WRSMasterPath() string {
	return filepath.Join(l.Root, WRSDirName, WRSDirName+".shp")
}

// ZoneMasterPath is {root}/MGRS_100kmSQ_ID/mgrs_gzd_final.shp.
func (l Layout) ZoneMasterPath() string {
	return filepath.Join(l.Root, ZoneDirName, ZoneMasterName+".shp")
}

// ZoneArchiveDir holds the zone master and the per-zone archives.
func (l Layout) ZoneArchiveDir() string {
	return filepath.Join(l.Root, ZoneDirName)
}

// ZoneArchivePath is {root}/MGRS_100kmSQ_ID/MGRS_100kmSQ_ID_{zone}.zip.
func (l Layout) ZoneArchivePath(zone string) string {
	return filepath.Join(l.ZoneArchiveDir(), ZoneArchiveName(zone))
}

// ZoneArchiveName is the archive file name for a grid zone.
func ZoneArchiveName(zone string) string {
	return ZoneArchivePrefix + zone + ".zip"
}

// RequireShapefile checks that the .shp and its .dbf attribute table exist. A missing
// member is reported as ErrReferenceDataMissing.
func RequireShapefile(shpPath string) error {
	dbf := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".dbf"
	for _, p := range []string{shpPath, dbf} {
		if err := requireFile(p); err != nil {
			return err
		}
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return eris.Wrapf(ErrReferenceDataMissing, "%s not found", path)
	}
	if err != nil {
		return eris.Wrapf(err, "griddata: stat %s", path)
	}
	if info.IsDir() {
		return eris.Wrapf(ErrReferenceDataMissing, "%s is a directory", path)
	}
	return nil
}

// RequireZoneArchive checks that the zone's archive exists.
func (l Layout) RequireZoneArchive(zone string) error {
	return requireFile(l.ZoneArchivePath(zone))
}

// Report summarises what is installed under a grid-data root.
type Report struct {
	Root       string   `json:"root" yaml:"root"`
	WRSMaster  bool     `json:"wrs_master" yaml:"wrs_master"`
	ZoneMaster bool     `json:"zone_master" yaml:"zone_master"`
	Zones      []string `json:"zones" yaml:"zones"`
}

// Complete reports whether both master layers and at least one zone archive exist.
func (r Report) Complete() bool {
	return r.WRSMaster && r.ZoneMaster && len(r.Zones) > 0
}

// Status inspects the layout without reading any layer.
func Status(l Layout) Report {
	r := Report{
		Root:       l.Root,
		WRSMaster:  RequireShapefile(l.WRSMasterPath()) == nil,
		ZoneMaster: RequireShapefile(l.ZoneMasterPath()) == nil,
		Zones:      []string{},
	}

	entries, err := os.ReadDir(l.ZoneArchiveDir())
	if err != nil {
		return r
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ZoneArchivePrefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		zone := strings.TrimSuffix(strings.TrimPrefix(name, ZoneArchivePrefix), ".zip")
		if tileid.IsZone(zone) {
			r.Zones = append(r.Zones, zone)
		}
	}
	sort.Strings(r.Zones)
	return r
}
