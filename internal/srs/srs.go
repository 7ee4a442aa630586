// Package srs resolves the spatial reference of reference grid layers and builds
// coordinate transforms into WGS84 longitude/latitude.
package srs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// SpatialRef is the subset of coordinate systems used by the WRS-2 and MGRS grids:
// WGS84 geographic coordinates, or WGS84 UTM in one zone and hemisphere.
type SpatialRef struct {
	Geographic bool
	Zone       int
	North      bool
}

// WGS84 is EPSG:4326.
var WGS84 = SpatialRef{Geographic: true}

// WGS84PRJ is the ESRI WKT written next to WGS84 shapefiles.
const WGS84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// EPSG returns the EPSG code of the reference.
func (s SpatialRef) EPSG() int {
	switch {
	case s.Geographic:
		return 4326
	case s.North:
		return 32600 + s.Zone
	default:
		return 32700 + s.Zone
	}
}

func (s SpatialRef) String() string {
	return fmt.Sprintf("EPSG:%d", s.EPSG())
}

// PRJ renders the reference as ESRI WKT for a .prj sidecar.
func (s SpatialRef) PRJ() string {
	if s.Geographic {
		return WGS84PRJ
	}
	hemi, falseNorthing := "N", "0.0"
	if !s.North {
		hemi, falseNorthing = "S", "10000000.0"
	}
	return fmt.Sprintf(`PROJCS["WGS_1984_UTM_Zone_%d%s",%s,PROJECTION["Transverse_Mercator"],`+
		`PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",%s],`+
		`PARAMETER["Central_Meridian",%.1f],PARAMETER["Scale_Factor",0.9996],`+
		`PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`,
		s.Zone, hemi, WGS84PRJ, falseNorthing, float64(s.Zone*6-183))
}

var (
	utmNamePattern  = regexp.MustCompile(`(?i)UTM[ _]+zone[ _]+(\d{1,2})\s*([NS])`)
	epsgAuthPattern = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"(\d+)"\]\s*\]\s*$`)
)

// FromPRJ parses the ESRI/OGC WKT found in a shapefile's .prj sidecar.
func FromPRJ(text string) (SpatialRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SpatialRef{}, eris.New("srs: empty projection definition")
	}

	upper := strings.ToUpper(text)
	if strings.HasPrefix(upper, "GEOGCS[") || strings.HasPrefix(upper, "GEOGCRS[") {
		return WGS84, nil
	}

	if m := utmNamePattern.FindStringSubmatch(text); m != nil {
		zone, _ := strconv.Atoi(m[1])
		return utmRef(zone, strings.EqualFold(m[2], "N"))
	}

	// Top-level authority code, e.g. AUTHORITY["EPSG","32611"]] at the end of a PROJCS.
	if m := epsgAuthPattern.FindStringSubmatch(text); m != nil {
		code, _ := strconv.Atoi(m[1])
		return FromEPSG(code)
	}

	return SpatialRef{}, eris.Errorf("srs: unsupported projection %.60q", text)
}

// FromEPSG maps EPSG:4326 and the WGS84 UTM codes (326xx, 327xx).
func FromEPSG(code int) (SpatialRef, error) {
	switch {
	case code == 4326:
		return WGS84, nil
	case code > 32600 && code <= 32660:
		return utmRef(code-32600, true)
	case code > 32700 && code <= 32760:
		return utmRef(code-32700, false)
	default:
		return SpatialRef{}, eris.Errorf("srs: unsupported EPSG code %d", code)
	}
}

// FromZoneCode derives the UTM reference from a grid zone designator such as "11U".
// Latitude bands N and above are in the northern hemisphere.
func FromZoneCode(gzd string) (SpatialRef, error) {
	if len(gzd) != 3 {
		return SpatialRef{}, eris.Errorf("srs: invalid grid zone %q", gzd)
	}
	zone, err := strconv.Atoi(gzd[:2])
	if err != nil {
		return SpatialRef{}, eris.Wrapf(err, "srs: invalid grid zone %q", gzd)
	}
	band := strings.ToUpper(gzd[2:])[0]
	return utmRef(zone, band >= 'N')
}

func utmRef(zone int, north bool) (SpatialRef, error) {
	if zone < 1 || zone > 60 {
		return SpatialRef{}, eris.Errorf("srs: UTM zone %d out of range", zone)
	}
	return SpatialRef{Zone: zone, North: north}, nil
}

// PRJPath returns the .prj sidecar path for a shapefile.
func PRJPath(shpPath string) string {
	return strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".prj"
}

// ReadPRJ reads and parses the .prj sidecar of shpPath. A missing sidecar returns an
// error wrapping os.ErrNotExist.
func ReadPRJ(shpPath string) (SpatialRef, error) {
	data, err := os.ReadFile(PRJPath(shpPath))
	if err != nil {
		return SpatialRef{}, eris.Wrap(err, "srs: read prj")
	}
	return FromPRJ(string(data))
}

// Transformer converts one coordinate pair.
type Transformer interface {
	Transform(x, y float64) (float64, float64, error)
}

// NewTransform builds a transform from src into dst. Only WGS84 targets are supported.
func NewTransform(src, dst SpatialRef) (Transformer, error) {
	if !dst.Geographic {
		return nil, eris.Errorf("srs: unsupported target %s", dst)
	}
	if src.Geographic {
		return identity{}, nil
	}
	if src.Zone < 1 || src.Zone > 60 {
		return nil, eris.Errorf("srs: invalid source %s", src)
	}
	return utmInverse{zone: src.Zone, north: src.North}, nil
}

type identity struct{}

func (identity) Transform(x, y float64) (float64, float64, error) {
	return x, y, nil
}

// IsIdentity reports whether t leaves coordinates unchanged.
func IsIdentity(t Transformer) bool {
	_, ok := t.(identity)
	return ok
}
