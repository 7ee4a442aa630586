package main

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gridconv/internal/archive"
	"github.com/sells-group/gridconv/internal/config"
	"github.com/sells-group/gridconv/internal/convert"
	"github.com/sells-group/gridconv/internal/fetcher"
	"github.com/sells-group/gridconv/internal/grid"
	"github.com/sells-group/gridconv/internal/griddata"
)

// gridEnv holds everything the conversion commands share.
type gridEnv struct {
	Layout  griddata.Layout
	Cache   *archive.Cache
	Service *convert.Service
}

// initGrid validates the config for mode and builds the archive cache, layer loader,
// and conversion service. Stale scratch directories are purged first when configured.
func initGrid(c *config.Config, mode string, keepMasters bool) (*gridEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	layout := griddata.Layout{Root: c.Grid.DataRoot}
	cache, err := archive.New(archive.Options{
		Layout:     layout,
		ScratchDir: c.Grid.ScratchDir,
		Logger:     zap.L(),
	})
	if err != nil {
		return nil, err
	}

	if c.Grid.PurgeOnStart {
		if _, err := cache.Purge(); err != nil {
			return nil, eris.Wrap(err, "purge scratch dir")
		}
	}

	loader := grid.NewLoader(grid.Options{Layout: layout, Cache: cache, Logger: zap.L()})
	svc := convert.New(convert.Options{
		Loader:      loader,
		Concurrency: c.Convert.Concurrency,
		ExportName:  c.Export.DefaultName,
		KeepMasters: keepMasters,
		Logger:      zap.L(),
	})
	return &gridEnv{Layout: layout, Cache: cache, Service: svc}, nil
}

// newFetcher builds the download router from the fetch settings.
func newFetcher(c *config.Config) *fetcher.Router {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	return fetcher.New(fetcher.Options{
		HTTP: fetcher.HTTPOptions{
			UserAgent:         c.Fetch.UserAgent,
			Timeout:           timeout,
			MaxRetries:        c.Fetch.MaxRetries,
			RequestsPerSecond: c.Fetch.RequestsPerSecond,
		},
		FTP: fetcher.FTPOptions{Timeout: timeout},
	})
}
