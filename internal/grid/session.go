package grid

import (
	"context"
	"sync"
)

// Session shares the two master layers between the lookups of one call, so a list
// conversion reads each master at most once. Zone square layers are never shared: each
// lookup acquires and releases its own extraction. A Session is safe for concurrent use.
type Session struct {
	loader *Loader

	wrsMu sync.Mutex
	wrs   *Layer[WrsFeature]

	zoneMu sync.Mutex
	zones  *Layer[ZoneFeature]
}

// NewSession starts a session on l.
func (l *Loader) NewSession() *Session {
	return &Session{loader: l}
}

// Loader returns the session's loader.
func (s *Session) Loader() *Loader {
	return s.loader
}

// WRSMaster loads the WRS-2 master on first use. Only a successful load is kept, so a
// load cut short by a cancelled context is retried by the next caller.
func (s *Session) WRSMaster(ctx context.Context) (*Layer[WrsFeature], error) {
	s.wrsMu.Lock()
	defer s.wrsMu.Unlock()
	if s.wrs == nil {
		layer, err := s.loader.WRSMaster(ctx)
		if err != nil {
			return nil, err
		}
		s.wrs = layer
	}
	return s.wrs, nil
}

// ZoneMaster loads the grid-zone master on first use.
func (s *Session) ZoneMaster(ctx context.Context) (*Layer[ZoneFeature], error) {
	s.zoneMu.Lock()
	defer s.zoneMu.Unlock()
	if s.zones == nil {
		layer, err := s.loader.ZoneMaster(ctx)
		if err != nil {
			return nil, err
		}
		s.zones = layer
	}
	return s.zones, nil
}

// WithZoneSquares delegates to the loader.
func (s *Session) WithZoneSquares(ctx context.Context, zone string, fn func(*Layer[SquareFeature]) error) error {
	return s.loader.WithZoneSquares(ctx, zone, fn)
}
