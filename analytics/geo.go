// Package analytics turns resolver requests into privacy-filtered click and
// view events and writes them off the request path.
package analytics

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Location is the coarse geography kept for an event
type Location struct {
	Country string // ISO 3166-1 alpha-2
	City    string // English name
}

// GeoLocator maps a client address to a coarse location.
// The address itself is never returned or retained.
type GeoLocator interface {
	Lookup(ip net.IP) Location
	Close() error
}

// NoopLocator is used when no GeoIP database is configured
type NoopLocator struct{}

func (NoopLocator) Lookup(net.IP) Location { return Location{} }
func (NoopLocator) Close() error { return nil }

// MaxMindLocator resolves addresses against a GeoLite2/GeoIP2 City database
type MaxMindLocator struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens a City database from disk
func OpenMaxMind(path string) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindLocator{reader: reader}, nil
}

// Lookup returns country and city, or an empty Location for unknown or private addresses
func (m *MaxMindLocator) Lookup(ip net.IP) Location {
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return Location{}
	}
	record, err := m.reader.City(ip)
	if err != nil {
		log.Debug().Err(err).Msg("GeoIP lookup failed")
		return Location{}
	}
	return Location{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}
}

// Close releases the database
func (m *MaxMindLocator) Close() error {
	return m.reader.Close()
}

// NewLocator returns a MaxMind locator for path, or a NoopLocator when path
// is empty or the database cannot be opened
func NewLocator(path string) GeoLocator {
	if path == "" {
		return NoopLocator{}
	}
	locator, err := OpenMaxMind(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("GeoIP database unavailable, events will carry no location")
		return NoopLocator{}
	}
	log.Info().Str("path", path).Msg("GeoIP database loaded")
	return locator
}
