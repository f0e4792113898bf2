package services

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"vpuppets-console/system"
)

// GeoIPService resolves attacker addresses to ISO country codes from a
// MaxMind database. Without a database every lookup returns "".
type GeoIPService struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
	path   string
}

// NewGeoIPService opens the database at path. An empty path yields a
// disabled service.
func NewGeoIPService(path string) (*GeoIPService, error) {
	g := &GeoIPService{path: path}
	if path == "" {
		return g, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return g, fmt.Errorf("open GeoIP database %s: %w", path, err)
	}
	g.reader = reader
	system.Info("GeoIP database loaded: %s", path)
	return g, nil
}

// Enabled reports whether a database is loaded
func (g *GeoIPService) Enabled() bool {
	if g == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.reader != nil
}

// Country returns the ISO code of ip, "" when unknown
func (g *GeoIPService) Country(ip string) string {
	if g == nil {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.reader == nil {
		return ""
	}
	record, err := g.reader.Country(parsed)
	if err != nil {
		system.Debug("GeoIP lookup failed for %s: %v", ip, err)
		return ""
	}
	return record.Country.IsoCode
}

// Countries resolves a batch, leaving out addresses with no answer
func (g *GeoIPService) Countries(ips []string) map[string]string {
	out := make(map[string]string)
	if !g.Enabled() {
		return out
	}
	for _, ip := range ips {
		if code := g.Country(ip); code != "" {
			out[ip] = code
		}
	}
	return out
}

func (g *GeoIPService) Close() error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reader == nil {
		return nil
	}
	err := g.reader.Close()
	g.reader = nil
	return err
}
