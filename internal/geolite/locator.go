package geolite

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	unknownCountry   = "N/A"
	dnsLookupTimeout = 2 * time.Second
	dnsCacheTTL      = 30 * time.Minute
)

// Locator resolves where a client address comes from. Both lookups degrade
// to empty answers when their source is unavailable.
type Locator struct {
	mu        sync.RWMutex
	countryDB *geoip2.Reader

	resolver  *net.Resolver
	dnsCache  *cache.Cache
	dnsLookup singleflight.Group
}

// Open loads the GeoLite2-Country database at path. An empty path yields a
// locator that only answers reverse DNS.
func Open(path string) (*Locator, error) {
	locator := &Locator{
		resolver: net.DefaultResolver,
		dnsCache: cache.New(dnsCacheTTL, dnsCacheTTL),
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return locator, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geolite: read country database: %w", err)
	}
	reader, err := geoip2.FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("geolite: open country database: %w", err)
	}
	locator.countryDB = reader

	log.Info("GeoLite country database loaded", "path", path, "build", reader.Metadata().BuildEpoch)
	return locator, nil
}

func (l *Locator) Available() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.countryDB != nil
}

// CountryCode returns the ISO code of ip, or "N/A".
func (l *Locator) CountryCode(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() {
		return unknownCountry
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.countryDB == nil {
		return unknownCountry
	}

	record, err := l.countryDB.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return unknownCountry
	}
	return record.Country.IsoCode
}

// Hostname returns the first PTR name of ip without its trailing dot.
// Failures are cached as empty answers.
func (l *Locator) Hostname(ctx context.Context, ip string) string {
	if net.ParseIP(ip) == nil {
		return ""
	}
	if cached, ok := l.dnsCache.Get(ip); ok {
		return cached.(string)
	}

	result, _, _ := l.dnsLookup.Do(ip, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, dnsLookupTimeout)
		defer cancel()

		name := ""
		if names, err := l.resolver.LookupAddr(lookupCtx, ip); err == nil && len(names) > 0 {
			name = strings.TrimSuffix(names[0], ".")
		}
		l.dnsCache.SetDefault(ip, name)
		return name, nil
	})

	name, _ := result.(string)
	return name
}

func (l *Locator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.countryDB == nil {
		return nil
	}
	err := l.countryDB.Close()
	l.countryDB = nil
	return err
}
