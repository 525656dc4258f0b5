package fetch

import (
	"math/rand/v2"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Rotator hands out proxy URLs round-robin. It implements the
// rotate-then-direct policy: callers try the next proxy first and fall
// back to a direct connection when the proxied attempt fails or when
// no proxies are configured.
type Rotator struct {
	mu      sync.Mutex
	proxies []string
	idx     int
}

// LoadRotator reads a proxy list file with one entry per line, either
// "host:port" or "host:port:user:pass". A missing or empty file yields
// a direct-only rotator.
func LoadRotator(path string) *Rotator {
	r := &Rotator{}
	data, err := os.ReadFile(path)
	if err != nil {
		return r
	}
	for _, entry := range strings.Fields(string(data)) {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		switch len(parts) {
		case 2:
			r.proxies = append(r.proxies, "http://"+parts[0]+":"+parts[1])
		case 4:
			r.proxies = append(r.proxies, "http://"+parts[2]+":"+parts[3]+"@"+parts[0]+":"+parts[1])
		}
	}
	rand.Shuffle(len(r.proxies), func(i, j int) {
		r.proxies[i], r.proxies[j] = r.proxies[j], r.proxies[i]
	})
	if len(r.proxies) > 0 {
		zap.L().Info("fetch: proxy pool loaded", zap.Int("proxies", len(r.proxies)))
	}
	return r
}

// Next returns the next proxy URL, or "" when only direct connections
// are available.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.proxies) == 0 {
		return ""
	}
	r.idx = (r.idx + 1) % len(r.proxies)
	return r.proxies[r.idx]
}

// DirectOnly reports whether the rotator has no proxies configured.
func (r *Rotator) DirectOnly() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proxies) == 0
}
