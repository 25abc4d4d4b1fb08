package proxy

import (
	"math/rand"
	"sync"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// Manager handles the rotation of outbound proxies and user agents for the
// transports that talk to the marketplace directly.
type Manager struct {
	proxies    []string
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
}

// NewManager builds a rotator. An empty userAgents list falls back to a
// built-in set of desktop browsers.
func NewManager(proxies, userAgents []string) *Manager {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	return &Manager{proxies: proxies, userAgents: userAgents}
}

// Proxy returns a proxy URL from the list, rotating sequentially, or "" when
// none are configured.
func (m *Manager) Proxy() string {
	if m == nil || len(m.proxies) == 0 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return p
}

// UserAgent returns a random user agent string.
func (m *Manager) UserAgent() string {
	if m == nil {
		return defaultUserAgents[0]
	}
	return m.userAgents[rand.Intn(len(m.userAgents))]
}
