package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager_ProxyRotation(t *testing.T) {
	m := NewManager([]string{"http://p1:8000", "http://p2:8000"}, nil)

	assert.Equal(t, "http://p1:8000", m.Proxy())
	assert.Equal(t, "http://p2:8000", m.Proxy())
	assert.Equal(t, "http://p1:8000", m.Proxy())
}

func TestManager_NoProxies(t *testing.T) {
	assert.Empty(t, NewManager(nil, nil).Proxy())

	var m *Manager
	assert.Empty(t, m.Proxy())
	assert.NotEmpty(t, m.UserAgent())
}

func TestManager_UserAgent(t *testing.T) {
	m := NewManager(nil, []string{"agent-a", "agent-b"})
	for i := 0; i < 20; i++ {
		assert.Contains(t, []string{"agent-a", "agent-b"}, m.UserAgent())
	}
	assert.Contains(t, defaultUserAgents, NewManager(nil, nil).UserAgent())
}
