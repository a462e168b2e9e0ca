package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLoopback(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"localhost", "host.docker.internal"},
		{"127.0.0.1", "host.docker.internal"},
		{"::1", "host.docker.internal"},
		{"mysql.internal", "mysql.internal"},
		{"192.168.1.100", "192.168.1.100"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, resolveLoopback(tt.input), tt.input)
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	for _, host := range []string{"pg.example.com", "10.0.0.5", "host.docker.internal"} {
		assert.Equal(t, host, ResolveHostForDocker(host))
	}
}
