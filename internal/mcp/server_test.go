package mcp

import "testing"

func TestNewServerRequiresEngine(t *testing.T) {
	if _, err := NewServer(&Config{Name: "swarmlod", Version: "dev"}, nil); err == nil {
		t.Error("NewServer with nil engine should fail")
	}
}

func TestNewServerWithoutDataDir(t *testing.T) {
	server := setupTestServer(t)
	if server.toolLimiters == nil {
		t.Error("tool limiters should be initialized")
	}
}
