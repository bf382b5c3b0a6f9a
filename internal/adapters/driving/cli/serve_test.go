package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Flags(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	require.NotNil(t, serveCmd.Flags().Lookup("addr"))
	require.NotNil(t, serveCmd.Flags().Lookup("watch"))
	assert.True(t, isServer(serveCmd))
	assert.Contains(t, serveCmd.Long, "POST /api/chat")
}

func TestServeCmd_RequiresChat(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chatService = nil

	_, _, err := execute(t, "serve", "--addr", "127.0.0.1:0")
	defer func() { serveAddr = "" }()

	require.Error(t, err)
}

func TestServeCmd_RequiresAddress(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	old := settingsService
	settingsService = nil
	defer func() { settingsService = old }()

	_, _, err := execute(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no listen address")
}

func TestMCPServeCmd_Flags(t *testing.T) {
	assert.Equal(t, "serve", mcpServeCmd.Use)
	flag := mcpServeCmd.Flags().Lookup("http")
	require.NotNil(t, flag)
	assert.Empty(t, flag.DefValue)
	assert.True(t, isServer(mcpServeCmd))
	assert.Contains(t, mcpServeCmd.Long, "ribo mcp serve")
}

func TestMCPServeCmd_RequiresSearch(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, _, err := execute(t, "mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating ports")
}
