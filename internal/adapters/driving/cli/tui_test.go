package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTUICmd_Registered(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"tui"})

	require.NoError(t, err)
	assert.Same(t, tuiCmd, cmd)
}

func TestTUICmd_HelpListsControls(t *testing.T) {
	stdout, _, err := execute(t, "tui", "--help")

	require.NoError(t, err)
	assert.Contains(t, stdout, "interactive terminal user interface")
	assert.Contains(t, stdout, "Controls:")
	assert.Contains(t, stdout, "ctrl+x")
	assert.Contains(t, stdout, "new search")
}

func TestTUIPorts(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ports := tuiPorts()

	require.NoError(t, ports.Validate())
	assert.Equal(t, chatService, ports.Chat)
	assert.Equal(t, searchService, ports.Search)
	assert.Equal(t, ingestionService, ports.Ingestion)
	assert.Equal(t, memoryService, ports.Memory)
	assert.Equal(t, "data", ports.DataDir)
}

func TestTUIPorts_MissingChat(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	chatService = nil

	assert.Error(t, tuiPorts().Validate())
}
