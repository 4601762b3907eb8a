package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/stockgrader/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = t.TempDir()
	return cfg
}

func TestNew(t *testing.T) {
	application, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	assert.Equal(t, "gemini", application.Provider.Name())
	assert.NotNil(t, application.Sessions)
	assert.NotNil(t, application.AnalysisService)
	assert.NotNil(t, application.ReportService)
	assert.NotNil(t, application.PageHandler)
	assert.NotNil(t, application.WSHandler)
}

func TestNew_Claude(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.DefaultProvider = common.LLMProviderClaude

	application, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	assert.Equal(t, "claude", application.Provider.Name())
	assert.Equal(t, cfg.Claude.Model, application.Provider.Model())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Chat.SweepSchedule = "every now and then"

	_, err := New(cfg, arbor.NewLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
