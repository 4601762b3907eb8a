package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("StockGrader", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("address", ServiceURL(config)).
		Str("provider", string(config.LLM.DefaultProvider)).
		Str("storage", config.Storage.Badger.Path).
		Msg("Service configuration")
}

// ServiceURL returns the base URL the HTTP service listens on
func ServiceURL(config *Config) string {
	return fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
}
