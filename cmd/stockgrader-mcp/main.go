package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/stockgrader/internal/app"
	"github.com/ternarybob/stockgrader/internal/common"
)

func main() {
	configPath := os.Getenv("STOCKGRADER_CONFIG")
	if configPath == "" {
		if _, err := os.Stat("stockgrader.toml"); err == nil {
			configPath = "stockgrader.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs stay minimal
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"stockgrader",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	tools := newToolSet(application.AnalysisService, application.Sessions, application.ReportService, logger)
	mcpServer.AddTool(createAnalyzeStockTool(), tools.handleAnalyzeStock)
	mcpServer.AddTool(createGetAnalysisTool(), tools.handleGetAnalysis)
	mcpServer.AddTool(createListAnalysesTool(), tools.handleListAnalyses)
	mcpServer.AddTool(createGradeScoreTool(), tools.handleGradeScore)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
