package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAnalyzeStockTool returns the analyze_stock tool definition
func createAnalyzeStockTool() mcp.Tool {
	return mcp.NewTool("analyze_stock",
		mcp.WithDescription("Run a rubric-scored long-term investment analysis of a listed company and return the markdown report"),
		mcp.WithString("company_name",
			mcp.Required(),
			mcp.Description("Company name or ticker, e.g. 삼성전자 or 005930"),
		),
	)
}

// createGetAnalysisTool returns the get_analysis tool definition
func createGetAnalysisTool() mcp.Tool {
	return mcp.NewTool("get_analysis",
		mcp.WithDescription("Retrieve a stored analysis report by ID"),
		mcp.WithString("analysis_id",
			mcp.Required(),
			mcp.Description("Analysis ID (format: ana_{uuid})"),
		),
	)
}

// createListAnalysesTool returns the list_analyses tool definition
func createListAnalysesTool() mcp.Tool {
	return mcp.NewTool("list_analyses",
		mcp.WithDescription("List recent analyses, newest first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
	)
}

// createGradeScoreTool returns the grade_score tool definition
func createGradeScoreTool() mcp.Tool {
	return mcp.NewTool("grade_score",
		mcp.WithDescription("Map a 0-100 total score to its letter grade and recommendation"),
		mcp.WithNumber("total",
			mcp.Required(),
			mcp.Description("Total rubric score"),
		),
	)
}
