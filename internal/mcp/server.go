// Package mcp exposes the recommendation engine and note analyzer as
// Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/medical-scribe-server/internal/domain"
	"github.com/medical-scribe-server/internal/notestore"
	"github.com/medical-scribe-server/internal/service"
)

const (
	defaultServerName    = "medical-scribe"
	defaultServerVersion = "1.0.0"
)

// Analyzer turns a transcript into a structured note
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*service.AnalyzeResult, error)
}

// Dependencies for the tool server. Analyzer and Store may be nil: without
// an analyzer analyze_transcript reports a configuration error, without a
// store analyzed notes are not persisted.
type Dependencies struct {
	Analyzer Analyzer
	Engine   *service.RecommendationEngine
	Store    notestore.Store
	Usage    domain.UsageLedger
	Logger   *logrus.Logger
}

// Server is the medical scribe MCP server
type Server struct {
	mcpServer *mcp.Server
	deps      Dependencies
	logger    *logrus.Logger
	toolNames []string
}

// NewServer creates the MCP server and registers its tools
func NewServer(cfg domain.MCPConfig, deps Dependencies) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Engine == nil {
		deps.Engine = service.NewRecommendationEngine()
	}

	info := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}
	if info.Name == "" {
		info.Name = defaultServerName
	}
	if info.Version == "" {
		info.Version = defaultServerVersion
	}

	server := &Server{
		mcpServer: mcp.NewServer(info, nil),
		deps:      deps,
		logger:    deps.Logger,
	}

	if err := server.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return server, nil
}

// Start serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("tools", s.toolNames).Info("Starting medical scribe MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// ToolNames lists the registered tools in registration order
func (s *Server) ToolNames() []string {
	names := make([]string, len(s.toolNames))
	copy(names, s.toolNames)
	return names
}

func (s *Server) registerTools() error {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolGenerateRecommendations,
		Description: "Generate prioritized clinical recommendations (differential diagnoses, severity, tests, follow-up, patient education, drug interactions) from a structured SOAP clinical note.",
	}, s.handleGenerateRecommendations)
	s.toolNames = append(s.toolNames, ToolGenerateRecommendations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolAnalyzeTranscript,
		Description: "Convert a Japanese doctor-patient conversation transcript into a structured SOAP clinical note with recommendations and token usage.",
	}, s.handleAnalyzeTranscript)
	s.toolNames = append(s.toolNames, ToolAnalyzeTranscript)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolExtractSpeechText,
		Description: "Build the read-aloud text (subjective, objective, assessment, plan) for a structured SOAP clinical note.",
	}, s.handleExtractSpeechText)
	s.toolNames = append(s.toolNames, ToolExtractSpeechText)

	s.logger.WithField("tool_count", len(s.toolNames)).Debug("Registered MCP tools")
	return nil
}
