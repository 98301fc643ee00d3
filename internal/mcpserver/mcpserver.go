package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/StudyMentor/internal/auth"
	"github.com/akolanti/StudyMentor/internal/domain/apperr"
	"github.com/akolanti/StudyMentor/internal/domain/commonModels"
	"github.com/akolanti/StudyMentor/internal/rag"
	"github.com/akolanti/StudyMentor/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PrincipalResolver func(ctx context.Context, req *mcp.CallToolRequest) (commonModels.Principal, error)

type Server struct {
	rag       rag.Service
	resolve   PrincipalResolver
	mcpServer *mcp.Server
	logger    *logger_i.Logger
}

type searchInput struct {
	Query string `json:"query" jsonschema:"text to look up in the caller's indexed study material"`
}

type searchOutput struct {
	Results []commonModels.SearchHit `json:"results"`
}

type questionInput struct {
	Case          int    `json:"case" jsonschema:"0 for objective, 1 for subjective"`
	Question      string `json:"question"`
	Choices       any    `json:"choices" jsonschema:"option list, or the blank sentinel string for subjective questions"`
	CorrectAnswer any    `json:"correct_answer" jsonschema:"0-based option index for objective questions, answer text otherwise"`
	Explanation   string `json:"explanation,omitempty"`
	Intent        string `json:"intent,omitempty"`
}

type gradeItemInput struct {
	Question questionInput `json:"question"`
	Answer   string        `json:"answer" jsonschema:"the learner's answer"`
}

type gradeInput struct {
	Items []gradeItemInput `json:"items"`
}

type gradeOutput struct {
	Results []commonModels.GradingResult `json:"results"`
}

func New(ragService rag.Service, verifier auth.Verifier) *Server {
	s := &Server{
		rag:     ragService,
		resolve: HeaderPrincipal(verifier),
		logger:  logger_i.NewLogger("MCP"),
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: "study-mentor", Version: "v1.0.0"}, nil)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_study_material",
		Description: "Returns the three passages of the caller's uploaded study material closest to the query.",
	}, s.search)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "grade_answers",
		Description: "Grades answers to generated questions. Results keep input order; a failed item carries its own error.",
	}, s.grade)
	return s
}

func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
}

// HeaderPrincipal verifies the bearer token of the HTTP request carrying the tool call,
// falling back to a principal already placed on ctx.
func HeaderPrincipal(verifier auth.Verifier) PrincipalResolver {
	return func(ctx context.Context, req *mcp.CallToolRequest) (commonModels.Principal, error) {
		if p, ok := auth.PrincipalFrom(ctx); ok {
			return p, nil
		}
		token := ""
		if req != nil && req.Extra != nil && req.Extra.Header != nil {
			if f := strings.Fields(req.Extra.Header.Get("Authorization")); len(f) == 2 && strings.EqualFold(f[0], "Bearer") {
				token = f[1]
			}
		}
		return verifier.Verify(ctx, token)
	}
}

func (s *Server) search(ctx context.Context, req *mcp.CallToolRequest, in searchInput) (*mcp.CallToolResult, searchOutput, error) {
	principal, err := s.resolve(ctx, req)
	if err != nil {
		return nil, searchOutput{}, toolError(err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, searchOutput{}, toolError(apperr.Validation("mcp.search", "query is required"))
	}
	hits, err := s.rag.Search(ctx, principal, in.Query)
	if err != nil {
		s.logger.WithTrace(ctx).Error("search tool failed", "userId", principal.UserId, "error", err)
		return nil, searchOutput{}, toolError(err)
	}
	if hits == nil {
		hits = []commonModels.SearchHit{}
	}
	return nil, searchOutput{Results: hits}, nil
}

func (s *Server) grade(ctx context.Context, req *mcp.CallToolRequest, in gradeInput) (*mcp.CallToolResult, gradeOutput, error) {
	principal, err := s.resolve(ctx, req)
	if err != nil {
		return nil, gradeOutput{}, toolError(err)
	}
	items, err := toGradingItems(in.Items)
	if err != nil {
		return nil, gradeOutput{}, toolError(apperr.Validation("mcp.grade", "invalid item: %v", err))
	}
	results, err := s.rag.GradeAnswers(ctx, principal, items)
	if err != nil {
		s.logger.WithTrace(ctx).Error("grade tool failed", "userId", principal.UserId, "error", err)
		return nil, gradeOutput{}, toolError(err)
	}
	return nil, gradeOutput{Results: results}, nil
}

// toGradingItems round-trips through JSON so the domain decoders enforce the choices and answer shapes.
func toGradingItems(in []gradeItemInput) ([]commonModels.GradingItem, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var items []commonModels.GradingItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	for i, it := range items {
		if err := it.Question.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return items, nil
}

func toolError(err error) error {
	return fmt.Errorf("%s: %s", apperr.KindOf(err), apperr.PublicMessage(err))
}
