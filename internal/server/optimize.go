package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Generator produces the optimized prompt for an admitted request. The
// engine behind it is pluggable; the server only meters it.
type Generator interface {
	Optimize(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

type GenerateRequest struct {
	Prompt  string
	Context string
}

type GenerateResult struct {
	OptimizedPrompt string   `json:"optimized_prompt"`
	Notes           []string `json:"notes,omitempty"`
}

type optimizeRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
}

func (s *Server) Optimize(c *gin.Context) {
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		AbortWithError(c, newValidationError("prompt", "MISSING_DATA", "prompt is required"))
		return
	}

	ctx := c.Request.Context()
	result, err := s.generator.Optimize(ctx, GenerateRequest{
		Prompt:  prompt,
		Context: strings.TrimSpace(req.Context),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Quota is consumed only once the work has actually been produced;
	// a failed generation costs the user nothing.
	if err := s.quotaSvc.Increment(ctx, principal.User.ID); err != nil {
		s.log.Error("usage increment failed",
			zap.Int64("user_id", int64(principal.User.ID)),
			zap.Error(err),
		)
	} else {
		principal.User.UsageCount++
	}

	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"usage":  s.quotaSvc.Summarize(principal.User),
	})
}

// heuristicGenerator is the built-in engine used when no external one is
// wired. It applies a fixed set of prompt hygiene rewrites.
type heuristicGenerator struct{}

func NewHeuristicGenerator() Generator {
	return heuristicGenerator{}
}

func (heuristicGenerator) Optimize(_ context.Context, req GenerateRequest) (*GenerateResult, error) {
	var notes []string
	prompt := strings.TrimSpace(req.Prompt)

	if !strings.HasSuffix(prompt, ".") && !strings.HasSuffix(prompt, "?") {
		prompt += "."
		notes = append(notes, "terminated the instruction")
	}
	if req.Context != "" {
		prompt = "Context: " + req.Context + "\n\n" + prompt
		notes = append(notes, "prepended supplied context")
	}
	if len(strings.Fields(req.Prompt)) < 4 {
		prompt += " Be specific about the desired format, length, and audience."
		notes = append(notes, "short prompt, added output guidance")
	}

	return &GenerateResult{OptimizedPrompt: prompt, Notes: notes}, nil
}
