// Package llm runs candidate extraction against a model provider and
// leaves a full request/response audit trail in the run directory.
package llm

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fsc-watch/internal/runio"
	"github.com/sells-group/fsc-watch/pkg/anthropic"
)

// Provider is the model surface extraction depends on.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, system, user string) (string, error)
}

// AnthropicProvider adapts pkg/anthropic to the Provider interface.
type AnthropicProvider struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Invoke sends one system+user exchange and returns the concatenated
// text output.
func (p *AnthropicProvider) Invoke(ctx context.Context, system, user string) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	resp, err := p.Client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogUsage(p.Model, "extract")
	return resp.Text(), nil
}

// ExtractionParams describes one extraction call.
type ExtractionParams struct {
	Provider     Provider
	Model        string
	Carrier      string
	SourceID     string
	ArtifactType string
	ArtifactText string
	OutDir       string
}

// ExtractionResult carries the raw candidate JSON plus audit paths.
type ExtractionResult struct {
	Candidate    json.RawMessage
	RequestPath  string
	ResponsePath string
}

type requestRecord struct {
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	CreatedAt    string `json:"created_at"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// Extract runs one candidate extraction. The request record is written
// before the provider call so a failed call still leaves its audit
// trail; the response is written only after the output parses as JSON.
func Extract(ctx context.Context, params ExtractionParams) (*ExtractionResult, error) {
	userPrompt := BuildUserPrompt(UserPromptParams{
		Carrier:      params.Carrier,
		SourceID:     params.SourceID,
		ArtifactType: params.ArtifactType,
		ArtifactText: params.ArtifactText,
	})

	requestPath := filepath.Join(params.OutDir, runio.RequestFile)
	if err := runio.WriteJSON(requestPath, requestRecord{
		Model:        params.Model,
		Provider:     params.Provider.Name(),
		CreatedAt:    runio.NowUTCISOSeconds(),
		SystemPrompt: SystemPrompt,
		UserPrompt:   userPrompt,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("running extraction",
		zap.String("provider", params.Provider.Name()),
		zap.String("model", params.Model),
		zap.String("source_id", params.SourceID),
		zap.Int("artifact_chars", len(params.ArtifactText)),
	)

	output, err := params.Provider.Invoke(ctx, SystemPrompt, userPrompt)
	if err != nil {
		return nil, eris.Wrapf(err, "llm: extraction for %s", params.SourceID)
	}

	candidate := json.RawMessage(output)
	if !json.Valid(candidate) {
		return nil, eris.Errorf("llm: output for %s is not valid JSON", params.SourceID)
	}

	responsePath := filepath.Join(params.OutDir, runio.ResponseFile)
	if err := runio.WriteJSON(responsePath, candidate); err != nil {
		return nil, err
	}

	return &ExtractionResult{
		Candidate:    candidate,
		RequestPath:  requestPath,
		ResponsePath: responsePath,
	}, nil
}
