package analyst

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// Summary is the audit assessment returned by the model.
type Summary struct {
	ThreatLevel     string   `json:"threatLevel"`
	PCICompliance   string   `json:"pciCompliance"`
	Observations    []string `json:"observations"`
	Recommendations []string `json:"recommendations"`
}

// Analyst produces an optional summary of recent logs. A nil summary with a
// nil error means the feature is unavailable; callers must not depend on it.
type Analyst interface {
	Summarize(ctx context.Context, logs []types.AccessEvent, audit bool) (*Summary, error)
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Summarize(context.Context, []types.AccessEvent, bool) (*Summary, error) {
	return nil, nil
}

var errNoContent = errors.New("model returned no content")

const (
	socPrompt   = "You are a security operations center analyst. Return ONLY JSON."
	auditPrompt = "You are a PCI-DSS QSA. Analyze logs for Requirement 10 compliance. Return ONLY JSON."

	userPrompt = `Analyze these access logs: %s.
Provide a security assessment in JSON format. Include:
1. "threatLevel": (low, medium, high)
2. "pciCompliance": (Compliant, At Risk, Non-Compliant)
3. "observations": Specific audit findings.
4. "recommendations": Actions for the audit team.`
)

// OpenAI asks a chat completion model for the summary. Any failure is
// logged and reported as an unavailable summary.
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewOpenAI(apiKey, model string, logger *zap.Logger, opts ...option.RequestOption) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAI{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// New returns an OpenAI analyst when apiKey is set and Disabled otherwise.
func New(apiKey, model string, logger *zap.Logger) Analyst {
	if apiKey == "" {
		return Disabled{}
	}
	return NewOpenAI(apiKey, model, logger)
}

type logLine struct {
	Time   string `json:"time"`
	User   string `json:"user"`
	Status string `json:"status"`
	Method string `json:"method"`
	Dept   string `json:"dept"`
}

func (a *OpenAI) Summarize(ctx context.Context, logs []types.AccessEvent, audit bool) (*Summary, error) {
	lines := make([]logLine, len(logs))
	for i, l := range logs {
		lines[i] = logLine{
			Time:   l.Timestamp.UTC().Format(time.RFC3339),
			User:   l.UserName,
			Status: string(l.Status),
			Method: string(l.Method),
			Dept:   l.Department,
		}
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode logs: %w", err)
	}

	system := socPrompt
	if audit {
		system = auditPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(fmt.Sprintf(userPrompt, payload)),
		},
	})
	if err != nil {
		a.logger.Warn("ai summary unavailable", zap.Error(err))
		return nil, nil
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		a.logger.Warn("ai summary unavailable", zap.Error(errNoContent))
		return nil, nil
	}

	s, err := ExtractSummary(resp.Choices[0].Message.Content)
	if err != nil {
		a.logger.Warn("ai summary unparseable", zap.Error(err))
		return nil, nil
	}
	return s, nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractSummary decodes text as a Summary, falling back to the outermost
// {...} block when the model wrapped the JSON in prose or code fences.
func ExtractSummary(text string) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return &s, nil
	}
	m := jsonObject.FindString(text)
	if m == "" {
		return nil, fmt.Errorf("no JSON object in %d bytes of output", len(text))
	}
	if err := json.Unmarshal([]byte(m), &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}
