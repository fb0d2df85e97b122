package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

var _ core.AnalysisProvider = (*GeminiAnalyzer)(nil)

// GeminiAnalyzer scores a candidate document against a job description and
// derives improvement recommendations.
type GeminiAnalyzer struct {
	client    *genai.Client
	modelName string
}

func NewGeminiAnalyzer(ctx context.Context, apiKey, modelName string) (*GeminiAnalyzer, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiAnalyzer{client: cl, modelName: modelName}, nil
}

func (g *GeminiAnalyzer) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

const analyzeSystemPrompt = `You are a technical recruiter evaluating a candidate document against a job description.
Respond with JSON only, no markdown fences, matching exactly:
{"score": <0-100 integer>, "fit_label": "<strong|good|partial|weak>",
 "strengths": ["..."], "weaknesses": ["..."],
 "profile": {"job_title": "...", "years_experience": <integer>, "skills": ["..."], "education": "...", "summary": "..."}}
Leave profile fields empty when the document does not state them.`

func (g *GeminiAnalyzer) Analyze(ctx context.Context, job *models.Job, candidateText string) (*models.AnalysisResult, error) {
	prompt := fmt.Sprintf(
		"JOB TITLE:\n%s\n\nJOB DESCRIPTION:\n%s\n\nREQUIREMENTS:\n%s\n\nCANDIDATE DOCUMENT:\n%s",
		job.Title, job.Description, job.Requirements, candidateText,
	)

	raw, err := g.generate(ctx, analyzeSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("analysis call: %w", core.ErrExternalUnavailable)
	}

	var res models.AnalysisResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &res); err != nil {
		return nil, fmt.Errorf("parse analysis result: %w", err)
	}
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	return &res, nil
}

const recommendSystemPrompt = `You are a career coach. Given an evaluation of a candidate against a job,
write short, concrete advice the candidate can act on to improve their fit. Plain text, no lists of more than five items.`

func (g *GeminiAnalyzer) Recommend(ctx context.Context, job *models.Job, res *models.AnalysisResult) (string, error) {
	prompt := fmt.Sprintf(
		"JOB: %s at %s\nSCORE: %d (%s)\nSTRENGTHS: %s\nWEAKNESSES: %s",
		job.Title, job.CompanyName, res.Score, res.FitLabel,
		strings.Join(res.Strengths, "; "), strings.Join(res.Weaknesses, "; "),
	)

	out, err := g.generate(ctx, recommendSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("recommend call: %w", core.ErrExternalUnavailable)
	}
	return strings.TrimSpace(out), nil
}

func (g *GeminiAnalyzer) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini generate: empty response")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// stripFences tolerates models that wrap JSON in markdown fences anyway.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
