package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/prepvox/PrepVox/internal/genai"
	"github.com/prepvox/PrepVox/internal/models"
	"github.com/prepvox/PrepVox/internal/store"
)

// The five fixed scoring categories every feedback record carries.
var feedbackCategories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem-Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

const feedbackSystemPrompt = "You are a professional interviewer analyzing a mock interview. " +
	"Your task is to evaluate the candidate based on structured categories"

const feedbackPromptTemplate = `You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient. If there are mistakes, point them out.

Transcript:
%s

Please score the candidate from 0 to 100 in the following 5 areas:
- **Communication Skills**: Clarity, articulation, structured responses.
- **Technical Knowledge**: Understanding of key concepts for the role.
- **Problem-Solving**: Ability to analyze problems and propose solutions.
- **Cultural & Role Fit**: Alignment with company values and job role.
- **Confidence & Clarity**: Confidence in responses, engagement, and clarity.

---
IMPORTANT OUTPUT FORMATTING INSTRUCTIONS:
1.  For 'categoryScores', you MUST return a valid, single-line, minified JSON string of an array. Do not include any newlines. Example: '[{"name":"Communication Skills","score":80,"comment":"Very clear."}]'
2.  For 'strengths', you MUST return a single string containing a bulleted list (using '-'). Example: '- Good problem solving'
3.  For 'areasForImprovement', you MUST return a single string containing a bulleted list (using '-'). Example: '- Needs more detailed examples'
4.  For 'totalScore', you MUST calculate and return the average of the 5 category scores.
---`

// feedbackSchema constrains model output to the scorecard shape. The
// structured sub-fields are strings on purpose: their encoded text forms are
// the shapes stored on feedback records.
var feedbackSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"totalScore":          map[string]any{"type": "number"},
		"categoryScores":      map[string]any{"type": "string"},
		"strengths":           map[string]any{"type": "string"},
		"areasForImprovement": map[string]any{"type": "string"},
		"finalAssessment":     map[string]any{"type": "string"},
	},
	"required":             []string{"totalScore", "categoryScores", "strengths", "areasForImprovement", "finalAssessment"},
	"additionalProperties": false,
}

// scorecard is the decoded model output.
type scorecard struct {
	TotalScore          float64 `json:"totalScore"`
	CategoryScores      string  `json:"categoryScores"`
	Strengths           string  `json:"strengths"`
	AreasForImprovement string  `json:"areasForImprovement"`
	FinalAssessment     string  `json:"finalAssessment"`
}

// Generator turns a completed interview transcript into a persisted
// Feedback record and finalizes the interview.
type Generator struct {
	genai genai.ClientInterface
	store store.Store
}

// NewGenerator creates a feedback Generator.
func NewGenerator(client genai.ClientInterface, st store.Store) *Generator {
	return &Generator{genai: client, store: st}
}

// Generate scores the transcript and persists the result. When feedbackID is
// non-empty the existing record is fully replaced; otherwise a new key is
// allocated. The returned id identifies the written feedback record.
//
// After the feedback write succeeds the interview's finalized flag is set.
// If that update fails the feedback record is left in place (no rollback)
// and the failure is returned.
func (g *Generator) Generate(ctx context.Context, interviewID, userID string, transcript []models.TranscriptMessage, feedbackID string) (string, error) {
	if interviewID == "" {
		slog.Warn("Generator.Generate: missing interview id")
		return "", models.ErrEmptyInterviewID
	}
	if len(transcript) == 0 {
		slog.Warn("Generator.Generate: empty transcript", "interviewID", interviewID)
		return "", models.ErrEmptyTranscript
	}

	slog.Debug("Generator.Generate invoked", "interviewID", interviewID, "userID", userID,
		"messages", len(transcript), "replacing", feedbackID != "")

	raw, err := g.genai.GenerateObject(ctx, genai.ObjectRequest{
		System:            feedbackSystemPrompt,
		Prompt:            fmt.Sprintf(feedbackPromptTemplate, formatTranscript(transcript)),
		SchemaName:        "interview_feedback",
		SchemaDescription: "Structured scorecard for a completed mock interview",
		Schema:            feedbackSchema,
	})
	if err != nil {
		slog.Error("Generator.Generate: structured generation failed", "error", err, "interviewID", interviewID)
		return "", fmt.Errorf("feedback generation failed: %w", err)
	}

	var card scorecard
	if err := json.Unmarshal(raw, &card); err != nil {
		slog.Error("Generator.Generate: scorecard decode failed", "error", err, "interviewID", interviewID)
		return "", fmt.Errorf("failed to decode scorecard: %w", err)
	}
	if err := validateScorecard(&card); err != nil {
		slog.Error("Generator.Generate: scorecard invalid", "error", err, "interviewID", interviewID)
		return "", err
	}

	id, err := g.store.SaveFeedback(models.Feedback{
		ID:                  feedbackID,
		InterviewID:         interviewID,
		UserID:              userID,
		TotalScore:          card.TotalScore,
		CategoryScores:      card.CategoryScores,
		Strengths:           card.Strengths,
		AreasForImprovement: card.AreasForImprovement,
		FinalAssessment:     card.FinalAssessment,
	})
	if err != nil {
		slog.Error("Generator.Generate: feedback write failed", "error", err, "interviewID", interviewID)
		return "", fmt.Errorf("failed to save feedback: %w", err)
	}

	if err := g.store.MarkInterviewFinalized(interviewID); err != nil {
		// The feedback record stays; there is no compensating rollback.
		slog.Error("Generator.Generate: finalize failed after feedback write",
			"error", err, "interviewID", interviewID, "feedbackID", id)
		return "", fmt.Errorf("failed to finalize interview %s: %w", interviewID, err)
	}

	slog.Info("Generator.Generate: feedback persisted", "interviewID", interviewID, "feedbackID", id, "totalScore", card.TotalScore)
	return id, nil
}

// formatTranscript renders the ordered message sequence as one line per
// message in the "- {role}: {content}" shape embedded in the prompt.
func formatTranscript(transcript []models.TranscriptMessage) string {
	var b strings.Builder
	for _, msg := range transcript {
		fmt.Fprintf(&b, "- %s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}

// validateScorecard checks the decoded model output: exactly five categories
// with in-range scores. The total is re-derived from the category mean when
// the model's arithmetic drifts.
func validateScorecard(card *scorecard) error {
	scores := models.ParseCategoryScores(card.CategoryScores)
	if len(scores) != models.FeedbackCategoryCount {
		return fmt.Errorf("expected %d category scores, got %d", models.FeedbackCategoryCount, len(scores))
	}
	expected := make(map[string]bool, len(feedbackCategories))
	for _, name := range feedbackCategories {
		expected[name] = true
	}
	var sum float64
	for _, cs := range scores {
		if !expected[cs.Name] {
			return fmt.Errorf("unexpected category %q", cs.Name)
		}
		if cs.Score < models.MinScore || cs.Score > models.MaxScore {
			return fmt.Errorf("category %q score %v out of range", cs.Name, cs.Score)
		}
		sum += cs.Score
	}
	mean := sum / float64(models.FeedbackCategoryCount)
	if math.Abs(card.TotalScore-mean) > 0.5 {
		slog.Warn("Generator: model total score drifted from category mean, re-deriving",
			"model_total", card.TotalScore, "mean", mean)
		card.TotalScore = math.Round(mean)
	}
	return nil
}
