package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
)

const extractionPrompt = `Extract all closed questions with answer options from the provided exam PDF.
If it is not a closed-question exam, return {"exam_name": "<name>", "status": "error"} as JSON.

Rules:
- Copy the full question text, including any data, graphs, or tables.
- Remove all enumeration or label symbols like "a. ", "b. ", "א. " from the answers.
- Format code snippets or blocks with <pre dir="ltr" style="text-align:left"><code>...</code></pre> tags, preserving tabs and whitespace. Add <br> tags to maintain line breaks.
- If the PDF is unrelated or does not contain exam questions, return {"test_data": "error"} as JSON.
- List the correct answer first for every question.
- The output must be valid JSON exactly matching this schema:
- test_data: {
    test_description: string (e.g. "Physics Exam | 21/06/2025"). Keep the exam name in its original language. Format the date as day/month/year.
    test_time: string in hours and minutes (e.g. "3:30 Hours")
  }
- questions: list of objects with:
    - question_number: integer
    - question_data: string (full question text, excluding answers)
    - answers: list of objects each with:
        - answer: string (clean answer text without enumeration)

Now extract from the following PDF:`

// GeminiConfig configures the Gemini extractor.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini implements Extractor with the Google Gen AI SDK.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model, logger: logger}, nil
}

func (g *Gemini) Extract(ctx context.Context, pdf []byte) (*exams.ExamData, error) {
	rid := uuid.NewString()
	start := time.Now()

	g.logger.Info("extract.start",
		zap.String("req_id", rid),
		zap.String("model", g.model),
		zap.Int("pdf_bytes", len(pdf)),
	)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(pdf, "application/pdf"),
			genai.NewPartFromText(extractionPrompt),
		}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		g.logger.Error("extract.generate_failed",
			zap.String("req_id", rid),
			zap.Error(err),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	raw := []byte(resp.Text())
	data, err := Parse(raw)
	if err != nil {
		g.logger.Warn("extract.parse_failed",
			zap.String("req_id", rid),
			zap.Error(err),
			zap.Int("raw_bytes", len(raw)),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
		return nil, err
	}

	shuffled := Shuffle(*data, nil)
	g.logger.Info("extract.ok",
		zap.String("req_id", rid),
		zap.String("exam", shuffled.DisplayName()),
		zap.Int("questions", len(shuffled.Questions)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return &shuffled, nil
}

// responseSchema mirrors ExamJSONSchema in the SDK's schema dialect.
func responseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"questions"},
		Properties: map[string]*genai.Schema{
			"test_data": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"test_description": str("Exam subject and date, displayed as '<exam name> | <day/month/year>'."),
					"test_time":        str("Exam duration in hours and minutes."),
				},
			},
			"questions": {
				Type:        genai.TypeArray,
				Description: "All closed questions in the exam.",
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"question_number", "question_data", "answers"},
					Properties: map[string]*genai.Schema{
						"question_number": {Type: genai.TypeInteger},
						"question_data":   str("The full question text without the answer options."),
						"answers": {
							Type: genai.TypeArray,
							Items: &genai.Schema{
								Type:     genai.TypeObject,
								Required: []string{"answer"},
								Properties: map[string]*genai.Schema{
									"answer": str("Answer text with enumeration symbols removed."),
								},
							},
						},
					},
				},
			},
		},
	}
}
