package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
)

// ExamJSONSchema describes the JSON the extraction model must return.
// Metadata is optional; a missing description yields exams.UnknownExamName.
func ExamJSONSchema() map[string]any {
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": true,
		"required":             []any{"questions"},
		"properties": map[string]any{
			"test_data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"test_description": map[string]any{"type": "string"},
					"test_time":        map[string]any{"type": "string"},
				},
			},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"question_number", "question_data", "answers"},
					"properties": map[string]any{
						"question_number": map[string]any{"type": "integer"},
						"question_data":   map[string]any{"type": "string"},
						"answers": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":     "object",
								"required": []any{"answer"},
								"properties": map[string]any{
									"answer": map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func examSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(ExamJSONSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("exam.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("exam.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// Parse validates raw model output and decodes it. Output flagged as an
// error by the model, or carrying no questions, yields ErrNotAnExam.
func Parse(raw []byte) (*exams.ExamData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrNotAnExam
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	if isErrorVerdict(v) {
		return nil, ErrNotAnExam
	}

	schema, err := examSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("model output does not match schema: %w", err)
	}

	var data exams.ExamData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode exam data: %w", err)
	}
	if len(data.Questions) == 0 {
		return nil, ErrNotAnExam
	}
	return &data, nil
}

// isErrorVerdict recognizes {"test_data": "error"} and {"status": "error"}.
func isErrorVerdict(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	for _, key := range []string{"test_data", "status"} {
		if s, ok := obj[key].(string); ok && strings.EqualFold(s, "error") {
			return true
		}
	}
	return false
}
