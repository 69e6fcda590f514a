package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
)

const (
	questionsSheet = "Questions"
	detailsSheet   = "Exam"
)

// ExamXLSX renders an exam as a workbook: one row per question with its
// shuffled answers and the correct answer, plus a details sheet.
func ExamXLSX(exam *exams.Exam) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", questionsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(detailsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	maxAnswers := 0
	for _, q := range exam.Data.Questions {
		maxAnswers = max(maxAnswers, len(q.Answers))
	}

	headers := []any{"#", "Question"}
	for i := 1; i <= maxAnswers; i++ {
		headers = append(headers, fmt.Sprintf("Answer %d", i))
	}
	headers = append(headers, "Correct Answer")
	if err := f.SetSheetRow(questionsSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, q := range exam.Data.Questions {
		row := make([]any, 0, maxAnswers+3)
		row = append(row, q.Number, q.Text)
		for j := 0; j < maxAnswers; j++ {
			if j < len(q.Answers) {
				row = append(row, q.Answers[j].Text)
			} else {
				row = append(row, "")
			}
		}
		correct := ""
		if q.CorrectAnswer != nil {
			correct = q.CorrectAnswer.Text
		}
		row = append(row, correct)

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(questionsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write question %d: %w", q.Number, err)
		}
	}

	_ = f.SetColWidth(questionsSheet, "A", "A", 6)
	_ = f.SetColWidth(questionsSheet, "B", "B", 60)

	details := [][]any{
		{"Exam", exam.Name},
		{"Description", exam.Data.TestData.Description},
		{"Time", exam.Data.TestData.Time},
		{"Questions", len(exam.Data.Questions)},
		{"Created", exam.CreatedAt.UTC().Format("2006-01-02 15:04")},
	}
	for i, d := range details {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(detailsSheet, cell, &d); err != nil {
			return nil, fmt.Errorf("write details: %w", err)
		}
	}
	_ = f.SetColWidth(detailsSheet, "A", "A", 14)
	_ = f.SetColWidth(detailsSheet, "B", "B", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
