package exams

import (
	"errors"
	"strings"
	"time"
)

// UnknownExamName is used when the extracted metadata carries no description.
const UnknownExamName = "Unknown Exam"

var ErrNotFound = errors.New("exam not found")

// Owner identifies the user an exam is stored for.
type Owner struct {
	UserID string
	Email  string
}

// Exam is a stored extraction result.
type Exam struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserEmail string    `json:"user_email,omitempty"`
	Name      string    `json:"exam_name"`
	FileHash  string    `json:"file_hash"`
	Data      ExamData  `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// NewExam carries what is needed to create an exam.
type NewExam struct {
	Owner    Owner
	FileHash string
	Name     string
	Data     ExamData
}

// ExamData is the structured content extracted from an exam PDF.
type ExamData struct {
	TestData  TestMeta   `json:"test_data"`
	Questions []Question `json:"questions"`
}

type TestMeta struct {
	Description string `json:"test_description"`
	Time        string `json:"test_time"`
}

type Question struct {
	Number        int      `json:"question_number"`
	Text          string   `json:"question_data"`
	Answers       []Answer `json:"answers"`
	CorrectAnswer *Answer  `json:"correct_answer,omitempty"`
}

type Answer struct {
	Text string `json:"answer"`
}

// DisplayName derives the exam title from its metadata.
func (d ExamData) DisplayName() string {
	if name := strings.TrimSpace(d.TestData.Description); name != "" {
		return name
	}
	return UnknownExamName
}
