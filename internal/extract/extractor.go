package extract

import (
	"context"
	"errors"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
)

// ErrNotAnExam is returned when the document holds no closed questions.
var ErrNotAnExam = errors.New("document does not contain exam questions")

// Extractor turns raw PDF bytes into structured exam data. Implementations
// make a single attempt and never retry.
type Extractor interface {
	Extract(ctx context.Context, pdf []byte) (*exams.ExamData, error)
}
