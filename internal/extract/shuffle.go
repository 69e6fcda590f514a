package extract

import (
	"math/rand/v2"

	"github.com/idan157001/TestShuffleFinal/internal/exams"
)

// Shuffle returns a copy of data with every question's answers permuted.
// The model lists the correct answer first; it is recorded as CorrectAnswer
// before shuffling.
func Shuffle(data exams.ExamData, rng *rand.Rand) exams.ExamData {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	out := exams.ExamData{
		TestData:  data.TestData,
		Questions: make([]exams.Question, 0, len(data.Questions)),
	}
	for _, q := range data.Questions {
		answers := make([]exams.Answer, len(q.Answers))
		copy(answers, q.Answers)

		shuffled := exams.Question{
			Number: q.Number,
			Text:   q.Text,
		}
		if len(answers) > 0 {
			correct := answers[0]
			shuffled.CorrectAnswer = &correct
		}
		rng.Shuffle(len(answers), func(i, j int) {
			answers[i], answers[j] = answers[j], answers[i]
		})
		shuffled.Answers = answers
		out.Questions = append(out.Questions, shuffled)
	}
	return out
}
