package cli

import "morse-quiz-service/internal/domain"

// morseAlphabet is the question set used by the memory and SQLite stores. It
// matches the Postgres seed migration.
func morseAlphabet() []domain.Question {
	codes := []struct{ letter, code string }{
		{"A", ".-"},
		{"B", "-..."},
		{"C", "-.-."},
		{"D", "-.."},
		{"E", "."},
		{"F", "..-."},
		{"G", "--."},
		{"H", "...."},
		{"I", ".."},
		{"J", ".---"},
	}
	questions := make([]domain.Question, len(codes))
	for i, c := range codes {
		questions[i] = domain.Question{
			ID:            "letter-" + string(rune('a'+i)),
			Ordinal:       i + 1,
			Prompt:        c.letter,
			CorrectAnswer: c.code,
		}
	}
	return questions
}
