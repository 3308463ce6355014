package app_test

import (
	"fmt"
	"testing"
	"time"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/domain"
)

func outcomesFor(correct ...string) map[string]domain.Outcome {
	out := make(map[string]domain.Outcome, len(correct))
	for _, id := range correct {
		out[id] = domain.Outcome{IsCorrect: true}
	}
	return out
}

func TestActiveIndexFollowsCorrectPrefix(t *testing.T) {
	questions := morseQuestions()

	cases := []struct {
		name     string
		outcomes map[string]domain.Outcome
		want     int
	}{
		{"nothing answered", outcomesFor(), 0},
		{"first correct", outcomesFor("q1"), 1},
		{"gap after first", outcomesFor("q1", "q3"), 1},
		{"all correct", outcomesFor("q1", "q2", "q3"), 2},
		{"first incorrect", map[string]domain.Outcome{"q1": {IsCorrect: false}}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := app.ActiveIndex(questions, tc.outcomes)
			if !ok || got != tc.want {
				t.Fatalf("expected %d, got %d (ok=%v)", tc.want, got, ok)
			}
		})
	}
}

func TestActiveIndexWithoutQuestions(t *testing.T) {
	if _, ok := app.ActiveIndex(nil, outcomesFor("q1")); ok {
		t.Fatalf("expected no active index for an empty question list")
	}
}

func TestCanAccess(t *testing.T) {
	questions := morseQuestions()
	outcomes := outcomesFor("q1")

	if !app.CanAccess(0, questions, nil) {
		t.Fatalf("first question must always be accessible")
	}
	if !app.CanAccess(1, questions, outcomes) {
		t.Fatalf("second question should open once the first is correct")
	}
	if app.CanAccess(2, questions, outcomes) {
		t.Fatalf("third question must stay locked")
	}
	if app.CanAccess(3, questions, outcomesFor("q1", "q2", "q3")) {
		t.Fatalf("out of range index must not be accessible")
	}
	if app.CanAccess(-1, questions, outcomes) {
		t.Fatalf("negative index must not be accessible")
	}
}

func TestDeriveProgress(t *testing.T) {
	questions := morseQuestions()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	view := app.DeriveProgress(questions, []domain.AnswerRecord{
		{QuestionID: "q1", SubmittedAnswer: ".-", IsCorrect: true, AnsweredAt: t0},
		{QuestionID: "q2", SubmittedAnswer: "-", IsCorrect: false, AnsweredAt: t0.Add(time.Minute)},
	})
	if view.ActiveIndex != 1 {
		t.Fatalf("expected active index 1, got %d", view.ActiveIndex)
	}
	if view.Finished {
		t.Fatalf("progress should not be finished")
	}
	if _, ok := view.Completed["q1"]; !ok || len(view.Completed) != 1 {
		t.Fatalf("expected only q1 completed, got %v", view.Completed)
	}
	if o := view.Outcomes["q2"]; o.IsCorrect || o.Answer != "-" {
		t.Fatalf("unexpected q2 outcome %+v", o)
	}
}

func TestDeriveProgressKeepsLatestDuplicate(t *testing.T) {
	questions := morseQuestions()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	view := app.DeriveProgress(questions, []domain.AnswerRecord{
		{QuestionID: "q1", SubmittedAnswer: ".-", IsCorrect: true, AnsweredAt: t0.Add(time.Minute)},
		{QuestionID: "q1", SubmittedAnswer: "..", IsCorrect: false, AnsweredAt: t0},
	})
	if !view.Outcomes["q1"].IsCorrect {
		t.Fatalf("older record must not override the latest one")
	}
	if view.ActiveIndex != 1 {
		t.Fatalf("expected active index 1, got %d", view.ActiveIndex)
	}
}

func TestDeriveProgressFinished(t *testing.T) {
	questions := morseQuestions()
	records := []domain.AnswerRecord{
		{QuestionID: "q1", IsCorrect: true},
		{QuestionID: "q2", IsCorrect: true},
		{QuestionID: "q3", IsCorrect: true},
	}
	view := app.DeriveProgress(questions, records)
	if !view.Finished || view.ActiveIndex != 2 {
		t.Fatalf("expected finished at last index, got %+v", view)
	}

	empty := app.DeriveProgress(nil, records)
	if empty.Finished {
		t.Fatalf("an empty quiz is never finished")
	}
}

func TestSortQuestionsCopiesInOrdinalOrder(t *testing.T) {
	in := []domain.Question{{ID: "b", Ordinal: 2}, {ID: "a", Ordinal: 1}}
	out := app.SortQuestions(in)
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("unexpected order %+v", out)
	}
	if in[0].ID != "b" {
		t.Fatalf("input must not be reordered")
	}
}

func TestFiveQuestionScenario(t *testing.T) {
	var questions []domain.Question
	var records []domain.AnswerRecord
	var scored []domain.ScoredAnswer
	for i := 5; i >= 1; i-- {
		questions = append(questions, domain.Question{ID: fmt.Sprintf("q%d", i), Ordinal: i})
	}
	for i := 1; i <= 3; i++ {
		r := domain.AnswerRecord{UserID: "u1", QuestionID: fmt.Sprintf("q%d", i), IsCorrect: true, TimeTakenSeconds: i}
		records = append(records, r)
		scored = append(scored, domain.ScoredAnswer{AnswerRecord: r})
	}

	view := app.DeriveProgress(questions, records)
	if view.ActiveIndex != 3 {
		t.Fatalf("expected active index 3, got %d", view.ActiveIndex)
	}
	sorted := app.SortQuestions(questions)
	if !app.CanAccess(3, sorted, view.Outcomes) || app.CanAccess(4, sorted, view.Outcomes) {
		t.Fatalf("expected index 3 open and index 4 locked")
	}

	entries := app.ComputeLeaderboard(scored, len(questions))
	if len(entries) != 1 || entries[0].ScorePercent != 60 || entries[0].TotalTimeSeconds != 6 {
		t.Fatalf("unexpected standings %+v", entries)
	}
}

func TestEmptyAnswerLogScenario(t *testing.T) {
	questions := morseQuestions()
	view := app.DeriveProgress(questions, nil)
	if view.ActiveIndex != 0 || view.Finished || len(view.Completed) != 0 {
		t.Fatalf("unexpected progress %+v", view)
	}
	if entries := app.ComputeLeaderboard(nil, len(questions)); len(entries) != 0 {
		t.Fatalf("expected no standings, got %+v", entries)
	}
}
