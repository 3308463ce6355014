package domain

import "errors"

var (
	// ErrFetch is returned when questions or a user's answers cannot be loaded.
	ErrFetch = errors.New("fetch failed")
	// ErrLeaderboardFetch is returned once the leaderboard read exhausts its retries.
	ErrLeaderboardFetch = errors.New("leaderboard fetch failed")
	// ErrSubmitPersist indicates an answer could not be written; the session did not advance.
	ErrSubmitPersist = errors.New("answer could not be saved")
	// ErrEmptyAnswer rejects a submit with an empty input buffer.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrInvalidSymbol rejects input other than a dot or a dash.
	ErrInvalidSymbol = errors.New("symbol must be '.' or '-'")
	// ErrSessionNotFound is returned when a user acts before starting a session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotActive is returned when an input or submit arrives outside the active state.
	ErrNotActive = errors.New("session is not accepting answers")
	// ErrIndexOutOfRange indicates a navigation target outside the question list.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrQuestionNotFound indicates a referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
)
