// internal/game/types.go
//
// Result types returned by the game engine.
//   - Option:       one multiple-choice answer ("City, Country").
//   - Clues:        a clue set plus shuffled options for a session.
//   - AnswerResult: outcome of a submitted answer.

package game

// Option is a selectable answer. ID is the destination id to submit.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clues is the clue set and options for one session.
type Clues struct {
	SessionID       string   `json:"id"`
	Clues           []string `json:"clues"`
	PossibleAnswers []Option `json:"possibleAnswers"`
}

// AnswerResult is the outcome of SubmitAnswer.
type AnswerResult struct {
	Correct       bool   `json:"correct"`
	Score         int    `json:"score"`
	WrongAnswers  int    `json:"wrongAnswers"`
	Feedback      string `json:"feedback,omitempty"`
	GameCompleted bool   `json:"gameCompleted"`
	// CorrectAnswer is revealed only when the game ends in failure.
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	Status        string `json:"status"`
}
