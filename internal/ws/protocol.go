// Package ws provides the WebSocket frontend: the HTTP acceptor, the
// per-connection command loop, and the JSON wire protocol.
package ws

import (
	"encoding/json"

	"github.com/openquiz/quizroom/internal/room"
)

// Client action tags on the wire.
const (
	ActionJoin   = "join"
	ActionStart  = "start_quiz"
	ActionAnswer = "answer"
)

// Command is one client frame. Action selects the operation; the remaining
// fields are read per action and ignored otherwise.
type Command struct {
	Action     string `json:"action"`
	Username   string `json:"username"`
	QuestionID int64  `json:"question_id"`
	AnswerID   int64  `json:"answer_id"`
}

// answerResultEvent is sent to the submitting connection only.
type answerResultEvent struct {
	Type      string `json:"type"`
	IsCorrect bool   `json:"is_correct"`
	Score     int    `json:"score"`
}

// errorEvent is sent to the offending connection only. The connection
// stays open; one bad frame never tears down the session.
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func encodeAnswerResult(res room.AnswerResult) ([]byte, error) {
	return json.Marshal(answerResultEvent{
		Type:      room.EventAnswerResult,
		IsCorrect: res.Correct,
		Score:     res.Score,
	})
}

func encodeError(message string) ([]byte, error) {
	return json.Marshal(errorEvent{
		Type:    room.EventError,
		Message: message,
	})
}
