package room

import (
	"encoding/json"

	"github.com/openquiz/quizroom/internal/content"
)

// Server event type tags on the wire.
const (
	EventPlayerJoined = "player_joined"
	EventQuizStarted  = "quiz_started"
	EventAnswerResult = "answer_result"
	EventError        = "error"
)

// AnswerView is an answer option as sent to clients. Correctness flags are
// included; the protocol sends them upfront with the question set.
type AnswerView struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionView is a question as sent to clients.
type QuestionView struct {
	ID        int64        `json:"id"`
	Text      string       `json:"text"`
	TimeLimit int          `json:"time_limit"`
	Points    int          `json:"points"`
	Answers   []AnswerView `json:"answers"`
}

// playerJoinedEvent is broadcast to the room after every successful join.
type playerJoinedEvent struct {
	Type    string       `json:"type"`
	Player  PlayerInfo   `json:"player"`
	Players []PlayerInfo `json:"players"`
}

// quizStartedEvent is broadcast to the room when a member starts the quiz.
type quizStartedEvent struct {
	Type      string         `json:"type"`
	Questions []QuestionView `json:"questions"`
}

// QuestionViews converts content questions to their wire form.
func QuestionViews(questions []content.Question) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		view := QuestionView{
			ID:        q.ID,
			Text:      q.Text,
			TimeLimit: q.TimeLimit,
			Points:    q.Points,
			Answers:   make([]AnswerView, 0, len(q.Answers)),
		}
		for _, a := range q.Answers {
			view.Answers = append(view.Answers, AnswerView{
				ID:        a.ID,
				Text:      a.Text,
				IsCorrect: a.Correct,
			})
		}
		views = append(views, view)
	}
	return views
}

func encodePlayerJoined(player PlayerInfo, roster []PlayerInfo) ([]byte, error) {
	return json.Marshal(playerJoinedEvent{
		Type:    EventPlayerJoined,
		Player:  player,
		Players: roster,
	})
}

func encodeQuizStarted(questions []content.Question) ([]byte, error) {
	return json.Marshal(quizStartedEvent{
		Type:      EventQuizStarted,
		Questions: QuestionViews(questions),
	})
}
