// Package content provides the quiz content store: quizzes, ordered questions,
// and answer options with correctness flags. The store is read-mostly; room
// sessions consume it but never mutate it.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Default content values applied when a quiz pack omits them. They match the
// flat 10-point, 30-second questions the protocol was designed around.
const (
	DefaultTimeLimit = 30
	DefaultPoints    = 10
)

// ErrQuizNotFound is returned when a quiz lookup yields no results.
var ErrQuizNotFound = errors.New("quiz not found")

// ErrQuestionNotFound is returned when a question lookup yields no results.
var ErrQuestionNotFound = errors.New("question not found")

// ErrQuizExists is returned when inserting a quiz whose code is taken.
var ErrQuizExists = errors.New("quiz already exists")

// Quiz is a named question set addressed by a short unique code.
type Quiz struct {
	Code  string
	Title string
}

// Question is a single quiz question with its ordered answer options.
// Exactly one answer is marked correct.
type Question struct {
	ID        int64
	QuizCode  string
	Text      string
	TimeLimit int
	Points    int
	Order     int
	Answers   []Answer
}

// Answer is one selectable option of a question.
type Answer struct {
	ID      int64
	Text    string
	Correct bool
}

// Validate checks the question invariants: non-empty text, at least two
// answer options, exactly one of them correct.
//
// Postcondition: Returns nil if the question is well-formed.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return errors.New("question text must not be empty")
	}
	if len(q.Answers) < 2 {
		return fmt.Errorf("question %q must have at least 2 answers, got %d", q.Text, len(q.Answers))
	}
	correct := 0
	for _, a := range q.Answers {
		if strings.TrimSpace(a.Text) == "" {
			return fmt.Errorf("question %q has an answer with empty text", q.Text)
		}
		if a.Correct {
			correct++
		}
	}
	if correct == 0 {
		return fmt.Errorf("question %q has no correct answer", q.Text)
	}
	if correct > 1 {
		return fmt.Errorf("question %q has %d correct answers, want exactly 1", q.Text, correct)
	}
	return nil
}

// DefaultTitle returns the title given to quizzes created lazily on first join.
func DefaultTitle(code string) string {
	return "Quiz " + code
}

// Store is the content collaborator interface consumed by room sessions.
type Store interface {
	// GetOrCreateQuiz returns the quiz with the given code, creating an empty
	// one with a default title if none exists.
	GetOrCreateQuiz(ctx context.Context, code string) (Quiz, error)
	// ListQuestions returns the quiz's questions in their defined order, each
	// with its answer options populated.
	ListQuestions(ctx context.Context, quizCode string) ([]Question, error)
	// ListAnswers returns the answer options of one question.
	ListAnswers(ctx context.Context, questionID int64) ([]Answer, error)
	// IsAnswerCorrect reports whether answerID is the correct option of
	// questionID. Unknown ids report false, not an error.
	IsAnswerCorrect(ctx context.Context, questionID, answerID int64) (bool, error)
}
