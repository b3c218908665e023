package content

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store implementation, seeded from YAML quiz
// packs at startup. All methods are safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	quizzes   map[string]Quiz       // code → quiz
	questions map[string][]Question // code → ordered questions
	byID      map[int64]Question    // question ID → question
	nextID    int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:   make(map[string]Quiz),
		questions: make(map[string][]Question),
		byID:      make(map[int64]Question),
	}
}

// AddQuiz inserts a quiz and its questions, assigning question and answer ids.
// Question order follows slice order.
//
// Precondition: quiz.Code must be non-empty and not already present.
// Postcondition: Returns ErrQuizExists on a duplicate code, or the first
// question validation error, leaving the store unchanged on failure.
func (s *MemoryStore) AddQuiz(quiz Quiz, questions []Question) error {
	if quiz.Code == "" {
		return fmt.Errorf("adding quiz: code must not be empty")
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("adding quiz %s: %w", quiz.Code, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quizzes[quiz.Code]; exists {
		return fmt.Errorf("adding quiz %s: %w", quiz.Code, ErrQuizExists)
	}

	stored := make([]Question, 0, len(questions))
	for i, q := range questions {
		s.nextID++
		q.ID = s.nextID
		q.QuizCode = quiz.Code
		q.Order = i
		answers := make([]Answer, len(q.Answers))
		for j, a := range q.Answers {
			s.nextID++
			a.ID = s.nextID
			answers[j] = a
		}
		q.Answers = answers
		stored = append(stored, q)
		s.byID[q.ID] = q
	}

	s.quizzes[quiz.Code] = quiz
	s.questions[quiz.Code] = stored
	return nil
}

// GetOrCreateQuiz returns the quiz for code, creating an empty quiz with a
// default title if none exists.
//
// Postcondition: A quiz with the given code exists in the store.
func (s *MemoryStore) GetOrCreateQuiz(_ context.Context, code string) (Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quiz, ok := s.quizzes[code]; ok {
		return quiz, nil
	}
	quiz := Quiz{Code: code, Title: DefaultTitle(code)}
	s.quizzes[code] = quiz
	return quiz, nil
}

// ListQuestions returns the quiz's questions in defined order.
//
// Postcondition: Returns a copy; callers may not mutate store state through it.
func (s *MemoryStore) ListQuestions(_ context.Context, quizCode string) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.quizzes[quizCode]; !ok {
		return nil, fmt.Errorf("listing questions for %s: %w", quizCode, ErrQuizNotFound)
	}
	qs := s.questions[quizCode]
	out := make([]Question, len(qs))
	copy(out, qs)
	return out, nil
}

// ListAnswers returns the answer options of one question.
//
// Postcondition: Returns ErrQuestionNotFound for an unknown id.
func (s *MemoryStore) ListAnswers(_ context.Context, questionID int64) ([]Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.byID[questionID]
	if !ok {
		return nil, fmt.Errorf("listing answers for question %d: %w", questionID, ErrQuestionNotFound)
	}
	out := make([]Answer, len(q.Answers))
	copy(out, q.Answers)
	return out, nil
}

// IsAnswerCorrect reports whether answerID is the correct option of questionID.
// Unknown question or answer ids report false without an error.
func (s *MemoryStore) IsAnswerCorrect(_ context.Context, questionID, answerID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.byID[questionID]
	if !ok {
		return false, nil
	}
	for _, a := range q.Answers {
		if a.ID == answerID {
			return a.Correct, nil
		}
	}
	return false, nil
}

// QuizCount returns the number of quizzes in the store.
func (s *MemoryStore) QuizCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quizzes)
}
