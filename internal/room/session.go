package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openquiz/quizroom/internal/content"
)

// ErrEmptyUsername is returned when a join carries a blank username.
var ErrEmptyUsername = errors.New("username must not be empty")

// ErrAlreadyStarted is returned when starting a quiz that is already running.
var ErrAlreadyStarted = errors.New("quiz already started")

// ErrNotMember is returned when the acting username is not in the roster.
var ErrNotMember = errors.New("player is not a member of this room")

// AnswerResult is the outcome of one answer submission, delivered to the
// submitting connection only.
type AnswerResult struct {
	Correct bool
	Score   int
}

// Session holds the authoritative state for one quiz room: the player
// roster, the question snapshot of the running quiz, and the set of
// connected outboxes for broadcast. A single mutex serializes every
// mutation so joins, starts, and answers never interleave inconsistently;
// broadcast snapshots are taken and fanned out inside the same critical
// section that produced them.
type Session struct {
	code   string
	store  content.Store
	logger *zap.Logger

	mu          sync.Mutex
	players     map[string]*Player
	joinOrder   []string
	subscribers []*Outbox
	questions   []content.Question
	current     int
	started     bool
}

// NewSession creates an empty Session for the given room code.
//
// Precondition: code must be normalized and non-empty; store and logger must
// be non-nil.
func NewSession(code string, store content.Store, logger *zap.Logger) *Session {
	return &Session{
		code:    code,
		store:   store,
		logger:  logger.With(zap.String("room", code)),
		players: make(map[string]*Player),
		current: -1,
	}
}

// Code returns the room code.
func (s *Session) Code() string {
	return s.code
}

// EnsureQuiz creates the backing quiz record on first contact with the room.
// A room addressed before any content is authored gets an empty quiz with a
// default title, so starting it broadcasts an empty question set rather than
// failing.
func (s *Session) EnsureQuiz(ctx context.Context) error {
	if _, err := s.store.GetOrCreateQuiz(ctx, s.code); err != nil {
		return fmt.Errorf("ensuring quiz %s: %w", s.code, err)
	}
	return nil
}

// Subscribe registers an outbox for room broadcasts. Connections subscribe
// at link establishment, before any join, so an idle room still exists and
// receives membership traffic.
func (s *Session) Subscribe(ob *Outbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, ob)
}

// SubscriberCount returns the number of attached outboxes.
func (s *Session) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// Unsubscribe removes an outbox from the broadcast set.
func (s *Session) Unsubscribe(ob *Outbox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ob {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Join adds username to the roster or reactivates an existing entry. A
// returning player keeps their score and gets a fresh session token; joining
// twice never duplicates a roster entry. Broadcasts player_joined with the
// join-ordered online roster to the whole room, the joiner included.
//
// Postcondition: Returns the player and the roster snapshot the room saw,
// or ErrEmptyUsername.
func (s *Session) Join(username string) (*Player, []PlayerInfo, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, ErrEmptyUsername
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.players[username]
	if !exists {
		p = &Player{Username: username}
		s.players[username] = p
		s.joinOrder = append(s.joinOrder, username)
	}
	p.Online = true
	p.SessionToken = uuid.NewString()

	roster := s.rosterLocked()
	data, err := encodePlayerJoined(PlayerInfo{Username: p.Username, Score: p.Score}, roster)
	if err != nil {
		return nil, nil, err
	}
	s.broadcastLocked(data)

	s.logger.Info("player joined",
		zap.String("username", username),
		zap.Bool("rejoin", exists),
		zap.Int("roster_size", len(roster)),
	)
	return p, roster, nil
}

// Start begins the quiz: it snapshots the question order from the content
// store and broadcasts quiz_started with the full question set to the room.
// Any member may start; a second start fails without a duplicate broadcast.
//
// Postcondition: Returns the question snapshot, ErrAlreadyStarted, or
// ErrNotMember.
func (s *Session) Start(ctx context.Context, username string) ([]content.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrAlreadyStarted
	}
	if _, ok := s.players[username]; !ok {
		return nil, ErrNotMember
	}

	questions, err := s.store.ListQuestions(ctx, s.code)
	if err != nil {
		return nil, err
	}

	data, err := encodeQuizStarted(questions)
	if err != nil {
		return nil, err
	}

	s.started = true
	s.questions = questions
	s.current = 0
	s.broadcastLocked(data)

	s.logger.Info("quiz started",
		zap.String("username", username),
		zap.Int("questions", len(questions)),
	)
	return questions, nil
}

// SubmitAnswer scores one answer for username. An unknown question or answer
// id counts as incorrect, never as an error. A correct answer adds the
// question's point value to the player's score under the session lock. The
// result is returned to the caller for delivery to the submitting connection
// only; nothing is broadcast.
//
// Postcondition: Returns the result with the player's current score, or
// ErrNotMember.
func (s *Session) SubmitAnswer(ctx context.Context, username string, questionID, answerID int64) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[username]
	if !ok {
		return AnswerResult{}, ErrNotMember
	}

	correct, err := s.store.IsAnswerCorrect(ctx, questionID, answerID)
	if err != nil {
		return AnswerResult{}, err
	}
	if correct {
		p.Score += s.questionPointsLocked(ctx, questionID)
	}

	return AnswerResult{Correct: correct, Score: p.Score}, nil
}

// Leave marks username offline. The roster entry and score are kept for
// rejoin; no event is broadcast for this transition.
func (s *Session) Leave(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.players[username]; ok {
		p.Online = false
		s.logger.Info("player left", zap.String("username", username))
	}
}

// Roster returns the online players in join order.
func (s *Session) Roster() []PlayerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

// Started reports whether the quiz is running.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// CurrentQuestion returns the index into the question snapshot, or -1 when
// the quiz has not started.
func (s *Session) CurrentQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// rosterLocked snapshots the online players in join order.
// Caller must hold s.mu.
func (s *Session) rosterLocked() []PlayerInfo {
	roster := make([]PlayerInfo, 0, len(s.joinOrder))
	for _, username := range s.joinOrder {
		p := s.players[username]
		if !p.Online {
			continue
		}
		roster = append(roster, PlayerInfo{Username: p.Username, Score: p.Score})
	}
	return roster
}

// questionPointsLocked resolves the point value of a question, preferring
// the running quiz's snapshot. Caller must hold s.mu.
func (s *Session) questionPointsLocked(ctx context.Context, questionID int64) int {
	for _, q := range s.questions {
		if q.ID == questionID {
			return q.Points
		}
	}
	// Answers are accepted in any quiz phase, so the question may not be in
	// the snapshot yet.
	questions, err := s.store.ListQuestions(ctx, s.code)
	if err == nil {
		for _, q := range questions {
			if q.ID == questionID {
				return q.Points
			}
		}
	}
	return content.DefaultPoints
}

// broadcastLocked fans data out to every subscribed outbox. Caller must
// hold s.mu, so broadcast order matches mutation order. A full outbox drops
// the event for that connection only.
func (s *Session) broadcastLocked(data []byte) {
	for _, sub := range s.subscribers {
		if err := sub.Push(data); err != nil {
			s.logger.Warn("dropping event for slow subscriber",
				zap.String("outbox", sub.ID()),
				zap.Error(err),
			)
		}
	}
}
