package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/openquiz/quizroom/internal/content"
)

// newTestSession builds a session over a memory store seeded with one quiz:
// a single question worth 10 points, two options, the second one correct.
func newTestSession(t *testing.T, code string) (*Session, content.Question) {
	t.Helper()
	store := content.NewMemoryStore()
	question := content.Question{
		Text:      "Which option is second?",
		TimeLimit: 30,
		Points:    10,
		Answers: []content.Answer{
			{Text: "option 1"},
			{Text: "option 2", Correct: true},
		},
	}
	require.NoError(t, store.AddQuiz(content.Quiz{Code: code}, []content.Question{question}))

	stored, err := store.ListQuestions(context.Background(), code)
	require.NoError(t, err)

	return NewSession(code, store, zaptest.NewLogger(t)), stored[0]
}

// drain decodes every event currently buffered in the outbox.
func drain(t *testing.T, ob *Outbox) []map[string]any {
	t.Helper()
	var events []map[string]any
	for {
		select {
		case data := <-ob.Events():
			var event map[string]any
			require.NoError(t, json.Unmarshal(data, &event))
			events = append(events, event)
		default:
			return events
		}
	}
}

func TestSessionJoin_NewPlayer(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	p, roster, err := sess.Join("Ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Username)
	assert.Equal(t, 0, p.Score)
	assert.True(t, p.Online)
	assert.NotEmpty(t, p.SessionToken)
	assert.Equal(t, []PlayerInfo{{Username: "Ana", Score: 0}}, roster)
}

func TestSessionJoin_EmptyUsername(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	_, _, err := sess.Join("")
	assert.ErrorIs(t, err, ErrEmptyUsername)

	_, _, err = sess.Join("   ")
	assert.ErrorIs(t, err, ErrEmptyUsername)
}

func TestSessionJoin_RosterInJoinOrder(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	names := []string{"Ana", "Bob", "Carla", "Dan"}
	for i, name := range names {
		_, roster, err := sess.Join(name)
		require.NoError(t, err)
		require.Len(t, roster, i+1, "roster after join %d", i+1)
		for j, info := range roster {
			assert.Equal(t, names[j], info.Username)
			assert.Equal(t, 0, info.Score)
		}
	}
}

func TestSessionJoin_BroadcastsToWholeRoom(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	obAna := NewOutbox("ana", 8)
	obBob := NewOutbox("bob", 8)
	sess.Subscribe(obAna)
	sess.Subscribe(obBob)

	_, _, err := sess.Join("Ana")
	require.NoError(t, err)

	for _, ob := range []*Outbox{obAna, obBob} {
		events := drain(t, ob)
		require.Len(t, events, 1)
		assert.Equal(t, EventPlayerJoined, events[0]["type"])
		player := events[0]["player"].(map[string]any)
		assert.Equal(t, "Ana", player["username"])
		assert.Equal(t, float64(0), player["score"])
	}
}

func TestSessionJoin_RejoinKeepsScoreAndRegeneratesToken(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	p1, _, err := sess.Join("Ana")
	require.NoError(t, err)
	token1 := p1.SessionToken

	_, err = sess.Start(context.Background(), "Ana")
	require.NoError(t, err)
	res, err := sess.SubmitAnswer(context.Background(), "Ana", question.ID, question.Answers[1].ID)
	require.NoError(t, err)
	require.Equal(t, 10, res.Score)

	sess.Leave("Ana")
	assert.Empty(t, sess.Roster(), "offline players drop off the roster")

	p2, roster, err := sess.Join("Ana")
	require.NoError(t, err)
	assert.Equal(t, 10, p2.Score, "score survives the disconnect")
	assert.NotEqual(t, token1, p2.SessionToken, "token is regenerated on rejoin")
	assert.Equal(t, []PlayerInfo{{Username: "Ana", Score: 10}}, roster, "no duplicate entry")
}

func TestSessionJoin_DoubleJoinWhileOnline(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	p1, _, err := sess.Join("Ana")
	require.NoError(t, err)
	token1 := p1.SessionToken

	p2, roster, err := sess.Join("Ana")
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	assert.NotEqual(t, token1, p2.SessionToken)
	assert.Len(t, roster, 1)
}

func TestSessionStart_BroadcastsQuestionsToAllMembers(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	obAna := NewOutbox("ana", 8)
	obBob := NewOutbox("bob", 8)
	sess.Subscribe(obAna)
	sess.Subscribe(obBob)

	_, _, err := sess.Join("Ana")
	require.NoError(t, err)
	_, _, err = sess.Join("Bob")
	require.NoError(t, err)

	questions, err := sess.Start(context.Background(), "Ana")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.True(t, sess.Started())
	assert.Equal(t, 0, sess.CurrentQuestion())

	for _, ob := range []*Outbox{obAna, obBob} {
		events := drain(t, ob)
		require.Len(t, events, 3, "two joins plus one start")
		started := events[2]
		assert.Equal(t, EventQuizStarted, started["type"])
		qs := started["questions"].([]any)
		require.Len(t, qs, 1)
		q := qs[0].(map[string]any)
		assert.Equal(t, question.Text, q["text"])
		answers := q["answers"].([]any)
		require.Len(t, answers, 2)
		// The observed protocol ships correctness flags with the questions.
		assert.Equal(t, false, answers[0].(map[string]any)["is_correct"])
		assert.Equal(t, true, answers[1].(map[string]any)["is_correct"])
	}
}

func TestSessionStart_NotMember(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	_, err := sess.Start(context.Background(), "Ghost")
	assert.ErrorIs(t, err, ErrNotMember)
	assert.False(t, sess.Started())
	assert.Equal(t, -1, sess.CurrentQuestion())
}

func TestSessionStart_UnseededRoomBroadcastsEmptyQuestionSet(t *testing.T) {
	store := content.NewMemoryStore()
	sess := NewSession("WXYZ", store, zap.NewNop())
	require.NoError(t, sess.EnsureQuiz(context.Background()))

	ob := NewOutbox("ana", 8)
	sess.Subscribe(ob)

	_, _, err := sess.Join("Ana")
	require.NoError(t, err)

	questions, err := sess.Start(context.Background(), "Ana")
	require.NoError(t, err)
	assert.Empty(t, questions)

	events := drain(t, ob)
	require.Len(t, events, 2)
	assert.Equal(t, EventQuizStarted, events[1]["type"])
}

func TestSessionStart_SecondStartFailsWithoutRebroadcast(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	ob := NewOutbox("ana", 8)
	sess.Subscribe(ob)

	_, _, err := sess.Join("Ana")
	require.NoError(t, err)
	_, err = sess.Start(context.Background(), "Ana")
	require.NoError(t, err)

	_, err = sess.Start(context.Background(), "Ana")
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	events := drain(t, ob)
	starts := 0
	for _, e := range events {
		if e["type"] == EventQuizStarted {
			starts++
		}
	}
	assert.Equal(t, 1, starts)
}

func TestSessionSubmitAnswer_CorrectAddsPoints(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	_, _, err := sess.Join("Bob")
	require.NoError(t, err)

	res, err := sess.SubmitAnswer(context.Background(), "Bob", question.ID, question.Answers[1].ID)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 10, res.Score)
}

func TestSessionSubmitAnswer_IncorrectLeavesScoreUnchanged(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	_, _, err := sess.Join("Bob")
	require.NoError(t, err)

	res, err := sess.SubmitAnswer(context.Background(), "Bob", question.ID, question.Answers[0].ID)
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.Score)
}

func TestSessionSubmitAnswer_UnknownAnswerIsIncorrect(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	_, _, err := sess.Join("Bob")
	require.NoError(t, err)

	res, err := sess.SubmitAnswer(context.Background(), "Bob", question.ID, 9999)
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.Score)

	res, err = sess.SubmitAnswer(context.Background(), "Bob", 9999, 9999)
	require.NoError(t, err)
	assert.False(t, res.Correct)
}

func TestSessionSubmitAnswer_NotMember(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	_, err := sess.SubmitAnswer(context.Background(), "Ghost", question.ID, question.Answers[1].ID)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestSessionSubmitAnswer_NothingBroadcast(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	obBob := NewOutbox("bob", 8)
	obAna := NewOutbox("ana", 8)
	sess.Subscribe(obBob)
	sess.Subscribe(obAna)

	_, _, err := sess.Join("Bob")
	require.NoError(t, err)
	_, _, err = sess.Join("Ana")
	require.NoError(t, err)
	drain(t, obBob)
	drain(t, obAna)

	_, err = sess.SubmitAnswer(context.Background(), "Bob", question.ID, question.Answers[1].ID)
	require.NoError(t, err)

	assert.Empty(t, drain(t, obBob), "answer results are not broadcast")
	assert.Empty(t, drain(t, obAna))
}

func TestSessionSubmitAnswer_ResubmissionScoresAgain(t *testing.T) {
	// The protocol does not deduplicate submissions per question; every
	// correct call scores.
	sess, question := newTestSession(t, "ABCD")

	_, _, err := sess.Join("Bob")
	require.NoError(t, err)

	for want := 10; want <= 30; want += 10 {
		res, err := sess.SubmitAnswer(context.Background(), "Bob", question.ID, question.Answers[1].ID)
		require.NoError(t, err)
		assert.Equal(t, want, res.Score)
	}
}

func TestSessionLeave_NoBroadcast(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")

	ob := NewOutbox("ana", 8)
	sess.Subscribe(ob)

	_, _, err := sess.Join("Ana")
	require.NoError(t, err)
	drain(t, ob)

	sess.Leave("Ana")
	assert.Empty(t, drain(t, ob), "leave is not broadcast")
	assert.Empty(t, sess.Roster())
}

func TestSessionLeave_UnknownPlayerIsNoop(t *testing.T) {
	sess, _ := newTestSession(t, "ABCD")
	sess.Leave("Ghost")
	assert.Empty(t, sess.Roster())
}

// Scenario: room ABCD, Ana and Bob join, Ana starts, Bob answers correctly,
// Ana disconnects and rejoins with her score intact and no duplicate entry.
func TestSessionScenario_TwoPlayerGame(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	obAna := NewOutbox("ana", 8)
	obBob := NewOutbox("bob", 8)
	sess.Subscribe(obAna)
	sess.Subscribe(obBob)

	_, _, err := sess.Join("Ana")
	require.NoError(t, err)
	_, roster, err := sess.Join("Bob")
	require.NoError(t, err)
	assert.Equal(t, []PlayerInfo{{Username: "Ana"}, {Username: "Bob"}}, roster)

	_, err = sess.Start(context.Background(), "Ana")
	require.NoError(t, err)

	anaEvents := drain(t, obAna)
	bobEvents := drain(t, obBob)
	assert.Equal(t, EventQuizStarted, anaEvents[len(anaEvents)-1]["type"])
	assert.Equal(t, EventQuizStarted, bobEvents[len(bobEvents)-1]["type"])

	res, err := sess.SubmitAnswer(context.Background(), "Bob", question.ID, question.Answers[1].ID)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 10, res.Score)

	sess.Leave("Ana")
	sess.Unsubscribe(obAna)

	_, roster, err = sess.Join("Ana")
	require.NoError(t, err)
	assert.Equal(t, []PlayerInfo{{Username: "Ana", Score: 0}, {Username: "Bob", Score: 10}}, roster)
}

func TestSessionConcurrentJoinsAndAnswers(t *testing.T) {
	sess, question := newTestSession(t, "ABCD")

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("Player%d", i)
			_, _, err := sess.Join(name)
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := sess.SubmitAnswer(context.Background(), name, question.ID, question.Answers[1].ID); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	roster := sess.Roster()
	require.Len(t, roster, n)
	for _, info := range roster {
		assert.Equal(t, 10, info.Score)
	}
}

// Property: after N joins with unique usernames the roster has exactly N
// entries, all score 0, in join order.
func TestPropertyRosterAfterNJoins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := content.NewMemoryStore()
		sess := NewSession("PROP", store, zap.NewNop())

		n := rapid.IntRange(1, 30).Draw(t, "num_players")
		for i := 0; i < n; i++ {
			_, roster, err := sess.Join(fmt.Sprintf("player-%d", i))
			if err != nil {
				t.Fatalf("join %d failed: %v", i, err)
			}
			if len(roster) != i+1 {
				t.Fatalf("roster after join %d has %d entries", i+1, len(roster))
			}
		}

		roster := sess.Roster()
		if len(roster) != n {
			t.Fatalf("final roster has %d entries, want %d", len(roster), n)
		}
		for i, info := range roster {
			if info.Username != fmt.Sprintf("player-%d", i) {
				t.Fatalf("roster[%d] = %q, join order broken", i, info.Username)
			}
			if info.Score != 0 {
				t.Fatalf("roster[%d] score = %d, want 0", i, info.Score)
			}
		}
	})
}

// Property: a player's score equals 10 times the number of correct
// submissions, regardless of interleaved incorrect ones.
func TestPropertyScoreAccumulation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := content.NewMemoryStore()
		question := content.Question{
			Text:   "pick the second",
			Points: 10,
			Answers: []content.Answer{
				{Text: "wrong"},
				{Text: "right", Correct: true},
			},
		}
		if err := store.AddQuiz(content.Quiz{Code: "PROP"}, []content.Question{question}); err != nil {
			t.Fatalf("AddQuiz failed: %v", err)
		}
		stored, err := store.ListQuestions(context.Background(), "PROP")
		if err != nil {
			t.Fatalf("ListQuestions failed: %v", err)
		}
		q := stored[0]

		sess := NewSession("PROP", store, zap.NewNop())
		if _, _, err := sess.Join("solo"); err != nil {
			t.Fatalf("join failed: %v", err)
		}

		submissions := rapid.SliceOfN(rapid.Bool(), 0, 40).Draw(t, "submissions")
		correctCount := 0
		var last AnswerResult
		for _, correct := range submissions {
			answerID := q.Answers[0].ID
			if correct {
				answerID = q.Answers[1].ID
				correctCount++
			}
			last, err = sess.SubmitAnswer(context.Background(), "solo", q.ID, answerID)
			if err != nil {
				t.Fatalf("submit failed: %v", err)
			}
		}

		if len(submissions) > 0 && last.Score != correctCount*10 {
			t.Fatalf("score = %d, want %d", last.Score, correctCount*10)
		}
	})
}
