package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePack = `
quiz:
  code: caps
  title: Capital Cities
  questions:
    - text: "Capital of France?"
      time_limit: 20
      points: 15
      answers:
        - text: "Lyon"
        - text: "Paris"
          correct: true
    - text: "Capital of Japan?"
      answers:
        - text: "Tokyo"
          correct: true
        - text: "Osaka"
        - text: "Kyoto"
`

func TestLoadQuizFromBytes(t *testing.T) {
	quiz, questions, err := LoadQuizFromBytes([]byte(samplePack), Defaults{TimeLimit: 30, Points: 10})
	require.NoError(t, err)

	assert.Equal(t, "CAPS", quiz.Code, "codes are uppercased")
	assert.Equal(t, "Capital Cities", quiz.Title)
	require.Len(t, questions, 2)

	assert.Equal(t, 20, questions[0].TimeLimit)
	assert.Equal(t, 15, questions[0].Points)
	assert.Equal(t, 0, questions[0].Order)

	// Omitted fields fall back to defaults.
	assert.Equal(t, 30, questions[1].TimeLimit)
	assert.Equal(t, 10, questions[1].Points)
	assert.Equal(t, 1, questions[1].Order)
	assert.Len(t, questions[1].Answers, 3)
}

func TestLoadQuizFromBytes_TitleDefaults(t *testing.T) {
	quiz, _, err := LoadQuizFromBytes([]byte("quiz:\n  code: abcd\n"), Defaults{})
	require.NoError(t, err)
	assert.Equal(t, "Quiz ABCD", quiz.Title)
}

func TestLoadQuizFromBytes_MissingCode(t *testing.T) {
	_, _, err := LoadQuizFromBytes([]byte("quiz:\n  title: Untitled\n"), Defaults{})
	assert.Error(t, err)
}

func TestLoadQuizFromBytes_NoCorrectAnswer(t *testing.T) {
	pack := `
quiz:
  code: bad
  questions:
    - text: "Unanswerable?"
      answers:
        - text: "no"
        - text: "also no"
`
	_, _, err := LoadQuizFromBytes([]byte(pack), Defaults{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no correct answer")
}

func TestLoadQuizFromBytes_MultipleCorrectAnswers(t *testing.T) {
	pack := `
quiz:
  code: bad
  questions:
    - text: "Ambiguous?"
      answers:
        - text: "yes"
          correct: true
        - text: "also yes"
          correct: true
`
	_, _, err := LoadQuizFromBytes([]byte(pack), Defaults{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "correct answers")
}

func TestLoadQuizFromBytes_MalformedYAML(t *testing.T) {
	_, _, err := LoadQuizFromBytes([]byte("quiz: [not: valid"), Defaults{})
	assert.Error(t, err)
}

func TestLoadQuizzesIntoStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "caps.yaml"), []byte(samplePack), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	store := NewMemoryStore()
	loaded, err := LoadQuizzesIntoStore(dir, Defaults{}, store)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Equal(t, 1, store.QuizCount())
}

func TestLoadQuizzesIntoStore_MissingDir(t *testing.T) {
	store := NewMemoryStore()
	_, err := LoadQuizzesIntoStore("/nonexistent/quizzes", Defaults{}, store)
	assert.Error(t, err)
}
