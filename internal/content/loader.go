package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults holds fallback values applied when a quiz pack omits them.
type Defaults struct {
	TimeLimit int
	Points    int
}

// yamlQuizFile is the top-level YAML structure for quiz pack files.
type yamlQuizFile struct {
	Quiz yamlQuiz `yaml:"quiz"`
}

// yamlQuiz is the YAML representation of a quiz.
type yamlQuiz struct {
	Code      string         `yaml:"code"`
	Title     string         `yaml:"title"`
	Questions []yamlQuestion `yaml:"questions"`
}

// yamlQuestion is the YAML representation of a question.
type yamlQuestion struct {
	Text      string       `yaml:"text"`
	TimeLimit int          `yaml:"time_limit"`
	Points    int          `yaml:"points"`
	Answers   []yamlAnswer `yaml:"answers"`
}

// yamlAnswer is the YAML representation of an answer option.
type yamlAnswer struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

// LoadQuizFromFile reads and validates a single quiz pack YAML file.
//
// Precondition: path must point to a valid YAML quiz pack file.
// Postcondition: Returns a validated quiz with its questions, or a non-nil error.
func LoadQuizFromFile(path string, defaults Defaults) (Quiz, []Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Quiz{}, nil, fmt.Errorf("reading quiz pack %s: %w", path, err)
	}
	return LoadQuizFromBytes(data, defaults)
}

// LoadQuizFromBytes parses and validates a quiz pack from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the quiz pack schema.
// Postcondition: Returns a validated quiz with its questions, or a non-nil error.
func LoadQuizFromBytes(data []byte, defaults Defaults) (Quiz, []Question, error) {
	var file yamlQuizFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Quiz{}, nil, fmt.Errorf("parsing quiz pack YAML: %w", err)
	}

	quiz, questions := convertYAMLQuiz(file.Quiz, defaults)
	if quiz.Code == "" {
		return Quiz{}, nil, fmt.Errorf("validating quiz pack: quiz code must not be empty")
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return Quiz{}, nil, fmt.Errorf("validating quiz %s: %w", quiz.Code, err)
		}
	}

	return quiz, questions, nil
}

// LoadQuizzesIntoStore loads all YAML files in a directory into the store.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns the number of quizzes loaded, or the first error
// encountered.
func LoadQuizzesIntoStore(dir string, defaults Defaults, store *MemoryStore) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading quiz pack directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		quiz, questions, err := LoadQuizFromFile(filepath.Join(dir, name), defaults)
		if err != nil {
			return loaded, fmt.Errorf("loading quiz pack %s: %w", name, err)
		}
		if err := store.AddQuiz(quiz, questions); err != nil {
			return loaded, err
		}
		loaded++
	}

	return loaded, nil
}

// convertYAMLQuiz converts the parsed YAML structures into domain types.
// Quiz codes are uppercased so they match normalized room codes.
func convertYAMLQuiz(yq yamlQuiz, defaults Defaults) (Quiz, []Question) {
	if defaults.TimeLimit <= 0 {
		defaults.TimeLimit = DefaultTimeLimit
	}
	if defaults.Points <= 0 {
		defaults.Points = DefaultPoints
	}

	code := strings.ToUpper(strings.TrimSpace(yq.Code))
	quiz := Quiz{
		Code:  code,
		Title: strings.TrimSpace(yq.Title),
	}
	if quiz.Title == "" && code != "" {
		quiz.Title = DefaultTitle(code)
	}

	questions := make([]Question, 0, len(yq.Questions))
	for i, yqn := range yq.Questions {
		q := Question{
			QuizCode:  code,
			Text:      strings.TrimSpace(yqn.Text),
			TimeLimit: yqn.TimeLimit,
			Points:    yqn.Points,
			Order:     i,
		}
		if q.TimeLimit <= 0 {
			q.TimeLimit = defaults.TimeLimit
		}
		if q.Points <= 0 {
			q.Points = defaults.Points
		}
		for _, ya := range yqn.Answers {
			q.Answers = append(q.Answers, Answer{
				Text:    strings.TrimSpace(ya.Text),
				Correct: ya.Correct,
			})
		}
		questions = append(questions, q)
	}

	return quiz, questions
}
