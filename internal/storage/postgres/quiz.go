package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openquiz/quizroom/internal/content"
)

// QuizRepository is the PostgreSQL content.Store implementation. It serves
// reads for room sessions and inserts for content seeding.
type QuizRepository struct {
	db *pgxpool.Pool
}

// NewQuizRepository creates a QuizRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewQuizRepository(db *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{db: db}
}

// GetOrCreateQuiz returns the quiz with the given code, inserting an empty
// quiz with a default title on first reference. Concurrent first references
// resolve to a single row via the upsert.
//
// Postcondition: A quiz row with the given code exists.
func (r *QuizRepository) GetOrCreateQuiz(ctx context.Context, code string) (content.Quiz, error) {
	var quiz content.Quiz
	err := r.db.QueryRow(ctx,
		`INSERT INTO quizzes (code, title)
		 VALUES ($1, $2)
		 ON CONFLICT (code) DO UPDATE SET code = quizzes.code
		 RETURNING code, title`,
		code, content.DefaultTitle(code),
	).Scan(&quiz.Code, &quiz.Title)
	if err != nil {
		return content.Quiz{}, fmt.Errorf("upserting quiz %s: %w", code, err)
	}
	return quiz, nil
}

// GetQuiz retrieves a quiz by code without creating one.
//
// Postcondition: Returns the quiz or content.ErrQuizNotFound.
func (r *QuizRepository) GetQuiz(ctx context.Context, code string) (content.Quiz, error) {
	var quiz content.Quiz
	err := r.db.QueryRow(ctx,
		`SELECT code, title FROM quizzes WHERE code = $1`,
		code,
	).Scan(&quiz.Code, &quiz.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return content.Quiz{}, fmt.Errorf("querying quiz %s: %w", code, content.ErrQuizNotFound)
		}
		return content.Quiz{}, fmt.Errorf("querying quiz %s: %w", code, err)
	}
	return quiz, nil
}

// ListQuestions returns the quiz's questions in defined order, each with its
// answer options populated.
//
// Postcondition: Returns content.ErrQuizNotFound for an unknown code.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizCode string) ([]content.Question, error) {
	if _, err := r.GetQuiz(ctx, quizCode); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, quiz_code, text, time_limit, points, position
		 FROM questions WHERE quiz_code = $1
		 ORDER BY position, id`,
		quizCode,
	)
	if err != nil {
		return nil, fmt.Errorf("querying questions for %s: %w", quizCode, err)
	}
	defer rows.Close()

	var questions []content.Question
	for rows.Next() {
		var q content.Question
		if err := rows.Scan(&q.ID, &q.QuizCode, &q.Text, &q.TimeLimit, &q.Points, &q.Order); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating questions for %s: %w", quizCode, err)
	}

	for i := range questions {
		answers, err := r.listAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

// ListAnswers returns the answer options of one question.
//
// Postcondition: Returns content.ErrQuestionNotFound for an unknown id.
func (r *QuizRepository) ListAnswers(ctx context.Context, questionID int64) ([]content.Answer, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM questions WHERE id = $1)`,
		questionID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking question %d: %w", questionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("listing answers for question %d: %w", questionID, content.ErrQuestionNotFound)
	}
	return r.listAnswers(ctx, questionID)
}

func (r *QuizRepository) listAnswers(ctx context.Context, questionID int64) ([]content.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, text, is_correct
		 FROM answers WHERE question_id = $1
		 ORDER BY id`,
		questionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying answers for question %d: %w", questionID, err)
	}
	defer rows.Close()

	var answers []content.Answer
	for rows.Next() {
		var a content.Answer
		if err := rows.Scan(&a.ID, &a.Text, &a.Correct); err != nil {
			return nil, fmt.Errorf("scanning answer: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating answers for question %d: %w", questionID, err)
	}
	return answers, nil
}

// IsAnswerCorrect reports whether answerID is the correct option of
// questionID. Unknown question or answer ids report false without an error.
func (r *QuizRepository) IsAnswerCorrect(ctx context.Context, questionID, answerID int64) (bool, error) {
	var correct bool
	err := r.db.QueryRow(ctx,
		`SELECT is_correct FROM answers WHERE id = $1 AND question_id = $2`,
		answerID, questionID,
	).Scan(&correct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying answer %d: %w", answerID, err)
	}
	return correct, nil
}

// CreateQuiz inserts a quiz with its full question set in one transaction.
// Question order follows slice order.
//
// Precondition: Every question must pass content validation.
// Postcondition: Returns content.ErrQuizExists on a duplicate code, leaving
// the database unchanged on any failure.
func (r *QuizRepository) CreateQuiz(ctx context.Context, quiz content.Quiz, questions []content.Question) error {
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("creating quiz %s: %w", quiz.Code, err)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (code, title) VALUES ($1, $2)`,
		quiz.Code, quiz.Title,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("creating quiz %s: %w", quiz.Code, content.ErrQuizExists)
		}
		return fmt.Errorf("inserting quiz %s: %w", quiz.Code, err)
	}

	for i, q := range questions {
		var questionID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (quiz_code, text, time_limit, points, position)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			quiz.Code, q.Text, q.TimeLimit, q.Points, i,
		).Scan(&questionID)
		if err != nil {
			return fmt.Errorf("inserting question %q: %w", q.Text, err)
		}

		for _, a := range q.Answers {
			_, err := tx.Exec(ctx,
				`INSERT INTO answers (question_id, text, is_correct)
				 VALUES ($1, $2, $3)`,
				questionID, a.Text, a.Correct,
			)
			if err != nil {
				return fmt.Errorf("inserting answer %q: %w", a.Text, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
