package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateHealthQuestion(ctx context.Context, question HealthQuestion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_questions (id, board_id, question, seq)
		VALUES ($1, $2, $3, $4)
	`, question.ID, question.BoardID, question.Question, question.Seq)
	if err != nil {
		return fmt.Errorf("insert health question: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetHealthQuestion(ctx context.Context, questionID string) (HealthQuestion, error) {
	var item HealthQuestion
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, question, seq, created_at FROM health_questions WHERE id=$1
	`, questionID).Scan(&item.ID, &item.BoardID, &item.Question, &item.Seq, &item.CreatedAt)
	if err != nil {
		return HealthQuestion{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListHealthQuestions(ctx context.Context, boardID string) ([]HealthQuestion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, question, seq, created_at
		FROM health_questions WHERE board_id=$1 ORDER BY seq ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list health questions: %w", err)
	}
	defer rows.Close()

	items := make([]HealthQuestion, 0)
	for rows.Next() {
		var item HealthQuestion
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Question, &item.Seq, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan health question: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health questions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteHealthQuestion(ctx context.Context, questionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM health_questions WHERE id=$1`, questionID)
	if err != nil {
		return fmt.Errorf("delete health question: %w", err)
	}
	return nil
}

// UpsertHealthResponse keeps one rating per question and user. Repeat
// submissions overwrite the previous rating.
func (s *PostgresStore) UpsertHealthResponse(ctx context.Context, response HealthResponse) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_responses (id, question_id, user_id, rating)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (question_id, user_id)
		DO UPDATE SET rating=EXCLUDED.rating, created_at=NOW()
	`, response.ID, response.QuestionID, response.UserID, response.Rating)
	if err != nil {
		return fmt.Errorf("upsert health response: %w", err)
	}
	return nil
}

// HealthSummaries aggregates responses per question without exposing
// who rated what.
func (s *PostgresStore) HealthSummaries(ctx context.Context, boardID string) ([]HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT q.id, q.question, COUNT(r.id), COALESCE(AVG(r.rating), 0)
		FROM health_questions q
		LEFT JOIN health_responses r ON r.question_id = q.id
		WHERE q.board_id=$1
		GROUP BY q.id, q.question, q.seq
		ORDER BY q.seq ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("health summaries: %w", err)
	}
	defer rows.Close()

	items := make([]HealthSummary, 0)
	for rows.Next() {
		var item HealthSummary
		if err := rows.Scan(&item.QuestionID, &item.Question, &item.ResponseCount, &item.AverageRating); err != nil {
			return nil, fmt.Errorf("scan health summary: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health summaries: %w", err)
	}
	return items, nil
}
