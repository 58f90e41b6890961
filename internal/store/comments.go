package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, card_id, user_id, content, is_reaction, is_agreement)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, comment.ID, comment.CardID, comment.UserID, comment.Content, comment.IsReaction, comment.IsAgreement)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var item Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT cm.id, cm.card_id, cm.user_id, cm.content, cm.is_reaction, cm.is_agreement, cm.created_at, u.display_name
		FROM comments cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.id=$1
	`, commentID).Scan(&item.ID, &item.CardID, &item.UserID, &item.Content, &item.IsReaction, &item.IsAgreement, &item.CreatedAt, &item.AuthorName)
	if err != nil {
		return Comment{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListCommentsByCard(ctx context.Context, cardID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cm.id, cm.card_id, cm.user_id, cm.content, cm.is_reaction, cm.is_agreement, cm.created_at, u.display_name
		FROM comments cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.card_id=$1
		ORDER BY cm.created_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.CardID, &item.UserID, &item.Content, &item.IsReaction, &item.IsAgreement, &item.CreatedAt, &item.AuthorName); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ToggleReaction adds a single-emoji reaction comment, or removes it when
// the same user already reacted with the same emoji on the card.
func (s *PostgresStore) ToggleReaction(ctx context.Context, cardID, userID, emoji, commentID string) (added bool, err error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM comments
		WHERE card_id=$1 AND user_id=$2 AND content=$3 AND is_reaction=TRUE
	`, cardID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("toggle reaction: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		return false, nil
	}
	err = s.CreateComment(ctx, Comment{
		ID:         commentID,
		CardID:     cardID,
		UserID:     userID,
		Content:    emoji,
		IsReaction: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkCommentAgreement flags a comment as promoted; the agreements table
// keeps the promoted record itself.
func (s *PostgresStore) MarkCommentAgreement(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE comments SET is_agreement=TRUE WHERE id=$1
	`, commentID)
	if err != nil {
		return fmt.Errorf("mark comment agreement: %w", err)
	}
	return nil
}

// ── Agreements ──

func (s *PostgresStore) CreateAgreement(ctx context.Context, agreement Agreement) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agreements (id, board_id, content, user_id, source_comment_id)
		VALUES ($1, $2, $3, $4, $5)
	`, agreement.ID, agreement.BoardID, agreement.Content, agreement.UserID, agreement.SourceCommentID)
	if err != nil {
		return fmt.Errorf("insert agreement: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAgreement(ctx context.Context, agreementID string) (Agreement, error) {
	var item Agreement
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.board_id, a.content, a.user_id, a.source_comment_id,
		       a.completed_at, a.created_at, a.updated_at, u.display_name
		FROM agreements a
		JOIN users u ON u.id = a.user_id
		WHERE a.id=$1
	`, agreementID).Scan(&item.ID, &item.BoardID, &item.Content, &item.UserID, &item.SourceCommentID,
		&item.CompletedAt, &item.CreatedAt, &item.UpdatedAt, &item.AuthorName)
	if err != nil {
		return Agreement{}, err
	}
	return item, nil
}

// ListAgreements returns the unified read model: free-standing agreements
// and promoted comments alike, oldest first.
func (s *PostgresStore) ListAgreements(ctx context.Context, boardID string) ([]Agreement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.board_id, a.content, a.user_id, a.source_comment_id,
		       a.completed_at, a.created_at, a.updated_at, u.display_name
		FROM agreements a
		JOIN users u ON u.id = a.user_id
		WHERE a.board_id=$1
		ORDER BY a.created_at ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	items := make([]Agreement, 0)
	for rows.Next() {
		var item Agreement
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Content, &item.UserID, &item.SourceCommentID,
			&item.CompletedAt, &item.CreatedAt, &item.UpdatedAt, &item.AuthorName); err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agreements: %w", err)
	}
	return items, nil
}

// ListAgreementsByCard returns agreements promoted from the card's comments.
func (s *PostgresStore) ListAgreementsByCard(ctx context.Context, cardID string) ([]Agreement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.board_id, a.content, a.user_id, a.source_comment_id,
		       a.completed_at, a.created_at, a.updated_at, u.display_name
		FROM agreements a
		JOIN users u ON u.id = a.user_id
		JOIN comments cm ON cm.id = a.source_comment_id
		WHERE cm.card_id=$1
		ORDER BY a.created_at ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list card agreements: %w", err)
	}
	defer rows.Close()

	items := make([]Agreement, 0)
	for rows.Next() {
		var item Agreement
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Content, &item.UserID, &item.SourceCommentID,
			&item.CompletedAt, &item.CreatedAt, &item.UpdatedAt, &item.AuthorName); err != nil {
			return nil, fmt.Errorf("scan card agreement: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card agreements: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateAgreement(ctx context.Context, agreementID, content string, completed bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agreements
		SET content=$2,
		    completed_at=CASE WHEN $3 THEN COALESCE(completed_at, NOW()) ELSE NULL END,
		    updated_at=NOW()
		WHERE id=$1
	`, agreementID, content, completed)
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAgreement(ctx context.Context, agreementID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agreements WHERE id=$1`, agreementID)
	if err != nil {
		return fmt.Errorf("delete agreement: %w", err)
	}
	return nil
}
