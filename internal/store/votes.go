package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) AddVote(ctx context.Context, vote Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (id, card_id, user_id) VALUES ($1, $2, $3)
	`, vote.ID, vote.CardID, vote.UserID)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

// RemoveLatestVote deletes the most recent vote the user cast on the card.
// Returns false when the user has no votes there.
func (s *PostgresStore) RemoveLatestVote(ctx context.Context, cardID, userID string) (bool, error) {
	var voteID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM votes
		WHERE card_id=$1 AND user_id=$2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, cardID, userID).Scan(&voteID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find latest vote: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM votes WHERE id=$1`, voteID); err != nil {
		return false, fmt.Errorf("delete vote: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ClearVotes(ctx context.Context, boardID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM votes WHERE card_id IN (SELECT id FROM cards WHERE board_id=$1)
	`, boardID)
	if err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountUserVotesOnBoard(ctx context.Context, boardID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes v
		JOIN cards c ON c.id = v.card_id
		WHERE c.board_id=$1 AND v.user_id=$2
	`, boardID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count user votes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountUserVotesOnCard(ctx context.Context, cardID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE card_id=$1 AND user_id=$2
	`, cardID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count card votes: %w", err)
	}
	return count, nil
}

// VoteCountsByCard returns aggregate counts per card across the board.
func (s *PostgresStore) VoteCountsByCard(ctx context.Context, boardID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, COUNT(v.id)
		FROM cards c
		LEFT JOIN votes v ON v.card_id = c.id
		WHERE c.board_id=$1
		GROUP BY c.id
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("vote counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var cardID string
		var count int
		if err := rows.Scan(&cardID, &count); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		counts[cardID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote counts: %w", err)
	}
	return counts, nil
}

// CheckVotingAllocation computes the user's remaining voting budget
// against the board's allocation.
func (s *PostgresStore) CheckVotingAllocation(ctx context.Context, boardID, userID string) (VoteAllocation, error) {
	var allocation int
	err := s.db.QueryRowContext(ctx, `SELECT voting_allocation FROM boards WHERE id=$1`, boardID).Scan(&allocation)
	if err != nil {
		return VoteAllocation{}, err
	}

	current, err := s.CountUserVotesOnBoard(ctx, boardID, userID)
	if err != nil {
		return VoteAllocation{}, err
	}

	remaining := allocation - current
	if remaining < 0 {
		remaining = 0
	}
	return VoteAllocation{
		CurrentVotes:   current,
		RemainingVotes: remaining,
		CanVote:        current < allocation,
	}, nil
}
