package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"teambeat/api/internal/util"
)

const cardSelect = `
	SELECT c.id, c.board_id, c.column_id, c.user_id, c.content, c.group_id,
	       c.is_group_lead, c.created_at, c.updated_at, u.display_name,
	       COUNT(v.id) AS vote_count
	FROM cards c
	JOIN users u ON u.id = c.user_id
	LEFT JOIN votes v ON v.card_id = c.id
`

const cardGroupBy = `
	GROUP BY c.id, c.board_id, c.column_id, c.user_id, c.content, c.group_id,
	         c.is_group_lead, c.created_at, c.updated_at, u.display_name
`

func scanCard(row interface{ Scan(...any) error }) (Card, error) {
	var item Card
	err := row.Scan(
		&item.ID,
		&item.BoardID,
		&item.ColumnID,
		&item.UserID,
		&item.Content,
		&item.GroupID,
		&item.IsGroupLead,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.AuthorName,
		&item.VoteCount,
	)
	return item, err
}

func (s *PostgresStore) CreateCard(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, board_id, column_id, user_id, content)
		VALUES ($1, $2, $3, $4, $5)
	`, card.ID, card.BoardID, card.ColumnID, card.UserID, card.Content)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	row := s.db.QueryRowContext(ctx, cardSelect+` WHERE c.id=$1 `+cardGroupBy, cardID)
	card, err := scanCard(row)
	if err != nil {
		return Card{}, err
	}
	return card, nil
}

func (s *PostgresStore) ListCardsByBoard(ctx context.Context, boardID string) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, cardSelect+` WHERE c.board_id=$1 `+cardGroupBy+` ORDER BY c.created_at ASC`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		item, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateCardContent(ctx context.Context, cardID, content string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET content=$2, updated_at=NOW() WHERE id=$1
	`, cardID, content)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (s *PostgresStore) MoveCard(ctx context.Context, cardID, columnID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET column_id=$2, updated_at=NOW() WHERE id=$1
	`, cardID, columnID)
	if err != nil {
		return fmt.Errorf("move card: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCard(ctx context.Context, cardID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id=$1`, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

// groupIDFor keeps an already-grouped lead on its existing group id so
// regrouping the same card set always resolves to the same group.
func groupIDFor(existing *string) string {
	if existing != nil && *existing != "" {
		return *existing
	}
	return util.NewID("grp")
}

// GroupCards gathers the given cards under one group id with the first as
// lead. When the lead already belongs to a group, that group id is reused
// so grouping the same set twice is idempotent.
func (s *PostgresStore) GroupCards(ctx context.Context, cardIDs []string) (string, error) {
	if len(cardIDs) == 0 {
		return "", errors.New("no cards to group")
	}

	var existing *string
	err := s.db.QueryRowContext(ctx, `SELECT group_id FROM cards WHERE id=$1`, cardIDs[0]).Scan(&existing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("read group lead: %w", err)
	}

	groupID := groupIDFor(existing)

	err = s.WithTx(ctx, func(q Querier) error {
		for i, cardID := range cardIDs {
			if _, err := q.ExecContext(ctx, `
				UPDATE cards SET group_id=$2, is_group_lead=$3, updated_at=NOW() WHERE id=$1
			`, cardID, groupID, i == 0); err != nil {
				return fmt.Errorf("group card %s: %w", cardID, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return groupID, nil
}

func (s *PostgresStore) UngroupCard(ctx context.Context, cardID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET group_id=NULL, is_group_lead=FALSE, updated_at=NOW() WHERE id=$1
	`, cardID)
	if err != nil {
		return fmt.Errorf("ungroup card: %w", err)
	}
	return nil
}
