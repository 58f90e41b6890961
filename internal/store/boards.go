package store

import (
	"context"
	"fmt"
	"time"
)

const boardColumns = `
	id, series_id, name, status, current_scene_id, voting_allocation,
	timer_start, timer_seconds, blame_free, selected_card_id, notes_locked,
	created_at, updated_at
`

func scanBoard(row interface{ Scan(...any) error }) (Board, error) {
	var item Board
	err := row.Scan(
		&item.ID,
		&item.SeriesID,
		&item.Name,
		&item.Status,
		&item.CurrentSceneID,
		&item.VotingAllocation,
		&item.TimerStart,
		&item.TimerSeconds,
		&item.BlameFree,
		&item.SelectedCardID,
		&item.NotesLocked,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func (s *PostgresStore) CreateBoard(ctx context.Context, board Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, series_id, name, status, voting_allocation, blame_free)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, board.ID, board.SeriesID, board.Name, board.Status, board.VotingAllocation, board.BlameFree)
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=$1`, boardID)
	board, err := scanBoard(row)
	if err != nil {
		return Board{}, err
	}
	return board, nil
}

func (s *PostgresStore) ListBoardsBySeries(ctx context.Context, seriesID string) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+boardColumns+` FROM boards WHERE series_id=$1 ORDER BY created_at DESC
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		item, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateBoard(ctx context.Context, boardID, name string, votingAllocation int, blameFree bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET name=$2, voting_allocation=$3, blame_free=$4, updated_at=NOW()
		WHERE id=$1
	`, boardID, name, votingAllocation, blameFree)
	if err != nil {
		return fmt.Errorf("update board: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBoardStatus(ctx context.Context, boardID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET status=$2, updated_at=NOW() WHERE id=$1
	`, boardID, status)
	if err != nil {
		return fmt.Errorf("update board status: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetCurrentScene(ctx context.Context, boardID, sceneID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET current_scene_id=$2, updated_at=NOW() WHERE id=$1
	`, boardID, sceneID)
	if err != nil {
		return fmt.Errorf("set current scene: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetBoardTimer(ctx context.Context, boardID string, start *time.Time, seconds int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET timer_start=$2, timer_seconds=$3, updated_at=NOW() WHERE id=$1
	`, boardID, start, seconds)
	if err != nil {
		return fmt.Errorf("set board timer: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetPresentation(ctx context.Context, boardID string, selectedCardID *string, notesLocked bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE boards SET selected_card_id=$2, notes_locked=$3, updated_at=NOW() WHERE id=$1
	`, boardID, selectedCardID, notesLocked)
	if err != nil {
		return fmt.Errorf("set presentation: %w", err)
	}
	return nil
}

// DeleteBoard removes the board; scenes, columns, cards, votes, comments
// and health records go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id=$1`, boardID)
	if err != nil {
		return fmt.Errorf("delete board: %w", err)
	}
	return nil
}

// ── Columns ──

func (s *PostgresStore) CreateColumn(ctx context.Context, column Column) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO columns (id, board_id, title, seq, appearance)
		VALUES ($1, $2, $3, $4, $5)
	`, column.ID, column.BoardID, column.Title, column.Seq, column.Appearance)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetColumn(ctx context.Context, columnID string) (Column, error) {
	var item Column
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, title, seq, appearance, created_at FROM columns WHERE id=$1
	`, columnID).Scan(&item.ID, &item.BoardID, &item.Title, &item.Seq, &item.Appearance, &item.CreatedAt)
	if err != nil {
		return Column{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListColumns(ctx context.Context, boardID string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title, seq, appearance, created_at
		FROM columns WHERE board_id=$1 ORDER BY seq ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	items := make([]Column, 0)
	for rows.Next() {
		var item Column
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Title, &item.Seq, &item.Appearance, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateColumn(ctx context.Context, columnID, title, appearance string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE columns SET title=$2, appearance=$3 WHERE id=$1
	`, columnID, title, appearance)
	if err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteColumn(ctx context.Context, columnID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM columns WHERE id=$1`, columnID)
	if err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	return nil
}

// ReorderColumns rewrites every column's sequence in one transaction when
// the driver supports it, sequentially otherwise.
func (s *PostgresStore) ReorderColumns(ctx context.Context, boardID string, orderedIDs []string) error {
	return s.WithTx(ctx, func(q Querier) error {
		for seq, columnID := range orderedIDs {
			if _, err := q.ExecContext(ctx, `
				UPDATE columns SET seq=$3 WHERE id=$1 AND board_id=$2
			`, columnID, boardID, seq); err != nil {
				return fmt.Errorf("reorder column %s: %w", columnID, err)
			}
		}
		return nil
	})
}

// ── Scene/column visibility ──

func (s *PostgresStore) SetSceneColumnVisibility(ctx context.Context, sceneID, columnID string, visible bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scene_columns (scene_id, column_id, visible)
		VALUES ($1, $2, $3)
		ON CONFLICT (scene_id, column_id) DO UPDATE SET visible=EXCLUDED.visible
	`, sceneID, columnID, visible)
	if err != nil {
		return fmt.Errorf("set scene column visibility: %w", err)
	}
	return nil
}

func (s *PostgresStore) HiddenColumnIDs(ctx context.Context, sceneID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_id FROM scene_columns WHERE scene_id=$1 AND visible=FALSE
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list hidden columns: %w", err)
	}
	defer rows.Close()

	hidden := make(map[string]bool)
	for rows.Next() {
		var columnID string
		if err := rows.Scan(&columnID); err != nil {
			return nil, fmt.Errorf("scan hidden column: %w", err)
		}
		hidden[columnID] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hidden columns: %w", err)
	}
	return hidden, nil
}

// SetupBoardTemplate seeds a fresh board with a standard column set and
// scene sequence in one transaction, and points the board at the first
// scene.
func (s *PostgresStore) SetupBoardTemplate(ctx context.Context, boardID string, columns []Column, scenes []Scene) error {
	return s.WithTx(ctx, func(q Querier) error {
		for _, column := range columns {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO columns (id, board_id, title, seq, appearance)
				VALUES ($1, $2, $3, $4, $5)
			`, column.ID, boardID, column.Title, column.Seq, column.Appearance); err != nil {
				return fmt.Errorf("insert template column: %w", err)
			}
		}
		for _, sceneItem := range scenes {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO scenes (id, board_id, title, mode, seq)
				VALUES ($1, $2, $3, $4, $5)
			`, sceneItem.ID, boardID, sceneItem.Title, sceneItem.Mode, sceneItem.Seq); err != nil {
				return fmt.Errorf("insert template scene: %w", err)
			}
			for _, flag := range sceneItem.Flags {
				if _, err := q.ExecContext(ctx, `
					INSERT INTO scene_flags (scene_id, flag) VALUES ($1, $2)
					ON CONFLICT DO NOTHING
				`, sceneItem.ID, flag); err != nil {
					return fmt.Errorf("insert template scene flag: %w", err)
				}
			}
		}
		if len(scenes) > 0 {
			if _, err := q.ExecContext(ctx, `
				UPDATE boards SET current_scene_id=$2, updated_at=NOW() WHERE id=$1
			`, boardID, scenes[0].ID); err != nil {
				return fmt.Errorf("set template scene: %w", err)
			}
		}
		return nil
	})
}
