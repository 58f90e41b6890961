package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateScene(ctx context.Context, sceneItem Scene) error {
	return s.WithTx(ctx, func(q Querier) error {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO scenes (id, board_id, title, mode, seq)
			VALUES ($1, $2, $3, $4, $5)
		`, sceneItem.ID, sceneItem.BoardID, sceneItem.Title, sceneItem.Mode, sceneItem.Seq); err != nil {
			return fmt.Errorf("insert scene: %w", err)
		}
		for _, flag := range sceneItem.Flags {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO scene_flags (scene_id, flag) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, sceneItem.ID, flag); err != nil {
				return fmt.Errorf("insert scene flag: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetScene(ctx context.Context, sceneID string) (Scene, error) {
	var item Scene
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, title, mode, seq FROM scenes WHERE id=$1
	`, sceneID).Scan(&item.ID, &item.BoardID, &item.Title, &item.Mode, &item.Seq)
	if err != nil {
		return Scene{}, err
	}
	flags, err := s.listSceneFlags(ctx, sceneID)
	if err != nil {
		return Scene{}, err
	}
	item.Flags = flags
	return item, nil
}

func (s *PostgresStore) ListScenes(ctx context.Context, boardID string) ([]Scene, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, title, mode, seq FROM scenes WHERE board_id=$1 ORDER BY seq ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	items := make([]Scene, 0)
	for rows.Next() {
		var item Scene
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Title, &item.Mode, &item.Seq); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}

	for i := range items {
		flags, err := s.listSceneFlags(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Flags = flags
	}
	return items, nil
}

func (s *PostgresStore) UpdateScene(ctx context.Context, sceneID, title, mode string, seq int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scenes SET title=$2, mode=$3, seq=$4 WHERE id=$1
	`, sceneID, title, mode, seq)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteScene(ctx context.Context, sceneID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scenes WHERE id=$1`, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	return nil
}

// SetSceneFlags replaces the scene's flag set.
func (s *PostgresStore) SetSceneFlags(ctx context.Context, sceneID string, flags []string) error {
	return s.WithTx(ctx, func(q Querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM scene_flags WHERE scene_id=$1`, sceneID); err != nil {
			return fmt.Errorf("clear scene flags: %w", err)
		}
		for _, flag := range flags {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO scene_flags (scene_id, flag) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, sceneID, flag); err != nil {
				return fmt.Errorf("insert scene flag: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) listSceneFlags(ctx context.Context, sceneID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT flag FROM scene_flags WHERE scene_id=$1 ORDER BY flag ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list scene flags: %w", err)
	}
	defer rows.Close()

	flags := make([]string, 0)
	for rows.Next() {
		var flag string
		if err := rows.Scan(&flag); err != nil {
			return nil, fmt.Errorf("scan scene flag: %w", err)
		}
		flags = append(flags, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scene flags: %w", err)
	}
	return flags, nil
}
