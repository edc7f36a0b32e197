package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"carlot/internal/models"
)

const assetGroupColumns = "id, name, pic_ids, version, created_at, updated_at"

// CreateAssetGroup inserts an asset group, assigning an id when it has none.
func (s *Store) CreateAssetGroup(ctx context.Context, group *models.AssetGroup) error {
	if group == nil {
		return fmt.Errorf("asset group is required")
	}
	if group.ID == "" {
		id, err := GenerateID(assetGroupIDPrefix, func(id string) (bool, error) {
			return s.recordExists(ctx, "asset_groups", id)
		})
		if err != nil {
			return err
		}
		group.ID = id
	}

	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	group.UpdatedAt = group.CreatedAt
	if group.PicIDs == nil {
		group.PicIDs = []string{}
	}
	picIDs, err := encodePicIDs(group.PicIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO asset_groups (`+assetGroupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		group.ID,
		nullIfEmpty(group.Name),
		picIDs,
		group.Version,
		formatTime(group.CreatedAt),
		formatTime(group.UpdatedAt),
	)
	return err
}

// GetAssetGroup returns an asset group by id, or nil when it does not exist.
func (s *Store) GetAssetGroup(ctx context.Context, id string) (*models.AssetGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetGroupColumns+` FROM asset_groups WHERE id = ?`, id)
	return scanAssetGroup(row)
}

func (s *Store) ListAssetGroups(ctx context.Context, limit, offset int) ([]models.AssetGroup, error) {
	query := `SELECT ` + assetGroupColumns + ` FROM asset_groups ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(offset, 0))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := []models.AssetGroup{}
	for rows.Next() {
		group, err := scanAssetGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, rows.Err()
}

func (s *Store) DeleteAssetGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM asset_groups WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanAssetGroup(scanner rowScanner) (*models.AssetGroup, error) {
	var (
		group                        models.AssetGroup
		name                         sql.NullString
		picIDs, createdAt, updatedAt string
	)
	err := scanner.Scan(&group.ID, &name, &picIDs, &group.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	group.Name = name.String
	if group.PicIDs, err = decodePicIDs(picIDs); err != nil {
		return nil, fmt.Errorf("asset group %s: %w", group.ID, err)
	}
	if group.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if group.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &group, nil
}
