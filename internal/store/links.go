package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carlot/internal/models"
)

var (
	// ErrRecordNotFound is returned when the owning record does not exist.
	ErrRecordNotFound = errors.New("record not found")
	// ErrVersionConflict is returned when pic_ids changed since it was read.
	ErrVersionConflict = errors.New("record version conflict")
)

func recordTable(kind models.RecordKind) (string, error) {
	switch kind {
	case models.RecordVehicle:
		return "vehicles", nil
	case models.RecordAsset:
		return "asset_groups", nil
	default:
		return "", fmt.Errorf("unknown record kind: %q", kind)
	}
}

// GetObjectIDs returns the ordered object ids of a record and its current version.
func (s *Store) GetObjectIDs(ctx context.Context, ref models.RecordRef) ([]string, int64, error) {
	table, err := recordTable(ref.Kind)
	if err != nil {
		return nil, 0, err
	}

	var (
		raw     string
		version int64
	)
	err = s.db.QueryRowContext(ctx, "SELECT pic_ids, version FROM "+table+" WHERE id = ?", ref.ID).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, 0, ErrRecordNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	ids, err := decodePicIDs(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", ref, err)
	}
	return ids, version, nil
}

// SetObjectIDs replaces pic_ids when the stored version still equals expectedVersion,
// and returns the bumped version.
func (s *Store) SetObjectIDs(ctx context.Context, ref models.RecordRef, ids []string, expectedVersion int64) (int64, error) {
	table, err := recordTable(ref.Kind)
	if err != nil {
		return 0, err
	}
	if ids == nil {
		ids = []string{}
	}
	raw, err := encodePicIDs(ids)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE "+table+" SET pic_ids = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?",
		raw, formatTime(time.Now().UTC()), ref.ID, expectedVersion,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		var exists int
		err = tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", ref.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			err = ErrRecordNotFound
			return 0, err
		}
		if err != nil {
			return 0, err
		}
		err = ErrVersionConflict
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

// ListReferencedObjectIDs maps every object id referenced by any record to its owners.
func (s *Store) ListReferencedObjectIDs(ctx context.Context) (map[string][]models.RecordRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT 'vehicle', v.id, j.value FROM vehicles v, json_each(v.pic_ids) j
		UNION ALL
		SELECT 'asset', a.id, j.value FROM asset_groups a, json_each(a.pic_ids) j
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := map[string][]models.RecordRef{}
	for rows.Next() {
		var kind, recordID, objectID string
		if err := rows.Scan(&kind, &recordID, &objectID); err != nil {
			return nil, err
		}
		refs[objectID] = append(refs[objectID], models.RecordRef{Kind: models.RecordKind(kind), ID: recordID})
	}
	return refs, rows.Err()
}

// IsObjectReferenced reports whether any record currently lists objectID.
func (s *Store) IsObjectReferenced(ctx context.Context, objectID string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vehicles v, json_each(v.pic_ids) j WHERE j.value = ?
			UNION ALL
			SELECT 1 FROM asset_groups a, json_each(a.pic_ids) j WHERE j.value = ?
		)
	`, objectID, objectID).Scan(&found)
	if err != nil {
		return false, err
	}
	return found == 1, nil
}

func encodePicIDs(ids []string) (string, error) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode pic_ids: %w", err)
	}
	return string(raw), nil
}

func decodePicIDs(raw string) ([]string, error) {
	ids := []string{}
	if raw == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode pic_ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
