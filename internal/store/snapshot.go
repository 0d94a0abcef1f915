package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type snapshotRepo struct {
	db *gorm.DB
}

func (r *snapshotRepo) SaveUser(ctx context.Context, snap *UserSnapshotData) error {
	if snap == nil || snap.UserID == "" {
		return fmt.Errorf("save snapshot: missing user id")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	row := UserSnapshot{
		UserID:    snap.UserID,
		Data:      data,
		UpdatedAt: nowUTC(),
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) LoadUser(ctx context.Context, userID string) (*UserSnapshotData, error) {
	var row UserSnapshot
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap UserSnapshotData
	if err := json.Unmarshal(row.Data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *snapshotRepo) DeleteUser(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Delete(&UserSnapshot{}, "user_id = ?", userID).Error
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) ListUsers(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&UserSnapshot{}).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list snapshot users: %w", err)
	}
	return ids, nil
}
