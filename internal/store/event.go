package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type eventRepo struct {
	db *gorm.DB
}

func (r *eventRepo) AppendReposition(ctx context.Context, data RepositionEventData) error {
	row := RepositionEvent{
		EventID:           data.EventID,
		UserID:            data.UserID,
		PathID:            data.PathID,
		StitchID:          data.StitchID,
		PreviousPosition:  data.PreviousPosition,
		NewPosition:       data.NewPosition,
		SkipNumber:        data.SkipNumber,
		CorrectCount:      data.CorrectCount,
		TotalCount:        data.TotalCount,
		AvgResponseTimeMs: data.AvgResponseTimeMs,
		Timestamp:         data.Timestamp.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append reposition event: %w", err)
	}
	return nil
}

func (r *eventRepo) RecentRepositions(ctx context.Context, userID, stitchID string, limit int) ([]RepositionEventRecord, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND stitch_id = ?", userID, stitchID).
		Order("sequence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []RepositionEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query repositions: %w", err)
	}
	return toRecords(rows), nil
}

func (r *eventRepo) RepositionsForUser(ctx context.Context, userID string, limit int) ([]RepositionEventRecord, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sequence DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []RepositionEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query user repositions: %w", err)
	}
	return toRecords(rows), nil
}

func toRecords(rows []RepositionEvent) []RepositionEventRecord {
	out := make([]RepositionEventRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, RepositionEventRecord{
			Sequence: row.Sequence,
			RepositionEventData: RepositionEventData{
				EventID:           row.EventID,
				UserID:            row.UserID,
				PathID:            row.PathID,
				StitchID:          row.StitchID,
				PreviousPosition:  row.PreviousPosition,
				NewPosition:       row.NewPosition,
				SkipNumber:        row.SkipNumber,
				CorrectCount:      row.CorrectCount,
				TotalCount:        row.TotalCount,
				AvgResponseTimeMs: row.AvgResponseTimeMs,
				Timestamp:         row.Timestamp,
			},
		})
	}
	return out
}
