package service

import (
	"context"

	"github.com/iliyamo/taskflow/internal/events"
	"github.com/iliyamo/taskflow/internal/model"
)

// ActivityLogger is the only writer of the audit trail.  Record is an
// events.Handler; the event id is the row id, so redelivery is harmless.
type ActivityLogger struct {
	store ActivityStore
}

func NewActivityLogger(store ActivityStore) *ActivityLogger {
	return &ActivityLogger{store: store}
}

func (a *ActivityLogger) Record(ctx context.Context, e events.Event) error {
	return a.store.Append(ctx, model.ActivityLog{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		UserID:    e.UserID,
		Action:    e.Action,
		Details:   e.Details,
		CreatedAt: e.OccurredAt,
	})
}

// ListByProject returns a page of a project's activity, newest first.
func (a *ActivityLogger) ListByProject(ctx context.Context, projectID string, pg model.Pagination) (model.Page[model.ActivityLog], error) {
	rows, total, err := a.store.ListByProject(ctx, projectID, pg)
	if err != nil {
		return model.Page[model.ActivityLog]{}, storeErr(err, "")
	}
	return model.NewPage(rows, total, pg.Page, pg.Limit), nil
}
