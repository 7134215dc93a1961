package attempts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/boya-scheduler/internal/db"
	"github.com/example/boya-scheduler/internal/errs"
)

type Action string

const (
	ActionSelect Action = "select"
	ActionDrop   Action = "drop"
)

// Attempt is one finished select or drop exchange, kept as an audit trail.
type Attempt struct {
	ID          int64
	RunID       uuid.UUID
	Action      Action
	OfferingID  int64
	Outcome     string
	Reason      string
	Waited      time.Duration
	AttemptedAt time.Time
}

func (a Attempt) Validate() error {
	if a.RunID == uuid.Nil {
		return errs.New("run_id required")
	}
	if a.Action != ActionSelect && a.Action != ActionDrop {
		return errs.Newf("unknown action %q", a.Action)
	}
	if a.OfferingID <= 0 {
		return errs.New("offering_id required")
	}
	if a.Outcome == "" {
		return errs.New("outcome required")
	}
	return nil
}

// Nop discards attempts. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Attempt) error { return nil }

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

func (r *Repo) Record(ctx context.Context, a Attempt) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}
	return r.db.Exec(ctx, `
INSERT INTO selection_attempts(run_id, action, offering_id, outcome, reason, waited_ms, attempted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.RunID, string(a.Action), a.OfferingID, a.Outcome, a.Reason, a.Waited.Milliseconds(), a.AttemptedAt,
	)
}

func (r *Repo) ListRecent(ctx context.Context, limit int) ([]Attempt, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
SELECT id,run_id,action,offering_id,outcome,reason,waited_ms,attempted_at
FROM selection_attempts
ORDER BY attempted_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var action string
		var waitedMS int64
		if err := rows.Scan(&a.ID, &a.RunID, &action, &a.OfferingID, &a.Outcome, &a.Reason, &waitedMS, &a.AttemptedAt); err != nil {
			return nil, err
		}
		a.Action = Action(action)
		a.Waited = time.Duration(waitedMS) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}
