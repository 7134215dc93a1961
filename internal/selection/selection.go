package selection

import (
	"context"

	"github.com/example/boya-scheduler/internal/errs"
)

type Kind string

const (
	Succeeded       Kind = "succeeded"
	Rejected        Kind = "rejected"
	TransportFailed Kind = "transport_failed"
)

// Outcome is the terminal result of one attempt. It is never retried.
type Outcome struct {
	Kind   Kind
	Reason string
	Err    error
}

func (o Outcome) OK() bool { return o.Kind == Succeeded }

// Service performs the reservation wire exchange. Errors the remote service
// answered with must be marked errs.ErrRejected; anything else counts as a
// transport failure.
type Service interface {
	Select(ctx context.Context, id int64, token string) error
	Drop(ctx context.Context, id int64, token string) error
}

// Executor makes exactly one call to Service per operation and classifies
// the result.
type Executor struct {
	Service Service
}

func (e Executor) Select(ctx context.Context, id int64, token string) Outcome {
	return Classify(e.Service.Select(ctx, id, token))
}

func (e Executor) Drop(ctx context.Context, id int64, token string) Outcome {
	return Classify(e.Service.Drop(ctx, id, token))
}

func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: Succeeded}
	case errs.Is(err, errs.ErrRejected):
		return Outcome{Kind: Rejected, Reason: err.Error(), Err: err}
	default:
		return Outcome{Kind: TransportFailed, Reason: err.Error(), Err: errs.Mark(err, errs.ErrTransport)}
	}
}
