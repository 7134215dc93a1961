package orchestrator

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/boya-scheduler/internal/attempts"
	"github.com/example/boya-scheduler/internal/clock"
	"github.com/example/boya-scheduler/internal/course"
	"github.com/example/boya-scheduler/internal/errs"
	"github.com/example/boya-scheduler/internal/scheduler"
	"github.com/example/boya-scheduler/internal/selection"
)

const hintLogin = "consider login again"

type Authenticator interface {
	SSOLogin(ctx context.Context, username, password string) error
	ProgramLogin(ctx context.Context) (string, error)
}

type Catalog interface {
	QueryOfferings(ctx context.Context, token string) ([]course.Offering, error)
}

// Chooser hands the selectable offerings to the user and returns the raw
// id they typed.
type Chooser interface {
	Choose(ctx context.Context, offerings []course.Offering) (string, error)
}

type ChooserFunc func(ctx context.Context, offerings []course.Offering) (string, error)

func (f ChooserFunc) Choose(ctx context.Context, offerings []course.Offering) (string, error) {
	return f(ctx, offerings)
}

type Recorder interface {
	Record(ctx context.Context, a attempts.Attempt) error
}

// Orchestrator sequences filter, choice, wait, renewal and one selection
// attempt. Each method runs its state machine once and is not resumable.
type Orchestrator struct {
	Auth     Authenticator
	Catalog  Catalog
	Executor selection.Executor
	Clock    clock.Clock

	Policy   scheduler.Policy
	Recorder Recorder
	Logger   *zap.Logger
	Tracer   trace.Tracer

	// OnWait, if set, is told how long the gate will sleep before it does.
	OnWait func(wait time.Duration, opensAt time.Time)
}

func (o *Orchestrator) defaults() {
	if o.Clock == nil {
		o.Clock = clock.NewRealClock(nil)
	}
	if o.Policy == nil {
		o.Policy = scheduler.ConservativePolicy{}
	}
	if o.Recorder == nil {
		o.Recorder = attempts.Nop{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer("github.com/example/boya-scheduler/orchestrator")
	}
}

// Login performs SSO and program login and stores the new token in rc.
func (o *Orchestrator) Login(ctx context.Context, rc *RunContext) (Result, error) {
	o.defaults()
	ctx, span := o.Tracer.Start(ctx, "orchestrator.login")
	defer span.End()
	log := o.Logger.With(zap.String("run_id", rc.ID.String()))

	res := &Result{}
	res.enter(Idle)

	if strings.TrimSpace(rc.Username) == "" || rc.Password == "" {
		return o.fail(span, log, res, errs.Mark(errs.New("username and password are required"), errs.ErrValidation))
	}
	if err := interrupted(ctx, "login"); err != nil {
		return o.fail(span, log, res, err)
	}
	if err := o.Auth.SSOLogin(ctx, rc.Username, rc.Password); err != nil {
		return o.fail(span, log, res, errs.Mark(errs.Wrap(err, "sso login"), errs.ErrAuth))
	}
	log.Info("sso login succeeded")

	token, err := o.Auth.ProgramLogin(ctx)
	if err != nil {
		return o.fail(span, log, res, errs.Mark(errs.Wrap(err, "program login"), errs.ErrAuth))
	}
	rc.Token = token
	res.enter(Authenticated)
	log.Info("program login succeeded")

	res.enter(Done)
	return *res, nil
}

// Select runs the full query, choose, wait, renew and select path. The
// selection service is called at most once.
func (o *Orchestrator) Select(ctx context.Context, rc *RunContext, includeAll bool, chooser Chooser) (Result, error) {
	o.defaults()
	ctx, span := o.Tracer.Start(ctx, "orchestrator.select", trace.WithAttributes(attribute.Bool("include_all", includeAll)))
	defer span.End()
	log := o.Logger.With(zap.String("run_id", rc.ID.String()))

	res := &Result{}
	res.enter(Idle)
	if rc.Token == "" {
		return o.fail(span, log, res, errs.WithHint(errs.Mark(errs.New("no token stored"), errs.ErrAuth), "run login first"))
	}
	res.enter(Authenticated)

	res.enter(Filtering)
	offerings, err := o.query(ctx, rc.Token)
	if ierr := interrupted(ctx, "query offerings"); ierr != nil {
		return o.fail(span, log, res, ierr)
	}
	if err != nil {
		return o.fail(span, log, res, errs.WithHint(errs.Mark(errs.Wrap(err, "query offerings"), errs.ErrQuery), hintLogin))
	}
	res.Offerings = course.Selectable(offerings, o.Clock.Now(), includeAll)
	log.Debug("catalog filtered", zap.Int("total", len(offerings)), zap.Int("selectable", len(res.Offerings)))

	res.enter(AwaitingChoice)
	raw, err := chooser.Choose(ctx, res.Offerings)
	if ierr := interrupted(ctx, "read choice"); ierr != nil {
		return o.fail(span, log, res, ierr)
	}
	if err != nil {
		return o.fail(span, log, res, errs.Mark(errs.Wrap(err, "read choice"), errs.ErrValidation))
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return o.fail(span, log, res, errs.Mark(errs.Newf("invalid id %q", strings.TrimSpace(raw)), errs.ErrValidation))
	}
	chosen, ok := course.Find(res.Offerings, id)
	if !ok {
		return o.fail(span, log, res, errs.Mark(errs.Newf("id %d is not in the listed offerings", id), errs.ErrValidation))
	}
	res.Chosen = &chosen
	log = log.With(zap.Int64("offering_id", id))
	span.SetAttributes(attribute.Int64("offering_id", id))

	deadline := chosen.Window.Open
	if delta := deadline.Sub(o.Clock.Now()); delta > 0 {
		res.enter(Waiting)
		planned := scheduler.SleepFor(delta)
		log.Info("waiting for selection window", zap.Time("opens_at", deadline), zap.Duration("wait", planned))
		if o.OnWait != nil {
			o.OnWait(planned, deadline)
		}
		waited, err := o.wait(ctx, deadline)
		if err != nil {
			return o.fail(span, log, res, err)
		}
		res.Waited = waited
	}

	if o.Policy.NeedsRenewal(deadline, scheduler.TokenState{Token: rc.Token, Waited: res.Waited}) {
		if err := interrupted(ctx, "renew token"); err != nil {
			return o.fail(span, log, res, err)
		}
		res.enter(Renewing)
		token, err := o.renew(ctx)
		if ierr := interrupted(ctx, "renew token"); ierr != nil {
			return o.fail(span, log, res, ierr)
		}
		if err != nil {
			return o.fail(span, log, res, errs.Mark(errs.Wrap(err, "renew token"), errs.ErrAuth))
		}
		rc.Token = token
		res.Renewed = true
		log.Info("token renewed")
	}

	if err := interrupted(ctx, "select"); err != nil {
		return o.fail(span, log, res, err)
	}
	res.enter(Executing)
	out := o.execute(ctx, attempts.ActionSelect, id, rc, res.Waited)
	res.Outcome = &out
	if !out.OK() {
		return o.fail(span, log, res, errs.WithHint(out.Err, hintLogin))
	}
	res.enter(Done)
	log.Info("selection succeeded")
	return *res, nil
}

// Drop cancels a reservation immediately with the stored token.
func (o *Orchestrator) Drop(ctx context.Context, rc *RunContext, id int64) (Result, error) {
	o.defaults()
	ctx, span := o.Tracer.Start(ctx, "orchestrator.drop", trace.WithAttributes(attribute.Int64("offering_id", id)))
	defer span.End()
	log := o.Logger.With(zap.String("run_id", rc.ID.String()), zap.Int64("offering_id", id))

	res := &Result{}
	res.enter(Idle)
	if id <= 0 {
		return o.fail(span, log, res, errs.Mark(errs.Newf("invalid id %d", id), errs.ErrValidation))
	}
	if rc.Token == "" {
		return o.fail(span, log, res, errs.WithHint(errs.Mark(errs.New("no token stored"), errs.ErrAuth), "run login first"))
	}
	res.enter(Authenticated)

	if err := interrupted(ctx, "drop"); err != nil {
		return o.fail(span, log, res, err)
	}
	res.enter(Executing)
	out := o.execute(ctx, attempts.ActionDrop, id, rc, 0)
	res.Outcome = &out
	if !out.OK() {
		return o.fail(span, log, res, errs.WithHint(out.Err, hintLogin))
	}
	res.enter(Done)
	log.Info("drop succeeded")
	return *res, nil
}

// interrupted returns an error marked errs.ErrInterrupted once ctx is done.
// It is checked around every step that talks to the user or the remote service.
func interrupted(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return errs.Mark(errs.Wrapf(err, "%s", step), errs.ErrInterrupted)
	}
	return nil
}

func (o *Orchestrator) query(ctx context.Context, token string) ([]course.Offering, error) {
	ctx, span := o.Tracer.Start(ctx, "catalog.query")
	defer span.End()
	offerings, err := o.Catalog.QueryOfferings(ctx, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("offerings", len(offerings)))
	return offerings, nil
}

func (o *Orchestrator) wait(ctx context.Context, deadline time.Time) (time.Duration, error) {
	ctx, span := o.Tracer.Start(ctx, "gate.wait")
	defer span.End()
	waited, err := scheduler.WaitUntil(ctx, deadline, o.Clock)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "interrupted")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("waited_ms", waited.Milliseconds()))
	return waited, nil
}

func (o *Orchestrator) renew(ctx context.Context) (string, error) {
	ctx, span := o.Tracer.Start(ctx, "auth.renew")
	defer span.End()
	token, err := o.Auth.ProgramLogin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "renewal failed")
		return "", err
	}
	return token, nil
}

func (o *Orchestrator) execute(ctx context.Context, action attempts.Action, id int64, rc *RunContext, waited time.Duration) selection.Outcome {
	ctx, span := o.Tracer.Start(ctx, "selection."+string(action))
	defer span.End()

	var out selection.Outcome
	if action == attempts.ActionDrop {
		out = o.Executor.Drop(ctx, id, rc.Token)
	} else {
		out = o.Executor.Select(ctx, id, rc.Token)
	}
	span.SetAttributes(attribute.String("outcome", string(out.Kind)))
	if !out.OK() {
		span.SetStatus(codes.Error, out.Reason)
	}

	a := attempts.Attempt{
		RunID:       rc.ID,
		Action:      action,
		OfferingID:  id,
		Outcome:     string(out.Kind),
		Reason:      out.Reason,
		Waited:      waited,
		AttemptedAt: o.Clock.Now(),
	}
	if err := o.Recorder.Record(ctx, a); err != nil {
		o.Logger.Warn("record attempt failed", zap.String("run_id", rc.ID.String()), zap.Error(err))
	}
	return out
}

func (o *Orchestrator) fail(span trace.Span, log *zap.Logger, res *Result, err error) (Result, error) {
	from := res.State
	res.enter(Failed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Info("run failed", zap.String("state", string(from)), zap.Error(err))
	if ce := log.Check(zap.DebugLevel, "failure stack"); ce != nil {
		ce.Write(zap.Strings("stack", errs.ExtractStackLines(err, 16)))
	}
	return *res, err
}
