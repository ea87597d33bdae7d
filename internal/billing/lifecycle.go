package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/qmuntal/stateless"
	"github.com/rs/zerolog"

	apperr "github.com/ilhicas/webex-partner-ops/internal/errors"
	"github.com/ilhicas/webex-partner-ops/internal/retry"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// State of the billing report job as seen by the controller.
type State string

const (
	StateAbsent     State = "absent"
	StateRequested  State = "requested"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

const (
	triggerRequested = "requested"
	triggerStarted   = "started"
	triggerCompleted = "completed"
	triggerFail      = "fail"
)

// ReportAPI is the remote report protocol.
type ReportAPI interface {
	ListBillingReports(ctx context.Context) ([]webex.BillingReport, error)
	CreateBillingReport(ctx context.Context, req webex.BillingReportRequest) (webex.BillingReport, error)
	GetBillingReport(ctx context.Context, id string) (webex.BillingReport, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Job is the canonical billing report for a period.
type Job struct {
	ReportID     string
	Period       Period
	RemoteStatus string
	CreatedAt    time.Time
	DownloadURL  string
	Reused       bool
}

// Options tune a Controller.
type Options struct {
	ReportType   string
	PollInterval time.Duration
	MaxWait      time.Duration
	// Policy supplies the sleeper and clock of the polling loop.
	Policy retry.Policy
	Logger zerolog.Logger
}

// Controller drives one remote billing report through
// absent -> requested -> in_progress -> completed, or failed.
type Controller struct {
	api     ReportAPI
	opts    Options
	log     zerolog.Logger
	machine *stateless.StateMachine
}

// NewController creates a Controller in the absent state.
func NewController(api ReportAPI, opts Options) *Controller {
	if opts.ReportType == "" {
		opts.ReportType = "CUSTOMER"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}

	c := &Controller{
		api:  api,
		opts: opts,
		log:  opts.Logger.With().Str("component", "billing").Logger(),
	}
	c.machine = newMachine(c.log)
	return c
}

func newMachine(log zerolog.Logger) *stateless.StateMachine {
	sm := stateless.NewStateMachine(StateAbsent)

	sm.Configure(StateAbsent).
		Permit(triggerRequested, StateRequested).
		Permit(triggerStarted, StateInProgress).
		Permit(triggerCompleted, StateCompleted).
		Permit(triggerFail, StateFailed)

	sm.Configure(StateRequested).
		Ignore(triggerRequested).
		Permit(triggerStarted, StateInProgress).
		Permit(triggerCompleted, StateCompleted).
		Permit(triggerFail, StateFailed)

	sm.Configure(StateInProgress).
		Ignore(triggerRequested).
		PermitReentry(triggerStarted).
		Permit(triggerCompleted, StateCompleted).
		Permit(triggerFail, StateFailed)

	// A completed job can still fail the run when its download does.
	sm.Configure(StateCompleted).
		Ignore(triggerCompleted).
		Permit(triggerFail, StateFailed)

	sm.Configure(StateFailed)

	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		if t.Source != t.Destination {
			log.Debug().Str("from", string(t.Source.(State))).Str("to", string(t.Destination.(State))).Msg("report state changed")
		}
	})
	return sm
}

// State returns the current controller state.
func (c *Controller) State() State {
	return c.machine.MustState().(State)
}

// Run ensures a report exists for period, waits for it to complete, downloads
// it exactly once and returns the raw payload. Any failure is terminal for the
// invocation; job creation is never retried.
func (c *Controller) Run(ctx context.Context, period Period) (*Job, []byte, error) {
	log := c.log.With().Str("period", period.String()).Logger()

	job, err := c.ensure(ctx, period)
	if err != nil {
		return job, nil, c.fail(ctx, err)
	}

	if c.State() != StateCompleted {
		if err := c.wait(ctx, job); err != nil {
			return job, nil, c.fail(ctx, err)
		}
	}
	log.Info().Str("report_id", job.ReportID).Msg("report ready")

	if job.DownloadURL == "" {
		report, err := c.api.GetBillingReport(ctx, job.ReportID)
		if err != nil {
			return job, nil, c.fail(ctx, opError(apperr.KindDownload, "get_download_url", job.ReportID, err))
		}
		job.DownloadURL = report.TempDownloadURL
	}
	if job.DownloadURL == "" {
		return job, nil, c.fail(ctx, opError(apperr.KindDownload, "get_download_url", job.ReportID, errors.New("no tempDownloadURL in completed report")))
	}

	payload, err := c.api.Download(ctx, job.DownloadURL)
	if err != nil {
		return job, nil, c.fail(ctx, opError(apperr.KindDownload, "download", job.ReportID, err))
	}
	log.Info().Int("bytes", len(payload)).Msg("report downloaded")
	return job, payload, nil
}

// ensure finds the canonical report for period or creates one.
func (c *Controller) ensure(ctx context.Context, period Period) (*Job, error) {
	reports, err := c.api.ListBillingReports(ctx)
	if err != nil {
		return nil, opError(apperr.KindJobCreation, "list_reports", "", err)
	}

	if existing, ok := Canonical(reports, period); ok {
		job := newJob(existing, period)
		job.Reused = true
		c.log.Info().Str("report_id", job.ReportID).Str("status", existing.Status).Msg("reusing existing report")
		return job, c.observe(ctx, job, existing)
	}

	c.log.Info().Msg("no usable report for period, creating one")
	created, err := c.api.CreateBillingReport(ctx, webex.BillingReportRequest{
		BillingStartDate: period.StartDate(),
		BillingEndDate:   period.EndDate(),
		Type:             c.opts.ReportType,
	})
	if err != nil && !errors.Is(err, webex.ErrReportExists) {
		return nil, opError(apperr.KindJobCreation, "create_report", "", err)
	}

	if errors.Is(err, webex.ErrReportExists) || created.ID == "" {
		// The create call did not hand back an ID; adopt whatever now exists.
		reports, lerr := c.api.ListBillingReports(ctx)
		if lerr != nil {
			return nil, opError(apperr.KindJobCreation, "list_reports", "", lerr)
		}
		existing, ok := Canonical(reports, period)
		if !ok {
			return nil, opError(apperr.KindJobCreation, "create_report", "", errors.New("report not found after creation"))
		}
		created = existing
	}

	job := newJob(created, period)
	if created.Status == "" {
		created.Status = webex.ReportRequested
	}
	return job, c.observe(ctx, job, created)
}

// wait polls the report until it completes, fails or the wait times out.
func (c *Controller) wait(ctx context.Context, job *Job) error {
	err := c.opts.Policy.Poll(ctx, c.opts.PollInterval, c.opts.MaxWait, func(ctx context.Context) (bool, error) {
		report, err := c.api.GetBillingReport(ctx, job.ReportID)
		if err != nil {
			return false, opError(apperr.KindJobFailed, "poll_report", job.ReportID, err)
		}
		if err := c.observe(ctx, job, report); err != nil {
			return false, err
		}
		done := c.State() == StateCompleted
		if !done {
			c.log.Info().Str("report_id", job.ReportID).Str("status", report.Status).Msg("waiting for report to complete")
		}
		return done, nil
	})
	if errors.Is(err, retry.ErrPollTimeout) {
		return opError(apperr.KindJobPollTimeout, "poll_report", job.ReportID, err)
	}
	return err
}

// observe maps a remote status onto the state machine.
func (c *Controller) observe(ctx context.Context, job *Job, report webex.BillingReport) error {
	job.RemoteStatus = report.Status
	if report.TempDownloadURL != "" {
		job.DownloadURL = report.TempDownloadURL
	}

	switch report.Status {
	case webex.ReportRequested:
		return c.machine.FireCtx(ctx, triggerRequested)
	case webex.ReportInProgress:
		return c.machine.FireCtx(ctx, triggerStarted)
	case webex.ReportCompleted:
		return c.machine.FireCtx(ctx, triggerCompleted)
	case webex.ReportFailed:
		return opError(apperr.KindJobFailed, "poll_report", job.ReportID, errors.New("remote report status FAILED"))
	default:
		return opError(apperr.KindJobFailed, "poll_report", job.ReportID, fmt.Errorf("malformed report status %q", report.Status))
	}
}

func (c *Controller) fail(ctx context.Context, err error) error {
	if ferr := c.machine.FireCtx(ctx, triggerFail); ferr != nil {
		c.log.Debug().Err(ferr).Msg("state machine rejected fail trigger")
	}
	c.log.Error().Err(err).Msg("billing report workflow failed")
	return err
}

// Canonical picks the authoritative report for period: the most recently
// created one that has not failed.
func Canonical(reports []webex.BillingReport, period Period) (webex.BillingReport, bool) {
	var candidates []webex.BillingReport
	for _, r := range reports {
		if r.BillingStartDate == period.StartDate() && r.BillingEndDate == period.EndDate() && r.Status != webex.ReportFailed {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return webex.BillingReport{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return parseCreated(candidates[i].Created).After(parseCreated(candidates[j].Created))
	})
	return candidates[0], true
}

func newJob(r webex.BillingReport, period Period) *Job {
	return &Job{
		ReportID:     r.ID,
		Period:       period,
		RemoteStatus: r.Status,
		CreatedAt:    parseCreated(r.Created),
		DownloadURL:  r.TempDownloadURL,
	}
}

func parseCreated(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func opError(kind apperr.Kind, op, reportID string, err error) error {
	var opErr *apperr.OpError
	if errors.As(err, &opErr) && opErr.Kind == kind {
		return err
	}
	e := &apperr.OpError{Kind: kind, Op: op, Err: err}
	var apiErr *webex.APIError
	if errors.As(err, &apiErr) {
		e.StatusCode = apiErr.StatusCode
		e.Body = apiErr.Body
	}
	if reportID != "" {
		e.Op = fmt.Sprintf("%s(%s)", op, reportID)
	}
	return e
}
