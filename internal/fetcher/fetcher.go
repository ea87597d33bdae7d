package fetcher

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	apperr "github.com/ilhicas/webex-partner-ops/internal/errors"
	"github.com/ilhicas/webex-partner-ops/internal/retry"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// ActivationStatus of an organization within one run.
type ActivationStatus string

const (
	Unactivated ActivationStatus = "unactivated"
	Active      ActivationStatus = "active"
	Failed      ActivationStatus = "failed"
)

// Organization is the per-run handle of a customer organization.
type Organization struct {
	ID           string           `json:"org_id"`
	CustomerName string           `json:"customer_name,omitempty"`
	DisplayName  string           `json:"org_display_name,omitempty"`
	Created      string           `json:"created,omitempty"`
	CountryCode  string           `json:"country_code,omitempty"`
	Status       ActivationStatus `json:"status"`
}

// Name is the best human label for the organization.
func (o Organization) Name() string {
	if o.CustomerName != "" {
		return o.CustomerName
	}
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.ID
}

// Activator performs the activation call.
type Activator interface {
	ActivateOrganization(ctx context.Context, orgID string) (webex.Organization, error)
}

// PageFunc fetches one page of a collection for an organization. An empty
// next cursor means there are no further pages.
type PageFunc[T any] func(ctx context.Context, orgID, cursor string) (items []T, next string, err error)

// Outcome is the result for exactly one organization.
type Outcome[T any] struct {
	Org        Organization
	Succeeded  bool
	Records    []T
	Partial    []T // records retrieved before a failure, only with KeepPartial
	Cause      apperr.Kind
	StatusCode int
	Err        error
}

// Result partitions outcomes, preserving input order.
type Result[T any] struct {
	Outcomes []Outcome[T]
}

// Succeeded returns the successful outcomes.
func (r *Result[T]) Succeeded() []Outcome[T] {
	var out []Outcome[T]
	for _, o := range r.Outcomes {
		if o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the failed outcomes.
func (r *Result[T]) Failed() []Outcome[T] {
	var out []Outcome[T]
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

// Records flattens the records of all successful outcomes.
func (r *Result[T]) Records() []T {
	var out []T
	for _, o := range r.Outcomes {
		if o.Succeeded {
			out = append(out, o.Records...)
		}
	}
	return out
}

// Options tune a Fetcher.
type Options struct {
	// Collection names the fetched collection in logs and errors.
	Collection string
	// KeepPartial keeps records fetched before a failure on the failed
	// outcome. They are never merged into Records().
	KeepPartial bool
	Logger      zerolog.Logger
}

// Fetcher activates organizations and drains a paginated collection for each.
type Fetcher[T any] struct {
	activator Activator
	page      PageFunc[T]
	opts      Options
	log       zerolog.Logger
}

// New creates a Fetcher.
func New[T any](activator Activator, page PageFunc[T], opts Options) *Fetcher[T] {
	if opts.Collection == "" {
		opts.Collection = "records"
	}
	return &Fetcher[T]{
		activator: activator,
		page:      page,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "fetcher").Str("collection", opts.Collection).Logger(),
	}
}

// Run produces one Outcome per organization. A failure for one organization
// never stops the others.
func (f *Fetcher[T]) Run(ctx context.Context, orgs []Organization) *Result[T] {
	result := &Result[T]{Outcomes: make([]Outcome[T], 0, len(orgs))}

	for i, org := range orgs {
		f.log.Info().Str("org_id", org.ID).Str("customer", org.CustomerName).
			Msgf("processing org %d/%d", i+1, len(orgs))
		result.Outcomes = append(result.Outcomes, f.runOne(ctx, org))
	}

	f.log.Info().Int("succeeded", len(result.Succeeded())).Int("failed", len(result.Failed())).Msg("batch complete")
	return result
}

// Activate performs only the activation step for one organization.
func (f *Fetcher[T]) Activate(ctx context.Context, org Organization) (Organization, error) {
	org.Status = Unactivated
	remote, err := f.activator.ActivateOrganization(ctx, org.ID)
	if err != nil {
		org.Status = Failed
		return org, &apperr.OpError{
			Kind:       apperr.KindActivation,
			Op:         "activate",
			OrgID:      org.ID,
			StatusCode: statusOf(err),
			Body:       bodyOf(err),
			Err:        err,
		}
	}

	org.Status = Active
	org.DisplayName = remote.DisplayName
	org.Created = remote.Created
	org.CountryCode = remote.CountryCode
	return org, nil
}

func (f *Fetcher[T]) runOne(ctx context.Context, org Organization) Outcome[T] {
	org, err := f.Activate(ctx, org)
	if err != nil {
		f.log.Error().Err(err).Str("org_id", org.ID).Msg("activation failed")
		return Outcome[T]{Org: org, Cause: apperr.KindActivation, StatusCode: apperr.StatusOf(err), Err: err}
	}
	f.log.Info().Str("org_id", org.ID).Str("display_name", org.DisplayName).Msg("org activated")

	var records []T
	cursor := ""
	for page := 1; ; page++ {
		items, next, err := f.page(ctx, org.ID, cursor)
		if err != nil {
			kind := apperr.KindFetch
			if errors.Is(err, retry.ErrExhausted) {
				kind = apperr.KindFetchExhausted
			}
			opErr := &apperr.OpError{
				Kind:       kind,
				Op:         "fetch_" + f.opts.Collection,
				OrgID:      org.ID,
				StatusCode: statusOf(err),
				Body:       bodyOf(err),
				Err:        err,
			}
			f.log.Error().Err(opErr).Str("org_id", org.ID).Int("page", page).Msg("page fetch failed")

			out := Outcome[T]{Org: org, Cause: kind, StatusCode: opErr.StatusCode, Err: opErr}
			if f.opts.KeepPartial {
				out.Partial = records
			}
			return out
		}

		records = append(records, items...)
		if next == "" || len(items) == 0 {
			break
		}
		cursor = next
	}

	f.log.Info().Str("org_id", org.ID).Int(f.opts.Collection, len(records)).Msg("org fetched")
	if records == nil {
		records = []T{}
	}
	return Outcome[T]{Org: org, Succeeded: true, Records: records}
}

func statusOf(err error) int {
	var apiErr *webex.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func bodyOf(err error) string {
	var apiErr *webex.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
