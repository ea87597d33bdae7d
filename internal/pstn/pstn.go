// Package pstn audits, discovers and migrates the PSTN connection of every
// location of a set of customer organizations.
package pstn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ilhicas/webex-partner-ops/internal/fetcher"
	"github.com/ilhicas/webex-partner-ops/internal/reports"
	"github.com/ilhicas/webex-partner-ops/internal/webex"
)

// CauseNoLocations marks an activated organization without any location.
const CauseNoLocations = "no_locations"

// invalidCarrier is the rejection that makes a flip move on to the next option.
const invalidCarrier = "New carrier is invalid for location"

// API is the part of the partner API the PSTN workflows use.
type API interface {
	fetcher.Activator
	LocationPage(ctx context.Context, orgID, cursor string) ([]webex.Location, string, error)
	PSTNConnection(ctx context.Context, orgID, locationID string) (map[string]interface{}, error)
	PSTNConnectionOptions(ctx context.Context, orgID, locationID string) ([]webex.PSTNConnectionOption, error)
	SetPSTNConnection(ctx context.Context, orgID, locationID, optionID string) (webex.Exchange, error)
}

// Options tune a Service.
type Options struct {
	KeepPartial     bool
	ProviderKeyword string
	OptionIDs       []string
	DryRun          bool
	Logger          zerolog.Logger
}

// Service runs the PSTN workflows.
type Service struct {
	api  API
	opts Options
	log  zerolog.Logger
}

// NewService creates a Service.
func NewService(api API, opts Options) *Service {
	return &Service{
		api:  api,
		opts: opts,
		log:  opts.Logger.With().Str("component", "pstn").Logger(),
	}
}

// OrgLocations is the location list of one activated organization.
type OrgLocations struct {
	Org       fetcher.Organization
	Locations []webex.Location
}

// Locations activates every organization and lists its locations. Organizations
// that fail, or that have no location, are returned as failures.
func (s *Service) Locations(ctx context.Context, orgs []fetcher.Organization) ([]OrgLocations, []reports.FailureEntry) {
	f := fetcher.New[webex.Location](s.api, s.api.LocationPage, fetcher.Options{
		Collection:  "locations",
		KeepPartial: s.opts.KeepPartial,
		Logger:      s.opts.Logger,
	})
	res := f.Run(ctx, orgs)

	failures := reports.Failures(res)
	var out []OrgLocations
	for _, o := range res.Succeeded() {
		if len(o.Records) == 0 {
			s.log.Warn().Str("org_id", o.Org.ID).Msg("no locations found")
			failures = append(failures, reports.FailureEntry{
				CustomerName: o.Org.Name(),
				OrgID:        o.Org.ID,
				Cause:        CauseNoLocations,
				Error:        "organization has no locations",
			})
			continue
		}
		out = append(out, OrgLocations{Org: o.Org, Locations: o.Records})
	}
	return out, failures
}

// LocationConnection is the audited PSTN connection of one location.
type LocationConnection struct {
	LocationID   string                 `json:"locationId"`
	LocationName string                 `json:"locationName"`
	Connection   map[string]interface{} `json:"pstnConnection"`
	Error        string                 `json:"error,omitempty"`
}

// AuditRow is one line of the flat audit CSV.
type AuditRow struct {
	CustomerName   string `csv:"customer_name"`
	OrgID          string `csv:"org_id"`
	LocationID     string `csv:"location_id"`
	LocationName   string `csv:"location_name"`
	ConnectionType string `csv:"pstn_connection_type"`
	ProviderID     string `csv:"pstn_provider_id"`
	ProviderName   string `csv:"pstn_provider_name"`
	Error          string `csv:"error"`
}

// AuditResult is the outcome of Audit.
type AuditResult struct {
	ByOrg     map[string][]LocationConnection
	Rows      []AuditRow
	Succeeded []string
	Failures  []reports.FailureEntry
}

// Audit reads the PSTN connection of every location. A location whose
// connection cannot be read is recorded with an empty connection and the error.
func (s *Service) Audit(ctx context.Context, orgs []fetcher.Organization) *AuditResult {
	located, failures := s.Locations(ctx, orgs)
	res := &AuditResult{ByOrg: map[string][]LocationConnection{}, Succeeded: []string{}, Failures: failures}

	for _, ol := range located {
		conns := make([]LocationConnection, 0, len(ol.Locations))
		for _, loc := range ol.Locations {
			lc := LocationConnection{LocationID: loc.ID, LocationName: locationName(loc)}
			conn, err := s.api.PSTNConnection(ctx, ol.Org.ID, loc.ID)
			if err != nil {
				s.log.Error().Err(err).Str("org_id", ol.Org.ID).Str("location_id", loc.ID).Msg("reading PSTN connection failed")
				lc.Connection = map[string]interface{}{}
				lc.Error = err.Error()
			} else {
				lc.Connection = conn
			}
			conns = append(conns, lc)
			res.Rows = append(res.Rows, AuditRow{
				CustomerName:   ol.Org.Name(),
				OrgID:          ol.Org.ID,
				LocationID:     lc.LocationID,
				LocationName:   lc.LocationName,
				ConnectionType: stringField(lc.Connection, "pstnConnectionType"),
				ProviderID:     stringField(lc.Connection, "id"),
				ProviderName:   stringField(lc.Connection, "displayName"),
				Error:          lc.Error,
			})
		}
		res.ByOrg[ol.Org.ID] = conns
		res.Succeeded = append(res.Succeeded, ol.Org.ID)
		s.log.Info().Str("org_id", ol.Org.ID).Int("locations", len(conns)).Msg("org audited")
	}
	return res
}

// ProviderMatch lists the options of one location matching the provider keyword.
type ProviderMatch struct {
	OrgID           string                       `json:"org_id"`
	LocationID      string                       `json:"location_id"`
	LocationName    string                       `json:"location_name"`
	ProviderKeyword string                       `json:"provider_keyword"`
	Matches         []webex.PSTNConnectionOption `json:"matches"`
}

// DiscoveryError is an organization or location that could not be inspected.
type DiscoveryError struct {
	OrgID        string `json:"org_id"`
	LocationID   string `json:"location_id,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	Error        string `json:"error"`
}

// DiscoveryResult is the outcome of Discover.
type DiscoveryResult struct {
	Locations map[string][]webex.Location
	Matches   []ProviderMatch
	Errors    []DiscoveryError
}

// Discover lists the connection options of every location and keeps those
// whose display name contains the provider keyword, case-insensitively.
func (s *Service) Discover(ctx context.Context, orgs []fetcher.Organization) *DiscoveryResult {
	keyword := strings.ToLower(strings.TrimSpace(s.opts.ProviderKeyword))
	located, failures := s.Locations(ctx, orgs)

	res := &DiscoveryResult{Locations: map[string][]webex.Location{}}
	for _, f := range failures {
		res.Errors = append(res.Errors, DiscoveryError{OrgID: f.OrgID, Error: f.Error})
	}

	for _, ol := range located {
		res.Locations[ol.Org.ID] = ol.Locations
		for _, loc := range ol.Locations {
			options, err := s.api.PSTNConnectionOptions(ctx, ol.Org.ID, loc.ID)
			if err != nil {
				s.log.Error().Err(err).Str("org_id", ol.Org.ID).Str("location_id", loc.ID).Msg("listing PSTN options failed")
				res.Errors = append(res.Errors, DiscoveryError{
					OrgID:        ol.Org.ID,
					LocationID:   loc.ID,
					LocationName: locationName(loc),
					Error:        err.Error(),
				})
				continue
			}

			var matches []webex.PSTNConnectionOption
			for _, o := range options {
				if strings.Contains(strings.ToLower(o.DisplayName), keyword) {
					matches = append(matches, o)
				}
			}
			if len(matches) == 0 {
				continue
			}
			res.Matches = append(res.Matches, ProviderMatch{
				OrgID:           ol.Org.ID,
				LocationID:      loc.ID,
				LocationName:    locationName(loc),
				ProviderKeyword: keyword,
				Matches:         matches,
			})
		}
	}
	s.log.Info().Int("matches", len(res.Matches)).Int("errors", len(res.Errors)).Msg("discovery complete")
	return res
}

// FlipAttempt is one recorded connection update, or an intended one on a dry run.
type FlipAttempt struct {
	OrgID        string   `json:"org_id"`
	LocationID   string   `json:"location_id,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	OptionID     string   `json:"attempted_pstn_id,omitempty"`
	Candidates   []string `json:"candidates,omitempty"`
	StatusCode   int      `json:"status_code,omitempty"`
	ResponseText string   `json:"response_text,omitempty"`
	TrackingID   string   `json:"tracking_id,omitempty"`
	Error        string   `json:"error,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

// FlipResult is the outcome of Flip.
type FlipResult struct {
	Locations map[string][]webex.Location
	Attempts  []FlipAttempt
	Flipped   int
	Unchanged int
	Failures  []reports.FailureEntry
}

// Flip moves every location to the first configured option the API accepts.
// A 400 naming an invalid carrier tries the next option; any other rejection
// stops at that location. Every response is recorded.
func (s *Service) Flip(ctx context.Context, orgs []fetcher.Organization) (*FlipResult, error) {
	if len(s.opts.OptionIDs) == 0 {
		return nil, errors.New("no PSTN option IDs configured (pstn.option_ids)")
	}

	located, failures := s.Locations(ctx, orgs)
	res := &FlipResult{Locations: map[string][]webex.Location{}, Failures: failures}
	for _, f := range failures {
		res.Attempts = append(res.Attempts, FlipAttempt{OrgID: f.OrgID, Error: f.Error, StatusCode: f.StatusCode})
	}

	for _, ol := range located {
		res.Locations[ol.Org.ID] = ol.Locations
		for _, loc := range ol.Locations {
			if s.opts.DryRun {
				res.Attempts = append(res.Attempts, FlipAttempt{
					OrgID:        ol.Org.ID,
					LocationID:   loc.ID,
					LocationName: locationName(loc),
					Candidates:   s.opts.OptionIDs,
					DryRun:       true,
				})
				res.Unchanged++
				continue
			}
			if s.flipLocation(ctx, ol.Org.ID, loc, res) {
				res.Flipped++
			} else {
				res.Unchanged++
			}
		}
	}
	s.log.Info().Int("flipped", res.Flipped).Int("unchanged", res.Unchanged).Bool("dry_run", s.opts.DryRun).Msg("flip complete")
	return res, nil
}

func (s *Service) flipLocation(ctx context.Context, orgID string, loc webex.Location, res *FlipResult) bool {
	log := s.log.With().Str("org_id", orgID).Str("location_id", loc.ID).Logger()
	for _, optionID := range s.opts.OptionIDs {
		attempt := FlipAttempt{
			OrgID:        orgID,
			LocationID:   loc.ID,
			LocationName: locationName(loc),
			OptionID:     optionID,
		}

		ex, err := s.api.SetPSTNConnection(ctx, orgID, loc.ID, optionID)
		if err != nil {
			attempt.Error = err.Error()
			res.Attempts = append(res.Attempts, attempt)
			log.Error().Err(err).Str("option_id", optionID).Msg("PSTN update failed")
			return false
		}

		attempt.StatusCode = ex.StatusCode
		attempt.ResponseText = ex.Body
		attempt.TrackingID = ex.TrackingID
		res.Attempts = append(res.Attempts, attempt)

		switch {
		case ex.StatusCode >= 200 && ex.StatusCode < 300:
			log.Info().Str("option_id", optionID).Msg("PSTN connection updated")
			return true
		case ex.StatusCode == 400 && strings.Contains(ex.Body, invalidCarrier):
			log.Warn().Str("option_id", optionID).Msg("carrier invalid for location, trying next option")
		default:
			log.Error().Int("status", ex.StatusCode).Str("option_id", optionID).Msg("PSTN update rejected")
			return false
		}
	}
	log.Warn().Msg("no configured option accepted")
	return false
}

func locationName(loc webex.Location) string {
	if loc.Name == "" {
		return "Unknown"
	}
	return loc.Name
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
