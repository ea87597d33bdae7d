package webex

import (
	"context"
	"fmt"
	"net/url"
)

// LicensePage fetches one page of an organization's licenses.
func (c *Client) LicensePage(ctx context.Context, orgID, cursor string) ([]License, string, error) {
	return getPage[License](ctx, c, "/licenses", map[string]string{"orgId": orgID}, cursor)
}

// LocationPage fetches one page of an organization's locations.
func (c *Client) LocationPage(ctx context.Context, orgID, cursor string) ([]Location, string, error) {
	return getPage[Location](ctx, c, "/locations", map[string]string{"orgId": orgID}, cursor)
}

// PSTNConnection returns the current PSTN connection of a location as raw JSON.
func (c *Client) PSTNConnection(ctx context.Context, orgID, locationID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	path := fmt.Sprintf("/telephony/pstn/locations/%s/connection", url.PathEscape(locationID))
	if _, err := c.getJSON(ctx, path, map[string]string{"orgId": orgID}, &out); err != nil {
		return nil, fmt.Errorf("getting PSTN connection for location %s: %w", locationID, err)
	}
	return out, nil
}

// PSTNConnectionOptions lists the connection options valid for a location.
func (c *Client) PSTNConnectionOptions(ctx context.Context, orgID, locationID string) ([]PSTNConnectionOption, error) {
	path := fmt.Sprintf("/telephony/pstn/locations/%s/connectionOptions", url.PathEscape(locationID))
	opts, err := listAll[PSTNConnectionOption](ctx, c, path, map[string]string{"orgId": orgID})
	if err != nil {
		return nil, fmt.Errorf("listing PSTN options for location %s: %w", locationID, err)
	}
	return opts, nil
}
