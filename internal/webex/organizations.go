package webex

import (
	"context"
	"fmt"
	"net/url"
)

// ActivateOrganization issues the activation call for orgID. Any 2xx counts as
// activated; the response body populates the returned Organization.
func (c *Client) ActivateOrganization(ctx context.Context, orgID string) (Organization, error) {
	var org Organization
	if _, err := c.getJSON(ctx, "/organizations/"+url.PathEscape(orgID), nil, &org); err != nil {
		return Organization{}, fmt.Errorf("activating org %s: %w", orgID, err)
	}
	if org.ID == "" {
		org.ID = orgID
	}
	return org, nil
}

// ListOrganizations returns every organization visible to the partner token.
func (c *Client) ListOrganizations(ctx context.Context) ([]Organization, error) {
	orgs, err := listAll[Organization](ctx, c, "/organizations", nil)
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	return orgs, nil
}
