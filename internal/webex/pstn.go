package webex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
)

// SetPSTNConnection assigns a connection option to a location. A non-2xx
// answer is not an error here: the exchange is returned so the caller can
// record it verbatim and decide whether to try another option.
func (c *Client) SetPSTNConnection(ctx context.Context, orgID, locationID, optionID string) (Exchange, error) {
	path := fmt.Sprintf("/telephony/pstn/locations/%s/connection", url.PathEscape(locationID))
	resp, err := c.execute(ctx, http.MethodPut, path, func(r *resty.Request) {
		r.SetQueryParam("orgId", orgID).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"id": optionID})
	})

	var apiErr *APIError
	switch {
	case err == nil:
		return Exchange{
			StatusCode: resp.StatusCode(),
			Body:       string(resp.Body()),
			TrackingID: resp.Header().Get("Trackingid"),
		}, nil
	case errors.As(err, &apiErr) && !retryableStatus(apiErr.StatusCode):
		return Exchange{StatusCode: apiErr.StatusCode, Body: apiErr.Body, TrackingID: apiErr.TrackingID}, nil
	default:
		return Exchange{}, fmt.Errorf("updating PSTN for location %s: %w", locationID, err)
	}
}
