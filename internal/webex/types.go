package webex

// Organization is the activation payload of GET /organizations/{orgId}.
type Organization struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Created     string `json:"created"`
	CountryCode string `json:"countryCode,omitempty"`
}

// License is one item of GET /licenses.
type License struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	TotalUnits     int64  `json:"totalUnits"`
	ConsumedUnits  int64  `json:"consumedUnits"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	Status         string `json:"status,omitempty"`
	SkuID          string `json:"skuId,omitempty"`
	OfferID        string `json:"offerId,omitempty"`
	SiteURL        string `json:"siteUrl,omitempty"`
	Created        string `json:"created,omitempty"`
	Modified       string `json:"modified,omitempty"`
}

// Location is one item of GET /locations.
type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OrgID   string `json:"orgId,omitempty"`
	Address struct {
		City    string `json:"city,omitempty"`
		Country string `json:"country,omitempty"`
	} `json:"address"`
}

// PSTNConnectionOption is one item of the connectionOptions listing.
type PSTNConnectionOption struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	PSTNServices   []string `json:"pstnServices,omitempty"`
	ConnectionType string   `json:"pstnConnectionType,omitempty"`
}

// Exchange is a request/response pair recorded verbatim (PSTN updates).
type Exchange struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"response_text"`
	TrackingID string `json:"tracking_id,omitempty"`
}

// Remote billing report statuses.
const (
	ReportRequested  = "REQUESTED"
	ReportInProgress = "IN_PROGRESS"
	ReportCompleted  = "COMPLETED"
	ReportFailed     = "FAILED"
)

// BillingReport is a wholesale billing report as returned by the API.
type BillingReport struct {
	ID               string `json:"id"`
	BillingStartDate string `json:"billingStartDate"`
	BillingEndDate   string `json:"billingEndDate"`
	Status           string `json:"status"`
	Type             string `json:"type,omitempty"`
	Created          string `json:"created,omitempty"`
	TempDownloadURL  string `json:"tempDownloadURL,omitempty"`
}

// BillingReportRequest is the create payload.
type BillingReportRequest struct {
	BillingStartDate string `json:"billingStartDate"`
	BillingEndDate   string `json:"billingEndDate"`
	Type             string `json:"type"`
}
