package syncapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"golang.org/x/oauth2"

	"github.com/hcommons/membersync/cache"
	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/ratelimit"
)

const upQueryPath = "query"

// upEmailRe validates addresses before they are interpolated into a SOQL
// query string.
var upEmailRe = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// SFAttributes is the metadata envelope Salesforce attaches to every
// record.
type SFAttributes struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// SFContact is a Salesforce Contact row as returned by the SOQL search.
type SFContact struct {
	Attributes   SFAttributes `json:"attributes"`
	ID           string       `json:"Id"`
	Name         string       `json:"Name"`
	Email        string       `json:"Email"`
	AccountID    string       `json:"AccountId"`
	CurrentStaff bool         `json:"Current_Staff__c"`
}

// SFQueryResponse is the envelope of a SOQL query result.
type SFQueryResponse struct {
	TotalSize int         `json:"totalSize"`
	Done      bool        `json:"done"`
	Records   []SFContact `json:"records"`
}

// SFAccount is a Salesforce Account record. Org-specific __c fields beyond
// these are ignored on decode.
type SFAccount struct {
	Attributes     SFAttributes `json:"attributes"`
	ID             string       `json:"Id"`
	Name           string       `json:"Name"`
	Email          string       `json:"Email__c"`
	Active         *bool        `json:"Active__c"`
	MembershipType string       `json:"Membership_Type__c"`
	CreatedDate    string       `json:"CreatedDate"`
	LastModified   string       `json:"LastModifiedDate"`
}

// sfError is the shape Salesforce uses for error payloads.
type sfError struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// UPOptions configures a UP client.
type UPOptions struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Store        cache.Store
	Limiter      *ratelimit.Limiter
	CacheCeiling time.Duration
	Version      string
	Logger       log.Logger
}

// UP talks to the Association of University Presses directory, which lives
// in Salesforce. Contacts are searched by email; the sync ID is the
// contact's Account Id.
//
// The bearer token is refreshed through the OAuth2 refresh-token grant
// before every outbound call and is not reused across calls, mirroring the
// upstream integration.
type UP struct {
	rest         *restClient
	tokenURL     string
	clientID     string
	clientSecret string
	refreshToken string
}

// NewUP creates a new UP client.
func NewUP(opts UPOptions) *UP {
	u := &UP{
		rest:         newRESTClient("UP", opts.BaseURL, opts.Store, opts.Limiter, opts.CacheCeiling, opts.Version, opts.Logger),
		tokenURL:     opts.TokenURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		refreshToken: opts.RefreshToken,
	}
	u.rest.prepare = u.authorize
	return u
}

// Name implements Client.
func (u *UP) Name() string { return "UP" }

// authorize refreshes the Salesforce bearer token and attaches it to the
// request.
func (u *UP) authorize(ctx context.Context, req *http.Request) error {
	conf := &oauth2.Config{
		ClientID:     u.clientID,
		ClientSecret: u.clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: u.tokenURL},
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: u.refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("salesforce token refresh: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return nil
}

// query runs a request and rejects Salesforce error payloads that arrive
// with a 200 status.
func (u *UP) query(ctx context.Context, suffix string, params url.Values, cacheKey string) ([]byte, error) {
	body, err := u.rest.get(ctx, suffix, params, cacheKey)
	if err != nil {
		return nil, err
	}

	var sfErrs []sfError
	if json.Unmarshal(body, &sfErrs) == nil && len(sfErrs) > 0 && sfErrs[0].ErrorCode != "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, sfErrs[0].ErrorCode)
	}

	return body, nil
}

// Search implements Client.
func (u *UP) Search(ctx context.Context, email string) (*SearchResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	return u.searchContact(ctx, email), nil
}

func (u *UP) searchContact(ctx context.Context, email string) *SearchResult {
	result := &SearchResult{System: "UP", Outcome: domain.SearchTransientFailure}

	params := url.Values{}
	params.Set("q", fmt.Sprintf(
		"SELECT Id, Name, Email, AccountId, Current_Staff__c FROM Contact WHERE Email = '%s'", email))

	body, err := u.query(ctx, upQueryPath, params, "UP_api_search_"+email)
	if err != nil {
		u.rest.log.Error(ctx, "request to UP API failed", err, map[string]interface{}{"email": email})
		return result
	}

	var resp SFQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		u.rest.log.Error(ctx, "error parsing UP search response", fmt.Errorf("%w: %v", ErrMalformedResponse, err), nil)
		return result
	}

	result.Raw = &resp
	if resp.TotalSize > 0 && len(resp.Records) > 0 {
		result.Outcome = domain.SearchFound
		result.SyncID = resp.Records[0].AccountID
	} else {
		result.Outcome = domain.SearchNotFound
	}

	return result
}

// SearchMultiple implements Client. Candidates that fail the address check
// are skipped rather than rejected, since alias lists routinely carry
// malformed entries.
func (u *UP) SearchMultiple(ctx context.Context, emails []string) *SearchResult {
	last := &SearchResult{System: "UP", Outcome: domain.SearchNotFound}

	for _, email := range emails {
		if !upEmailRe.MatchString(email) {
			continue
		}

		u.rest.log.Info(ctx, "searching for email in UP Contacts", map[string]interface{}{"email": email})

		result := u.searchContact(ctx, email)
		if result.Outcome == domain.SearchFound {
			return result
		}
		if result.Outcome == domain.SearchTransientFailure {
			last = result
		}
	}

	return last
}

// UserInfo implements Client.
func (u *UP) UserInfo(ctx context.Context, syncID string) (*MemberInfo, error) {
	account, err := u.account(ctx, syncID)
	if err != nil {
		return nil, err
	}

	info := &MemberInfo{
		SystemID: account.ID,
		Email:    account.Email,
		Name:     account.Name,
		Raw:      account,
	}
	if modified, err := ParseSalesforceTime(account.LastModified); err == nil {
		info.LastModified = &modified
	}

	return info, nil
}

func (u *UP) account(ctx context.Context, syncID string) (*SFAccount, error) {
	body, err := u.query(ctx, "sobjects/Account/"+syncID, nil, "UP_api_user_info_"+syncID)
	if err != nil {
		return nil, err
	}

	var account SFAccount
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &account, nil
}

// IsMember implements Client. The UP directory has no expiry concept:
// holding a resolvable Account record is what membership means.
func (u *UP) IsMember(ctx context.Context, syncID string) bool {
	account, err := u.account(ctx, syncID)
	if err != nil {
		u.rest.log.Error(ctx, "UP membership check failed", err, map[string]interface{}{"sync_id": syncID})
		return false
	}

	return account.ID != ""
}

// Groups implements Client. The UP API does not expose groups.
func (u *UP) Groups(_ context.Context, _ string) []string {
	return []string{}
}

// ParseSalesforceTime parses Salesforce datetimes such as
// "2025-11-06T13:56:42.000+0000". The offset arrives as "+0000" rather
// than the RFC 3339 "+00:00", so the colon is inserted when missing.
func ParseSalesforceTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	normalized := value
	if n := len(normalized); n >= 5 &&
		(normalized[n-5] == '+' || normalized[n-5] == '-') &&
		normalized[n-3] != ':' {
		normalized = normalized[:n-2] + ":" + normalized[n-2:]
	}

	return time.Parse(time.RFC3339, normalized)
}

var _ Client = (*UP)(nil)
