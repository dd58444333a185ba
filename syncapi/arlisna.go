package syncapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hcommons/membersync/cache"
	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/ratelimit"
)

const arlisnaMembersPath = "members"

// arlisnaDateLayouts cover the timestamp shapes the ARLISNA API has been
// observed to emit.
var arlisnaDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ARLISNAGroup is a group membership row on a member record.
type ARLISNAGroup struct {
	GroupUniqueID    string `json:"GroupUniqueID"`
	GroupName        string `json:"GroupName"`
	InheritingMember bool   `json:"InheritingMember"`
}

// ARLISNAMember is the subset of the member record the sync engine needs.
// The upstream payload carries dozens more fields; unknown keys are
// ignored on decode.
type ARLISNAMember struct {
	UniqueID          string         `json:"UniqueID"`
	Name              string         `json:"Name"`
	FirstName         string         `json:"FirstName"`
	LastName          string         `json:"LastName"`
	Email             string         `json:"Email"`
	AccountEmail      string         `json:"AccountEmail"`
	Active            *bool          `json:"Active"`
	MemberStatus      string         `json:"MemberStatus"`
	MembershipExpires string         `json:"MembershipExpires"`
	Groups            []ARLISNAGroup `json:"Groups"`
}

// ARLISNASearchResponse is the payload of GET members?email=.
type ARLISNASearchResponse struct {
	TotalCount int             `json:"TotalCount"`
	Results    []ARLISNAMember `json:"Results"`
}

// ARLISNAOptions configures an ARLISNA client.
type ARLISNAOptions struct {
	BaseURL      string
	APIToken     string
	Store        cache.Store
	Limiter      *ratelimit.Limiter
	CacheCeiling time.Duration
	Version      string
	Logger       log.Logger
}

// ARLISNA talks to the Art Libraries Society of North America member API.
// The API is keyed by email: the sync ID for a member is the email address
// the record was found under.
type ARLISNA struct {
	rest *restClient
	now  func() time.Time
}

// NewARLISNA creates a new ARLISNA client.
func NewARLISNA(opts ARLISNAOptions) *ARLISNA {
	a := &ARLISNA{
		rest: newRESTClient("ARLISNA", opts.BaseURL, opts.Store, opts.Limiter, opts.CacheCeiling, opts.Version, opts.Logger),
		now:  time.Now,
	}
	token := opts.APIToken
	a.rest.prepare = func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Basic "+token)
		return nil
	}
	return a
}

// Name implements Client.
func (a *ARLISNA) Name() string { return "ARLISNA" }

func (a *ARLISNA) searchByEmail(ctx context.Context, email, cacheKey string) (*ARLISNASearchResponse, error) {
	params := url.Values{}
	params.Set("email", email)

	body, err := a.rest.get(ctx, arlisnaMembersPath, params, cacheKey)
	if err != nil {
		return nil, err
	}

	var resp ARLISNASearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &resp, nil
}

// Search implements Client.
func (a *ARLISNA) Search(ctx context.Context, email string) (*SearchResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	result := &SearchResult{System: "ARLISNA", Outcome: domain.SearchTransientFailure}

	resp, err := a.searchByEmail(ctx, email, "ARLISNA_api_search_"+email)
	if err != nil {
		a.rest.log.Error(ctx, "request to ARLISNA API failed", err, map[string]interface{}{"email": email})
		return result, nil
	}

	result.Raw = resp
	result.Outcome = domain.SearchNotFound
	if resp.TotalCount > 0 {
		// The count field and the results array can disagree on a bad
		// upstream day. Trust the array.
		if len(resp.Results) == 0 {
			a.rest.log.Error(ctx, "error parsing ARLISNA search response", fmt.Errorf("%w: TotalCount %d with empty Results", ErrMalformedResponse, resp.TotalCount), map[string]interface{}{"email": email})
			return result, nil
		}
		result.Outcome = domain.SearchFound
		result.SyncID = resp.Results[0].Email
	}

	return result, nil
}

// SearchMultiple implements Client.
func (a *ARLISNA) SearchMultiple(ctx context.Context, emails []string) *SearchResult {
	last := &SearchResult{System: "ARLISNA", Outcome: domain.SearchNotFound}

	for _, email := range emails {
		a.rest.log.Info(ctx, "searching for email in ARLISNA", map[string]interface{}{"email": email})

		result, err := a.Search(ctx, email)
		if err != nil {
			continue
		}
		if result.Outcome == domain.SearchFound {
			return result
		}
		if result.Outcome == domain.SearchTransientFailure {
			last = result
		}
	}

	return last
}

// UserInfo implements Client. ARLISNA records are addressed by email, so
// the sync ID doubles as the lookup key.
func (a *ARLISNA) UserInfo(ctx context.Context, syncID string) (*MemberInfo, error) {
	resp, err := a.searchByEmail(ctx, syncID, "ARLISNA_api_user_info_"+syncID)
	if err != nil {
		return nil, err
	}

	if resp.TotalCount == 0 || len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: no record for %q", ErrMalformedResponse, syncID)
	}

	member := resp.Results[0]
	info := &MemberInfo{
		SystemID: member.UniqueID,
		Email:    member.Email,
		Name:     member.Name,
		Raw:      resp,
	}
	if expiry, err := parseARLISNADate(member.MembershipExpires); err == nil {
		info.MembershipExpires = &expiry
	}

	return info, nil
}

// IsMember implements Client.
func (a *ARLISNA) IsMember(ctx context.Context, syncID string) bool {
	resp, err := a.searchByEmail(ctx, syncID, "ARLISNA_api_user_info_"+syncID)
	if err != nil {
		a.rest.log.Error(ctx, "ARLISNA membership check failed", err, map[string]interface{}{"sync_id": syncID})
		return false
	}

	if resp.TotalCount == 0 || len(resp.Results) == 0 {
		return false
	}

	expiry, err := parseARLISNADate(resp.Results[0].MembershipExpires)
	if err != nil {
		a.rest.log.Error(ctx, "error parsing date in ARLISNA response", err, map[string]interface{}{"sync_id": syncID})
		return false
	}

	return expiry.After(a.now().UTC())
}

// Groups implements Client. The ARLISNA API does not expose groups.
func (a *ARLISNA) Groups(_ context.Context, _ string) []string {
	return []string{}
}

func parseARLISNADate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty membership expiry")
	}
	var lastErr error
	for _, layout := range arlisnaDateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

var _ Client = (*ARLISNA)(nil)
