package syncapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hcommons/membersync/cache"
	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/ratelimit"
)

const (
	// mlaExpiryLayout matches the dd/mm/yyyy dates the MLA API emits.
	mlaExpiryLayout = "02/01/2006"

	mlaMembersPath = "members"
)

// MLAMeta is the status envelope on every MLA response.
type MLAMeta struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MLAMembership carries the membership block of a member record.
type MLAMembership struct {
	ClassCode       string `json:"class_code"`
	YearJoined      string `json:"year_joined"`
	StartingDate    string `json:"starting_date"`
	ExpiringDate    string `json:"expiring_date"`
	MembershipYears string `json:"membership_years"`
}

// MLAGeneral carries the general-info block of a member record.
type MLAGeneral struct {
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	WebSite   string `json:"web_site"`
}

// MLASearchHit is one row of a search response.
type MLASearchHit struct {
	ID         string        `json:"id"`
	Membership MLAMembership `json:"membership"`
	General    MLAGeneral    `json:"general"`
}

// MLADataBlock groups search hits with their total count.
type MLADataBlock struct {
	TotalNumResults int            `json:"total_num_results"`
	SearchResults   []MLASearchHit `json:"search_results"`
}

// MLASearchResponse is the payload of GET members?email=.
type MLASearchResponse struct {
	Meta MLAMeta        `json:"meta"`
	Data []MLADataBlock `json:"data"`
}

// MLAMemberProfile is the full record returned by GET members/{id}.
type MLAMemberProfile struct {
	ID         string        `json:"id"`
	Membership MLAMembership `json:"membership"`
	General    MLAGeneral    `json:"general"`
}

// MLAMemberResponse is the payload of GET members/{id}.
type MLAMemberResponse struct {
	Meta MLAMeta            `json:"meta"`
	Data []MLAMemberProfile `json:"data"`
}

// MLAOptions configures an MLA client.
type MLAOptions struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	Store        cache.Store
	Limiter      *ratelimit.Limiter
	CacheCeiling time.Duration
	Version      string
	Logger       log.Logger
}

// MLA talks to the Modern Language Association member API. Every request
// carries a key, a timestamp and an HMAC-SHA256 signature over the
// canonicalized URL.
type MLA struct {
	rest      *restClient
	apiKey    string
	apiSecret string
	now       func() time.Time
}

// NewMLA creates a new MLA client.
func NewMLA(opts MLAOptions) *MLA {
	m := &MLA{
		rest:      newRESTClient("MLA", opts.BaseURL, opts.Store, opts.Limiter, opts.CacheCeiling, opts.Version, opts.Logger),
		apiKey:    opts.APIKey,
		apiSecret: opts.APISecret,
		now:       time.Now,
	}
	return m
}

// Name implements Client.
func (m *MLA) Name() string { return "MLA" }

// signedQuery appends key, timestamp and signature to the query. The
// signature is HMAC-SHA256 over "METHOD&<percent-encoded full URL>" with
// the shared secret, hex encoded.
func (m *MLA) signedQuery(params url.Values, suffix string) url.Values {
	params.Set("key", m.apiKey)
	params.Set("timestamp", strconv.FormatInt(m.now().Unix(), 10))

	fullURL := m.rest.baseURL + suffix + "?" + params.Encode()
	baseString := "GET&" + url.QueryEscape(fullURL)

	mac := hmac.New(sha256.New, []byte(m.apiSecret))
	mac.Write([]byte(baseString))
	params.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	return params
}

// Search implements Client.
func (m *MLA) Search(ctx context.Context, email string) (*SearchResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	result := &SearchResult{System: "MLA", Outcome: domain.SearchTransientFailure}

	params := url.Values{}
	params.Set("email", email)
	params.Set("membership_status", "ALL")

	body, err := m.rest.get(ctx, mlaMembersPath, m.signedQuery(params, mlaMembersPath), "mla_search_"+email)
	if err != nil {
		m.rest.log.Error(ctx, "request to MLA API failed", err, map[string]interface{}{"email": email})
		return result, nil
	}

	var resp MLASearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		m.rest.log.Error(ctx, "error parsing MLA search response", fmt.Errorf("%w: %v", ErrMalformedResponse, err), nil)
		return result, nil
	}

	result.Raw = &resp
	result.Outcome = domain.SearchNotFound
	if resp.Meta.Status == "success" && len(resp.Data) > 0 && resp.Data[0].TotalNumResults > 0 {
		// The count field and the results array can disagree on a bad
		// upstream day. Trust the array.
		if len(resp.Data[0].SearchResults) == 0 {
			m.rest.log.Error(ctx, "error parsing MLA search response", fmt.Errorf("%w: total_num_results %d with empty search_results", ErrMalformedResponse, resp.Data[0].TotalNumResults), map[string]interface{}{"email": email})
			return result, nil
		}
		result.Outcome = domain.SearchFound
		result.SyncID = resp.Data[0].SearchResults[0].ID
	}

	return result, nil
}

// SearchMultiple implements Client.
func (m *MLA) SearchMultiple(ctx context.Context, emails []string) *SearchResult {
	last := &SearchResult{System: "MLA", Outcome: domain.SearchNotFound}

	for _, email := range emails {
		m.rest.log.Info(ctx, "searching for email in MLA", map[string]interface{}{"email": email})

		result, err := m.Search(ctx, email)
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

// UserInfo implements Client.
func (m *MLA) UserInfo(ctx context.Context, syncID string) (*MemberInfo, error) {
	resp, err := m.memberByID(ctx, syncID)
	if err != nil {
		return nil, err
	}

	if resp.Meta.Status != "success" || len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: status %q", ErrMalformedResponse, resp.Meta.Status)
	}

	profile := resp.Data[0]
	info := &MemberInfo{
		SystemID: profile.ID,
		Email:    profile.General.Email,
		Name:     profile.General.FirstName + " " + profile.General.LastName,
		Raw:      resp,
	}
	if expiry, err := m.parseExpiry(profile.Membership.ExpiringDate); err == nil {
		info.MembershipExpires = &expiry
	}

	return info, nil
}

func (m *MLA) memberByID(ctx context.Context, syncID string) (*MLAMemberResponse, error) {
	suffix := mlaMembersPath + "/" + syncID

	body, err := m.rest.get(ctx, suffix, m.signedQuery(url.Values{}, suffix), "mla_user_info_"+syncID)
	if err != nil {
		return nil, err
	}

	var resp MLAMemberResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &resp, nil
}

func (m *MLA) parseExpiry(value string) (time.Time, error) {
	return time.ParseInLocation(mlaExpiryLayout, value, time.UTC)
}

// IsMember implements Client. Membership is active iff the record's
// expiring date parses and lies strictly in the future; everything else is
// treated as not a member.
func (m *MLA) IsMember(ctx context.Context, syncID string) bool {
	resp, err := m.memberByID(ctx, syncID)
	if err != nil {
		m.rest.log.Error(ctx, "MLA membership check failed", err, map[string]interface{}{"sync_id": syncID})
		return false
	}

	if resp.Meta.Status != "success" || len(resp.Data) == 0 {
		return false
	}

	expiry, err := m.parseExpiry(resp.Data[0].Membership.ExpiringDate)
	if err != nil {
		m.rest.log.Error(ctx, "error parsing date in MLA response", err, map[string]interface{}{"sync_id": syncID})
		return false
	}

	return expiry.After(m.now().UTC())
}

// Groups implements Client. The MLA API does not expose groups.
func (m *MLA) Groups(_ context.Context, _ string) []string {
	return []string{}
}

var _ Client = (*MLA)(nil)
