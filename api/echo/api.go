// Package echo exposes the member directory and sync operations over HTTP.
package echo

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hcommons/membersync/directory"
	"github.com/hcommons/membersync/domain"
	"github.com/hcommons/membersync/log"
	"github.com/hcommons/membersync/mongodb"
	"github.com/hcommons/membersync/syncengine"
)

const searchResultLimit = 100

// Searcher finds profiles by a free-text query.
type Searcher interface {
	SearchByName(ctx context.Context, query string, limit int) ([]*domain.Profile, error)
}

// Syncer triggers a reconciliation run for one user.
type Syncer interface {
	SyncUsername(ctx context.Context, username string, opts syncengine.SyncOptions) (map[string]bool, error)
}

// Broadcaster fans a logout out to the configured endpoints.
type Broadcaster interface {
	LogoutAllEndpoints(ctx context.Context) []syncengine.EndpointResult
}

// MemberAPI holds the HTTP layer's dependencies.
type MemberAPI struct {
	paginator *directory.Paginator
	search    Searcher
	engine    Syncer
	logout    Broadcaster
	bearer    string
	log       log.Logger
}

// NewMemberAPI initializes the member API.
func NewMemberAPI(
	paginator *directory.Paginator,
	search Searcher,
	engine Syncer,
	logout Broadcaster,
	bearer string,
	logger log.Logger,
) *MemberAPI {
	return &MemberAPI{
		paginator: paginator,
		search:    search,
		engine:    engine,
		logout:    logout,
		bearer:    bearer,
		log:       logger,
	}
}

// RegisterRoutes registers the member routes.
func (a *MemberAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", a.HealthHandler)
	e.GET("/members", a.ListMembersHandler)
	e.POST("/members/search", a.SearchMembersHandler)

	protected := e.Group("/api", a.requireBearer)
	protected.POST("/sync/:username", a.SyncHandler)
	protected.POST("/logout-all", a.LogoutAllHandler)
}

// requireBearer guards the mutation endpoints with the static service
// bearer.
func (a *MemberAPI) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: func(key string, _ echo.Context) (bool, error) {
			return a.bearer != "" && key == a.bearer, nil
		},
		ErrorHandler: func(_ error, c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid or missing bearer token"})
		},
	})(next)
}

type errorResponse struct {
	Error string `json:"error"`
}

// memberPageResponse is the directory listing envelope.
type memberPageResponse struct {
	Profiles    []*domain.Profile `json:"profiles"`
	HasNext     bool              `json:"has_next"`
	HasPrev     bool              `json:"has_prev"`
	NextCursor  string            `json:"next_cursor,omitempty"`
	PrevCursor  string            `json:"prev_cursor,omitempty"`
	CurrentPage int64             `json:"current_page"`
	PageCount   int64             `json:"page_count"`
	TotalCount  int64             `json:"total_count"`
	PageSize    int               `json:"page_size"`
}

// HealthHandler reports liveness.
func (a *MemberAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListMembersHandler returns one directory page. Query parameters: cursor
// (opaque token from a previous page) and dir (next or prev, default next).
func (a *MemberAPI) ListMembersHandler(c echo.Context) error {
	cursor := c.QueryParam("cursor")

	dir := directory.DirectionNext
	switch c.QueryParam("dir") {
	case "", "next":
	case "prev":
		dir = directory.DirectionPrev
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "dir must be next or prev"})
	}

	page, err := a.paginator.Page(c.Request().Context(), cursor, dir)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCursor) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid cursor"})
		}
		a.log.Error(c.Request().Context(), "failed to load directory page", err, nil)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load members"})
	}

	return c.JSON(http.StatusOK, pageResponse(page))
}

func pageResponse(page *directory.Page) memberPageResponse {
	profiles := page.Profiles
	if profiles == nil {
		profiles = []*domain.Profile{}
	}
	return memberPageResponse{
		Profiles:    profiles,
		HasNext:     page.HasNext,
		HasPrev:     page.HasPrev,
		NextCursor:  page.NextCursor,
		PrevCursor:  page.PrevCursor,
		CurrentPage: page.CurrentPage,
		PageCount:   page.PageCount,
		TotalCount:  page.TotalCount,
		PageSize:    page.PageSize,
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// SearchMembersHandler returns profiles whose username or name contains the
// query. Search results use the listing envelope with pagination disabled.
func (a *MemberAPI) SearchMembersHandler(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "query is required"})
	}

	rows, err := a.search.SearchByName(c.Request().Context(), req.Query, searchResultLimit)
	if err != nil {
		a.log.Error(c.Request().Context(), "member search failed", err, map[string]interface{}{
			"query": req.Query,
		})
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "search failed"})
	}
	if rows == nil {
		rows = []*domain.Profile{}
	}

	return c.JSON(http.StatusOK, memberPageResponse{
		Profiles:    rows,
		CurrentPage: 1,
		PageCount:   1,
		TotalCount:  int64(len(rows)),
		PageSize:    len(rows),
	})
}

// SyncHandler triggers a reconciliation run for one user and returns the
// consolidated membership map.
func (a *MemberAPI) SyncHandler(c echo.Context) error {
	username := c.Param("username")
	force := c.QueryParam("force") == "true"

	memberOf, err := a.engine.SyncUsername(c.Request().Context(), username, syncengine.SyncOptions{Force: force})
	if err != nil {
		if errors.Is(err, mongodb.ErrProfileNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "unknown user"})
		}
		a.log.Error(c.Request().Context(), "sync failed", err, map[string]interface{}{
			"username": username,
		})
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "sync failed"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"username":     username,
		"is_member_of": memberOf,
	})
}

// LogoutAllHandler broadcasts a logout to every configured endpoint and
// returns the per-endpoint outcomes.
func (a *MemberAPI) LogoutAllHandler(c echo.Context) error {
	results := a.logout.LogoutAllEndpoints(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}
