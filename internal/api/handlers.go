package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/tracker"
)

type statusResponse struct {
	Online       bool       `json:"online"`
	ForceOffline bool       `json:"force_offline"`
	UserID       string     `json:"user_id"`
	Pending      int        `json:"pending"`
	State        string     `json:"state"`
	LastError    string     `json:"last_error,omitempty"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	Replayed     int        `json:"replayed"`
	PreloadedAt  *time.Time `json:"preloaded_at,omitempty"`
}

func buildStatus(s Sync) statusResponse {
	st := s.Status()
	resp := statusResponse{
		Online:       s.IsOnline(),
		ForceOffline: s.ForceOffline(),
		UserID:       s.UserID(),
		Pending:      len(s.PendingSync()),
		State:        st.State.String(),
		Replayed:     st.Replayed,
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	if !st.LastSync.IsZero() {
		t := st.LastSync
		resp.LastSync = &t
	}
	if t, ok := s.PreloadedAt(); ok {
		resp.PreloadedAt = &t
	}
	return resp
}

func getStatus(s Sync) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, NewSuccessResponse(buildStatus(s)))
	}
}

func getPending(s Sync) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending := s.PendingSync()
		if pending == nil {
			pending = []domain.PendingOperation{}
		}
		c.JSON(http.StatusOK, NewSuccessResponse(pending))
	}
}

type syncResponse struct {
	Replayed int `json:"replayed"`
}

func postSync(s Sync) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.SyncPendingData(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewSuccessResponse(syncResponse{Replayed: n}))
	}
}

type connectivityRequest struct {
	ForceOffline *bool `json:"force_offline" binding:"required"`
}

func postConnectivity(s Sync) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req connectivityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(FormatBindingError(err)))
			return
		}
		s.SetForceOffline(*req.ForceOffline)
		c.JSON(http.StatusOK, NewSuccessResponse(buildStatus(s)))
	}
}

type refreshResponse struct {
	Dataset   string `json:"dataset"`
	FromCache bool   `json:"from_cache"`
	Count     int    `json:"count"`
	Error     string `json:"error,omitempty"`
}

func toRefreshResponse(r domain.RefreshResult) refreshResponse {
	out := refreshResponse{Dataset: r.Dataset, FromCache: r.FromCache, Count: r.Count}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return out
}

func postPreload(cmds *tracker.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := cmds.PreloadAll(c.Request.Context(), nil)
		out := make([]refreshResponse, len(results))
		for i, r := range results {
			out[i] = toRefreshResponse(r)
		}
		c.JSON(http.StatusOK, NewSuccessResponse(out))
	}
}

func getStats(q *tracker.Queries, goals tracker.Goals, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := q.Snapshot()
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewSuccessResponse(tracker.Compute(snap, goals, now())))
	}
}

type searchResponse struct {
	Dataset string          `json:"dataset"`
	Results []search.Result `json:"results"`
}

func getSearch(svc *search.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		dataset, results, err := svc.FilterLocal(c.Query("dataset"), c.Query("field"), c.Query("q"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		if results == nil {
			results = []search.Result{}
		}
		c.JSON(http.StatusOK, NewSuccessResponse(searchResponse{Dataset: dataset, Results: results}))
	}
}

func listDatasets() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, NewSuccessResponse(domain.DatasetNames()))
	}
}

type recordsResponse struct {
	Dataset   string          `json:"dataset"`
	FromCache bool            `json:"from_cache"`
	Error     string          `json:"error,omitempty"`
	Records   []domain.Record `json:"records"`
}

// getRecords serves the cached rows of a dataset. With refresh=true the
// remote store is queried first.
func getRecords(cmds *tracker.Commands, q *tracker.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := datasetParam(c)
		if !ok {
			return
		}

		resp := recordsResponse{Dataset: name, FromCache: true}
		if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
			records, result := cmds.Refresh(c.Request.Context(), name)
			resp.Records = records
			resp.FromCache = result.FromCache
			if result.Error != nil {
				resp.Error = result.Error.Error()
			}
		} else {
			resp.Records, _ = q.Records(name)
		}
		if resp.Records == nil {
			resp.Records = []domain.Record{}
		}
		c.JSON(http.StatusOK, NewSuccessResponse(resp))
	}
}

func createRecord(cmds *tracker.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := datasetParam(c)
		if !ok {
			return
		}
		var rec domain.Record
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(FormatBindingError(err)))
			return
		}
		created, err := cmds.Create(c.Request.Context(), name, rec)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, NewSuccessResponse(created))
	}
}

func updateRecord(cmds *tracker.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := datasetParam(c)
		if !ok {
			return
		}
		var patch domain.Record
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(FormatBindingError(err)))
			return
		}
		updated, err := cmds.Update(c.Request.Context(), name, c.Param("id"), patch)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewSuccessResponse(updated))
	}
}

func deleteRecord(cmds *tracker.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		name, ok := datasetParam(c)
		if !ok {
			return
		}
		if err := cmds.Delete(c.Request.Context(), name, c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func toggleHabit(cmds *tracker.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := cmds.ToggleHabit(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, NewSuccessResponse(updated))
	}
}

func datasetParam(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if _, ok := domain.LookupDataset(name); !ok {
		abortWithError(c, fmt.Errorf("%w: %s", domain.ErrUnknownDataset, name))
		return "", false
	}
	return name, true
}
