package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonwraymond/resultcache/board"
	"github.com/jonwraymond/resultcache/cache"
	"github.com/jonwraymond/resultcache/settings"
)

func (s *Server) getSettings(c *gin.Context) {
	cur, err := s.settings.Get(c.Request.Context())
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

// putSettings merges the JSON body onto the current settings. Fields the
// body omits keep their values.
func (s *Server) putSettings(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.respondWithError(c, fmt.Errorf("%w: %w", errMalformedBody, err))
		return
	}

	next, err := s.settings.Update(c.Request.Context(), func(cur *settings.Settings) error {
		if err := json.Unmarshal(body, cur); err != nil {
			return fmt.Errorf("%w: %w", errMalformedBody, err)
		}
		return nil
	})
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) reloadSettings(c *gin.Context) {
	cur, err := s.settings.Reload(c.Request.Context())
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

func (s *Server) listFeatures(c *gin.Context) {
	features, err := s.board.List(c.Request.Context(), c.Param("project"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"features": features, "count": len(features)})
}

func (s *Server) getFeature(c *gin.Context) {
	f, err := s.board.Get(c.Request.Context(), c.Param("project"), c.Param("id"))
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// putFeature creates or replaces a feature. The ID comes from the path; a
// body ID, when present, must match it.
func (s *Server) putFeature(c *gin.Context) {
	var f board.Feature
	if err := c.ShouldBindJSON(&f); err != nil {
		s.respondWithError(c, fmt.Errorf("%w: %w", errMalformedBody, err))
		return
	}

	id := c.Param("id")
	if f.ID != "" && f.ID != id {
		s.respondWithError(c, fmt.Errorf("%w: body id %q does not match path id %q", board.ErrInvalidFeature, f.ID, id))
		return
	}
	f.ID = id

	saved, err := s.board.Save(c.Request.Context(), c.Param("project"), f)
	if err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) deleteFeature(c *gin.Context) {
	if err := s.board.Delete(c.Request.Context(), c.Param("project"), c.Param("id")); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) invalidateProject(c *gin.Context) {
	project := c.Param("project")
	if err := board.ValidateName(project); err != nil {
		s.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project, "invalidated": s.board.InvalidateProject(project)})
}

// StatsResponse is the JSON form of cache.Stats.
type StatsResponse struct {
	Hits              uint64  `json:"hits"`
	Misses            uint64  `json:"misses"`
	StaleHits         uint64  `json:"staleHits"`
	Joins             uint64  `json:"joins"`
	ProducerCalls     uint64  `json:"producerCalls"`
	ProducerErrors    uint64  `json:"producerErrors"`
	Refreshes         uint64  `json:"refreshes"`
	RefreshErrors     uint64  `json:"refreshErrors"`
	Evictions         uint64  `json:"evictions"`
	Expired           uint64  `json:"expired"`
	Invalidated       uint64  `json:"invalidated"`
	Entries           int     `json:"entries"`
	InFlight          int     `json:"inFlight"`
	Capacity          int     `json:"capacity"`
	Closed            bool    `json:"closed"`
	HitRatio          float64 `json:"hitRatio"`
	RefreshErrorRatio float64 `json:"refreshErrorRatio"`
}

func newStatsResponse(st cache.Stats) StatsResponse {
	return StatsResponse{
		Hits:              st.Hits,
		Misses:            st.Misses,
		StaleHits:         st.StaleHits,
		Joins:             st.Joins,
		ProducerCalls:     st.ProducerCalls,
		ProducerErrors:    st.ProducerErrors,
		Refreshes:         st.Refreshes,
		RefreshErrors:     st.RefreshErrors,
		Evictions:         st.Evictions,
		Expired:           st.Expired,
		Invalidated:       st.Invalidated,
		Entries:           st.Entries,
		InFlight:          st.InFlight,
		Capacity:          st.Capacity,
		Closed:            st.Closed,
		HitRatio:          st.HitRatio(),
		RefreshErrorRatio: st.RefreshErrorRatio(),
	}
}

func (s *Server) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, map[string]StatsResponse{
		"settings":       newStatsResponse(s.settings.Stats()),
		"board.features": newStatsResponse(s.board.ListStats()),
		"board.feature":  newStatsResponse(s.board.FeatureStats()),
	})
}
