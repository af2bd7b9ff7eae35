package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/hiregen/coordinator/internal/domain"
	"github.com/hiregen/coordinator/internal/ledger"
)

type attemptResponse struct {
	CandidateID string `json:"candidate_id"`
	Attempted   bool   `json:"attempted"`
}

func registerAttemptRoutes(api *gin.RouterGroup, store ledger.AttemptStore) {
	api.GET("/attempts/:candidate_id", func(c *gin.Context) {
		id, err := domain.ParseCandidateID(c.Param("candidate_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rec, found, err := store.GetAttempt(c.Request.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("candidate", id.String()).Msg("attempt read")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, attemptResponse{
			CandidateID: id.String(),
			Attempted:   found && rec.Attempted,
		})
	})

	// Idempotent: the flag only ever moves false -> true, so repeated
	// posts (double-submit, UI retries) are harmless.
	api.POST("/attempts/:candidate_id", func(c *gin.Context) {
		id, err := domain.ParseCandidateID(c.Param("candidate_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rec := domain.AttemptRecord{CandidateID: id, Attempted: true, UpdatedAt: time.Now()}
		if err := store.UpsertAttempt(c.Request.Context(), rec); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("candidate", id.String()).Msg("attempt upsert")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, attemptResponse{CandidateID: id.String(), Attempted: true})
	})
}
