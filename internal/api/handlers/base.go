package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/summons-reconcile/internal/api/dto"
	"github.com/eshaffer321/summons-reconcile/internal/domain/ledger"
	"github.com/eshaffer321/summons-reconcile/internal/infrastructure/storage"
)

const dateLayout = "2006-01-02"

// Base provides shared functionality for all handlers.
type Base struct {
	repo storage.Repository
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository) *Base {
	return &Base{repo: repo}
}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

// WriteError writes an error response and stops the handler chain.
func (b *Base) WriteError(c *gin.Context, status int, err dto.APIError) {
	c.AbortWithStatusJSON(status, err)
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

func toRecordResponse(r ledger.Record) dto.RecordResponse {
	return dto.RecordResponse{
		Label:  r.Label,
		Date:   r.Date.Format(dateLayout),
		Amount: r.Amount,
	}
}
