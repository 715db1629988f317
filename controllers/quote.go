// controllers/quote.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cheerful-reminder-backend/services"
	"cheerful-reminder-backend/utils"

	"github.com/gin-gonic/gin"
)

type quoteGenerator interface {
	Generate(ctx context.Context, req services.QuoteRequest) (string, error)
}

type QuoteController struct {
	// Quotes is nil when DEEPSEEK_API_KEY is not set.
	Quotes  quoteGenerator
	Timeout time.Duration
}

// GenerateQuote asks the language model for a celebratory quote.
func (qc *QuoteController) GenerateQuote(c *gin.Context) {
	if qc.Quotes == nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "API key configuration issue. Please contact support.")
		return
	}

	var input services.QuoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if qc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, qc.Timeout)
		defer cancel()
	}

	quote, err := qc.Quotes.Generate(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrQuoteUnavailable), errors.Is(err, context.DeadlineExceeded):
			utils.RespondWithError(c, http.StatusServiceUnavailable, "Failed to connect to AI service. Please try again later.")
		case errors.Is(err, services.ErrQuoteUpstream):
			utils.RespondWithError(c, http.StatusBadGateway, "AI service returned an error. Please try again later.")
		default:
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate quote")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"quote": quote})
}
