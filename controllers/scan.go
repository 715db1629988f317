// controllers/scan.go
package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cheerful-reminder-backend/services"
	"cheerful-reminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type reminderScanner interface {
	RunScan(ctx context.Context, today time.Time, filter *uuid.UUID) (*services.ScanResult, error)
	Today() time.Time
}

type ScanController struct {
	Scanner reminderScanner
}

// CheckRemindersInput optionally limits a scan to one reminder.
type CheckRemindersInput struct {
	ReminderID string `json:"reminderId"`
}

// CheckReminders runs one scan over the active reminders and reports the
// notifications it attempted.
func (sc *ScanController) CheckReminders(c *gin.Context) {
	var input CheckRemindersInput
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
	}
	if q := c.Query("reminderId"); q != "" {
		input.ReminderID = q
	}

	var filter *uuid.UUID
	if input.ReminderID != "" {
		id, err := uuid.Parse(input.ReminderID)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid reminder ID format")
			return
		}
		filter = &id
	}

	result, err := sc.Scanner.RunScan(c.Request.Context(), sc.Scanner.Today(), filter)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReminderNotFound):
			utils.RespondWithError(c, http.StatusNotFound, "Reminder not found or archived")
		default:
			utils.RespondWithError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    fmt.Sprintf("Checked %d reminders, sent %d emails", result.Scanned, result.EmailsSent()),
		"scanned":    result.Scanned,
		"skipped":    result.Skipped,
		"emailsSent": result.Dispatched,
	})
}
