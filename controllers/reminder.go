// controllers/reminder.go
package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cheerful-reminder-backend/models"
	"cheerful-reminder-backend/services"
	"cheerful-reminder-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateReminderInput defines the expected JSON structure
type CreateReminderInput struct {
	PersonName         string `json:"personName" binding:"required,min=2"`
	Type               string `json:"type" binding:"required,oneof=birthday anniversary"`
	Date               string `json:"date" binding:"required"`
	Relationship       string `json:"relationship" binding:"required,oneof=family friend partner colleague other"`
	CustomMessage      string `json:"customMessage"`
	NotificationMethod string `json:"notificationMethod" binding:"omitempty,oneof=email push both sms"`
	NotificationTiming *[]int `json:"notificationTiming"`
}

// UpdateReminderInput defines the expected JSON structure
type UpdateReminderInput struct {
	PersonName         *string `json:"personName" binding:"omitempty,min=2"`
	Type               *string `json:"type" binding:"omitempty,oneof=birthday anniversary"`
	Date               *string `json:"date"`
	Relationship       *string `json:"relationship" binding:"omitempty,oneof=family friend partner colleague other"`
	CustomMessage      *string `json:"customMessage"`
	NotificationMethod *string `json:"notificationMethod" binding:"omitempty,oneof=email push both sms"`
	NotificationTiming *[]int  `json:"notificationTiming"`
}

type ArchiveReminderInput struct {
	Archived *bool `json:"archived" binding:"required"`
}

// TestEmailInput mirrors the manual "send test reminder" form.
type TestEmailInput struct {
	PersonName    string `json:"personName" binding:"required"`
	EventType     string `json:"eventType" binding:"required,oneof=birthday anniversary welcome"`
	EventDate     string `json:"eventDate"`
	DaysUntil     int    `json:"daysUntil" binding:"min=0"`
	CustomMessage string `json:"customMessage"`
}

type ReminderController struct {
	Reminders services.ReminderRepository
	Profiles  services.ProfileStore
	// Mailer is nil when email delivery is not configured.
	Mailer services.Mailer
	Today  func() time.Time
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := utils.UserID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
	}
	return userID, ok
}

func reminderID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid reminder ID format")
		return uuid.Nil, false
	}
	return id, true
}

func validLeadTimes(c *gin.Context, values []int) bool {
	if err := utils.ValidateLeadTimes(values); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return false
	}
	return true
}

func validDate(c *gin.Context, value string) (time.Time, bool) {
	t, err := utils.ParseCalendarDate(value)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

// validName trims the person name and requires at least two characters of it.
func validName(c *gin.Context, value string) (string, bool) {
	name := strings.TrimSpace(value)
	if utf8.RuneCountInString(name) < 2 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: personName must have at least 2 characters")
		return "", false
	}
	return name, true
}

func respondStoreError(c *gin.Context, err error, action string) {
	if errors.Is(err, services.ErrReminderNotFound) {
		utils.RespondWithError(c, http.StatusNotFound, "Reminder not found")
		return
	}
	utils.RespondWithError(c, http.StatusInternalServerError, "Failed to "+action)
}

// CreateReminder creates a new reminder for the authenticated user
func (rc *ReminderController) CreateReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input CreateReminderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	name, ok := validName(c, input.PersonName)
	if !ok {
		return
	}
	date, ok := validDate(c, input.Date)
	if !ok {
		return
	}

	occasion := models.OccasionType(input.Type)
	leadTimes := models.DefaultLeadTimes(occasion)
	if input.NotificationTiming != nil {
		if !validLeadTimes(c, *input.NotificationTiming) {
			return
		}
		leadTimes = models.LeadTimes(*input.NotificationTiming).Normalized()
	}

	channel := models.ChannelEmail
	if input.NotificationMethod != "" {
		channel = models.Channel(input.NotificationMethod)
	}

	reminder := models.Reminder{
		ID:            uuid.New(),
		UserID:        userID,
		PersonName:    name,
		Type:          occasion,
		Date:          date.Format(utils.DateLayout),
		Relationship:  input.Relationship,
		CustomMessage: input.CustomMessage,
		LeadTimes:     leadTimes,
		Channel:       channel,
	}

	if err := rc.Reminders.Create(c.Request.Context(), &reminder); err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create reminder")
		return
	}

	c.JSON(http.StatusCreated, reminder)
}

// GetReminders lists the user's reminders. Archived ones are included only with ?archived=true.
func (rc *ReminderController) GetReminders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter := services.ReminderFilter{IncludeArchived: c.Query("archived") == "true"}
	if t := c.Query("type"); t != "" {
		if !models.OccasionType(t).Valid() {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid reminder type")
			return
		}
		filter.Type = models.OccasionType(t)
	}

	reminders, err := rc.Reminders.List(c.Request.Context(), userID, filter)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve reminders")
		return
	}

	c.JSON(http.StatusOK, reminders)
}

// GetUpcomingReminders lists active reminders occurring within ?days= (default 30).
func (rc *ReminderController) GetUpcomingReminders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	days := 30
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 || n > 366 {
			utils.RespondWithError(c, http.StatusBadRequest, "days must be between 0 and 366")
			return
		}
		days = n
	}

	reminders, err := rc.Reminders.List(c.Request.Context(), userID, services.ReminderFilter{})
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve reminders")
		return
	}

	c.JSON(http.StatusOK, services.Upcoming(reminders, rc.Today(), days))
}

// GetReminder retrieves a specific reminder by ID
func (rc *ReminderController) GetReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := reminderID(c)
	if !ok {
		return
	}

	reminder, err := rc.Reminders.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondStoreError(c, err, "retrieve reminder")
		return
	}

	c.JSON(http.StatusOK, reminder)
}

// UpdateReminder updates an existing reminder
func (rc *ReminderController) UpdateReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := reminderID(c)
	if !ok {
		return
	}

	var input UpdateReminderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	reminder, err := rc.Reminders.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondStoreError(c, err, "retrieve reminder")
		return
	}

	if input.PersonName != nil {
		name, ok := validName(c, *input.PersonName)
		if !ok {
			return
		}
		reminder.PersonName = name
	}
	if input.Type != nil {
		reminder.Type = models.OccasionType(*input.Type)
	}
	if input.Date != nil {
		date, ok := validDate(c, *input.Date)
		if !ok {
			return
		}
		reminder.Date = date.Format(utils.DateLayout)
	}
	if input.Relationship != nil {
		reminder.Relationship = *input.Relationship
	}
	if input.CustomMessage != nil {
		reminder.CustomMessage = *input.CustomMessage
	}
	if input.NotificationMethod != nil {
		reminder.Channel = models.Channel(*input.NotificationMethod)
	}
	if input.NotificationTiming != nil {
		if !validLeadTimes(c, *input.NotificationTiming) {
			return
		}
		reminder.LeadTimes = models.LeadTimes(*input.NotificationTiming).Normalized()
	}

	if err := rc.Reminders.Save(c.Request.Context(), reminder); err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update reminder")
		return
	}

	c.JSON(http.StatusOK, reminder)
}

// ArchiveReminder archives or restores a reminder
func (rc *ReminderController) ArchiveReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := reminderID(c)
	if !ok {
		return
	}

	var input ArchiveReminderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if err := rc.Reminders.SetArchived(c.Request.Context(), userID, id, *input.Archived); err != nil {
		respondStoreError(c, err, "archive reminder")
		return
	}

	message := "Reminder archived successfully"
	if !*input.Archived {
		message = "Reminder restored successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// DeleteReminder permanently deletes a reminder
func (rc *ReminderController) DeleteReminder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := reminderID(c)
	if !ok {
		return
	}

	if err := rc.Reminders.Delete(c.Request.Context(), userID, id); err != nil {
		respondStoreError(c, err, "delete reminder")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reminder deleted successfully"})
}

// SendTestEmail sends one reminder or welcome email to the caller's own address.
func (rc *ReminderController) SendTestEmail(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var input TestEmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if rc.Mailer == nil {
		utils.RespondWithError(c, http.StatusInternalServerError, services.ErrMailerNotConfigured.Error())
		return
	}

	profile, err := rc.Profiles.Profile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Profile not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve profile")
		}
		return
	}

	var email services.Email
	if input.EventType == "welcome" {
		email, err = services.WelcomeEmail(profile.Email, input.PersonName, input.CustomMessage)
	} else {
		date := rc.Today()
		if input.EventDate != "" {
			d, ok := validDate(c, input.EventDate)
			if !ok {
				return
			}
			date = d
		}
		email, err = services.ReminderEmail(services.Notice{
			To:            profile.Email,
			PersonName:    input.PersonName,
			Occasion:      models.OccasionType(input.EventType),
			Date:          date,
			DaysUntil:     input.DaysUntil,
			CustomMessage: input.CustomMessage,
		})
	}
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to render email")
		return
	}

	id, err := rc.Mailer.Send(c.Request.Context(), email)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadGateway, "Failed to send email: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"messageId": id,
		"recipient": profile.Email,
		"message":   "Email sent successfully",
	})
}
