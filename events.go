package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// -----------------------------
// Helper functions
// -----------------------------

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// getUserIDFromContext expects AuthMiddleware to set "user_id" (uint) in context.
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	uid, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	v, ok := uid.(uint)
	return v, ok
}

// optionalUserID identifies the caller on public routes when a valid bearer
// token happens to be present.
func optionalUserID(c *gin.Context) (uint, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return 0, false
	}
	token, err := jwt.Parse(strings.TrimPrefix(authHeader, "Bearer "), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret(), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return uint(rawID), true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}

func pagination(c *gin.Context, perPage int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return page, perPage
}

// parseDate accepts RFC3339 or YYYY-MM-DD.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
	}
	return t, err
}

func validEventType(t string) bool {
	switch t {
	case EventWorkshop, EventCompetition, EventHalaqah, EventLecture, EventOther:
		return true
	}
	return false
}

// -----------------------------
// Events: public
// -----------------------------

func ListEvents(c *gin.Context) {
	page, perPage := pagination(c, 10)

	query := DB.Model(&Event{}).Where("is_active = ?", true)

	if t := c.Query("type"); t != "" && validEventType(t) {
		query = query.Where("event_type = ?", t)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		kw := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?) OR LOWER(location) LIKE LOWER(?)", kw, kw, kw)
	}

	var events []Event
	if err := query.Order("start_date asc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&events).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, events)
}

func GetEvent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var ev Event
	if err := DB.First(&ev, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "event not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	isRegistered := false
	if userID, ok := optionalUserID(c); ok {
		var count int64
		DB.Model(&Registration{}).Where("user_id = ? AND event_id = ?", userID, id).Count(&count)
		isRegistered = count > 0
	}

	c.JSON(http.StatusOK, gin.H{
		"event":              ev,
		"is_registered":      isRegistered,
		"remaining_capacity": ev.RemainingCapacity(),
	})
}

// -----------------------------
// Events: registration
// -----------------------------

func RegisterForEventHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reg, err := RegisterForEvent(DB, user.ID, eventID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "event not found")
			return
		}
		jsonError(c, ledgerErrorStatus(err), err.Error())
		return
	}

	var ev Event
	DB.First(&ev, eventID)

	createNotification(user.ID, "Registration confirmed",
		"You are registered for \""+ev.Title+"\".")
	notifyAdmins("New event registration",
		user.FullName()+" registered for \""+ev.Title+"\".")

	c.JSON(http.StatusCreated, reg)
}

func CancelRegistrationHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	eventID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := CancelRegistration(DB, user.ID, eventID); err != nil {
		jsonError(c, ledgerErrorStatus(err), err.Error())
		return
	}

	var ev Event
	DB.First(&ev, eventID)

	createNotification(user.ID, "Registration cancelled",
		"Your registration for \""+ev.Title+"\" was cancelled.")

	c.JSON(http.StatusOK, gin.H{"message": "registration cancelled"})
}

func MyEvents(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, perPage := pagination(c, 10)

	var registrations []Registration
	if err := DB.Preload("Event").
		Where("user_id = ?", userID).
		Order("registration_date desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&registrations).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, registrations)
}

// -----------------------------
// Events: admin
// -----------------------------

// AdminEvents lists every event, inactive ones included, so a deactivated
// event stays reachable for edit and delete.
func AdminEvents(c *gin.Context) {
	page, perPage := pagination(c, 20)

	query := DB.Model(&Event{})
	if t := c.Query("type"); t != "" && validEventType(t) {
		query = query.Where("event_type = ?", t)
	}

	var events []Event
	if err := query.Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&events).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, events)
}

type EventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	EventType   string `json:"event_type" binding:"required"`
	StartDate   string `json:"start_date" binding:"required"` // RFC3339 or YYYY-MM-DD
	EndDate     string `json:"end_date" binding:"required"`
	Location    string `json:"location"`
	Capacity    *int   `json:"capacity"`
	Image       string `json:"image"`
}

func CreateEvent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body EventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if !validEventType(body.EventType) {
		jsonError(c, http.StatusBadRequest, "event_type must be one of: workshop, competition, halaqah, lecture, other")
		return
	}

	startDate, err := parseDate(body.StartDate)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid start_date format (use RFC3339 or YYYY-MM-DD)")
		return
	}
	endDate, err := parseDate(body.EndDate)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid end_date format (use RFC3339 or YYYY-MM-DD)")
		return
	}

	ev := Event{
		Title:       strings.TrimSpace(body.Title),
		Description: body.Description,
		EventType:   body.EventType,
		StartDate:   startDate,
		EndDate:     endDate,
		Location:    body.Location,
		Capacity:    body.Capacity,
		Image:       body.Image,
		CreatedBy:   user.ID,
		IsActive:    true,
	}

	if err := DB.Create(&ev).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create event: "+err.Error())
		return
	}

	notifyActiveUsers("New event",
		"\""+ev.Title+"\" is coming up. See the events page for details.")

	c.JSON(http.StatusCreated, ev)
}

type UpdateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	EventType   string `json:"event_type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Location    string `json:"location"`
	Capacity    *int   `json:"capacity"`
	Image       string `json:"image"`
	IsActive    *bool  `json:"is_active"`
}

func UpdateEvent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var ev Event
	if err := DB.First(&ev, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "event not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	var body UpdateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if body.Title != "" {
		ev.Title = strings.TrimSpace(body.Title)
	}
	if body.Description != "" {
		ev.Description = body.Description
	}
	if body.EventType != "" {
		if !validEventType(body.EventType) {
			jsonError(c, http.StatusBadRequest, "invalid event_type")
			return
		}
		ev.EventType = body.EventType
	}
	if body.StartDate != "" {
		startDate, err := parseDate(body.StartDate)
		if err != nil {
			jsonError(c, http.StatusBadRequest, "invalid start_date format")
			return
		}
		ev.StartDate = startDate
	}
	if body.EndDate != "" {
		endDate, err := parseDate(body.EndDate)
		if err != nil {
			jsonError(c, http.StatusBadRequest, "invalid end_date format")
			return
		}
		ev.EndDate = endDate
	}
	if body.Location != "" {
		ev.Location = body.Location
	}
	if body.Capacity != nil {
		ev.Capacity = body.Capacity
	}
	if body.Image != "" {
		ev.Image = body.Image
	}
	if body.IsActive != nil {
		ev.IsActive = *body.IsActive
	}

	if err := DB.Save(&ev).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not update event: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, ev)
}

func DeleteEvent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var ev Event
	if err := DB.First(&ev, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "event not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	// Delete registrations and event in a transaction
	if err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", ev.ID).Delete(&Registration{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Event{}, ev.ID).Error
	}); err != nil {
		jsonError(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "event deleted"})
}

// EventAttendees lists registrations for an event; staff only.
func EventAttendees(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var attendees []Registration
	if err := DB.Preload("User").
		Where("event_id = ?", id).
		Order("registration_date asc").
		Find(&attendees).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, attendees)
}
