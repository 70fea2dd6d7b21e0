package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// -----------------------------
// Circles: public
// -----------------------------

func ListCircles(c *gin.Context) {
	page, perPage := pagination(c, 10)

	query := DB.Model(&QuranCircle{}).Where("is_active = ?", true)

	if t := c.Query("type"); t != "" {
		query = query.Where("circle_type = ?", t)
	}
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		kw := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?) OR LOWER(teacher_name) LIKE LOWER(?)", kw, kw, kw)
	}

	var circles []QuranCircle
	if err := query.Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&circles).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, circles)
}

func GetCircle(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var circle QuranCircle
	if err := DB.First(&circle, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "circle not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	isMember := false
	if userID, ok := optionalUserID(c); ok {
		var count int64
		DB.Model(&CircleMember{}).
			Where("circle_id = ? AND user_id = ? AND is_active = ?", id, userID, true).
			Count(&count)
		isMember = count > 0
	}

	now := time.Now()
	var upcoming, past []CircleSession
	DB.Where("circle_id = ? AND session_date >= ?", id, now).
		Order("session_date asc").Limit(5).Find(&upcoming)
	DB.Where("circle_id = ? AND session_date < ?", id, now).
		Order("session_date desc").Limit(5).Find(&past)

	var files []CircleFile
	DB.Where("circle_id = ? AND is_public = ?", id, true).
		Order("uploaded_at desc").Limit(10).Find(&files)

	c.JSON(http.StatusOK, gin.H{
		"circle":             circle,
		"is_member":          isMember,
		"upcoming_sessions":  upcoming,
		"past_sessions":      past,
		"files":              files,
		"remaining_capacity": circle.RemainingCapacity(),
	})
}

// -----------------------------
// Circles: membership
// -----------------------------

func JoinCircleHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	circleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := JoinCircle(DB, user.ID, circleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "circle not found")
			return
		}
		jsonError(c, ledgerErrorStatus(err), err.Error())
		return
	}

	var circle QuranCircle
	DB.First(&circle, circleID)

	switch result {
	case AlreadyMember:
		c.JSON(http.StatusOK, gin.H{"message": "already a member of this circle"})
	case Rejoined:
		createNotification(user.ID, "Membership reactivated",
			"Your membership in \""+circle.Name+"\" is active again.")
		c.JSON(http.StatusOK, gin.H{"message": "membership reactivated"})
	default:
		createNotification(user.ID, "Joined recitation circle",
			"You joined \""+circle.Name+"\".")
		c.JSON(http.StatusCreated, gin.H{"message": "joined circle"})
	}
}

func LeaveCircleHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	circleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := LeaveCircle(DB, user.ID, circleID); err != nil {
		jsonError(c, ledgerErrorStatus(err), err.Error())
		return
	}

	var circle QuranCircle
	DB.First(&circle, circleID)

	createNotification(user.ID, "Left recitation circle",
		"You left \""+circle.Name+"\".")

	c.JSON(http.StatusOK, gin.H{"message": "left circle"})
}

// isActiveMember reports an active membership of any role.
func isActiveMember(userID, circleID uint) bool {
	var count int64
	DB.Model(&CircleMember{}).
		Where("circle_id = ? AND user_id = ? AND is_active = ?", circleID, userID, true).
		Count(&count)
	return count > 0
}

// -----------------------------
// Circles: sessions
// -----------------------------

// CircleSessions lists a circle's sessions; members and admins only.
func CircleSessions(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	circleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if !isActiveMember(user.ID, circleID) && !user.IsAdmin() {
		jsonError(c, http.StatusForbidden, "circle members only")
		return
	}

	page, perPage := pagination(c, 10)

	query := DB.Where("circle_id = ?", circleID)
	switch c.Query("status") {
	case "upcoming":
		query = query.Where("session_date >= ?", time.Now())
	case "past":
		query = query.Where("session_date < ?", time.Now())
	}

	var sessions []CircleSession
	if err := query.Order("session_date desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&sessions).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, sessions)
}

func GetSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var session CircleSession
	if err := DB.First(&session, sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "session not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	if !isActiveMember(user.ID, session.CircleID) && !user.IsAdmin() {
		jsonError(c, http.StatusForbidden, "circle members only")
		return
	}

	var attendances []SessionAttendance
	DB.Preload("Member.User").Where("session_id = ?", sessionID).Find(&attendances)

	var files []SessionFile
	DB.Where("session_id = ?", sessionID).Order("uploaded_at desc").Find(&files)

	c.JSON(http.StatusOK, gin.H{
		"session":     session,
		"attendances": attendances,
		"files":       files,
	})
}

type SessionRequest struct {
	Title          string `json:"title"`
	SessionDate    string `json:"session_date" binding:"required"` // RFC3339 or YYYY-MM-DD
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Topic          string `json:"topic"`
	Description    string `json:"description"`
	VersesReviewed string `json:"verses_reviewed"`
	Notes          string `json:"notes"`
	Homework       string `json:"homework"`
}

// CreateSession schedules a session; circle teacher or admin only.
func CreateSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	circleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var circle QuranCircle
	if err := DB.First(&circle, circleID).Error; err != nil {
		jsonError(c, http.StatusNotFound, "circle not found")
		return
	}

	if !canManageCircle(DB, user, circleID) {
		jsonError(c, http.StatusForbidden, "circle teacher or admin only")
		return
	}

	var body SessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	sessionDate, err := parseDate(body.SessionDate)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid session_date format (use RFC3339 or YYYY-MM-DD)")
		return
	}

	session := CircleSession{
		CircleID:       circleID,
		Title:          body.Title,
		SessionDate:    sessionDate,
		StartTime:      body.StartTime,
		EndTime:        body.EndTime,
		Topic:          body.Topic,
		Description:    body.Description,
		VersesReviewed: body.VersesReviewed,
		Notes:          body.Notes,
		Homework:       body.Homework,
	}

	if err := DB.Create(&session).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create session: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, session)
}

type HoldSessionRequest struct {
	IsHeld *bool  `json:"is_held" binding:"required"`
	Notes  string `json:"notes"`
}

// HoldSession flips the is_held flag after a session took place. Only held
// sessions count towards attendance rates.
func HoldSession(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var session CircleSession
	if err := DB.First(&session, sessionID).Error; err != nil {
		jsonError(c, http.StatusNotFound, "session not found")
		return
	}

	if !canManageCircle(DB, user, session.CircleID) {
		jsonError(c, http.StatusForbidden, "circle teacher or admin only")
		return
	}

	var body HoldSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	updates := map[string]interface{}{"is_held": *body.IsHeld}
	if body.Notes != "" {
		updates["notes"] = body.Notes
	}

	if err := DB.Model(&session).Updates(updates).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, session)
}

// -----------------------------
// Circles: admin CRUD
// -----------------------------

type CircleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	TeacherName string `json:"teacher_name" binding:"required"`
	TeacherBio  string `json:"teacher_bio"`
	CircleType  string `json:"circle_type"`
	Level       string `json:"level"`
	DaysOfWeek  string `json:"days_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Location    string `json:"location"`
	IsOnline    bool   `json:"is_online"`
	OnlineLink  string `json:"online_link"`
	Capacity    *int   `json:"capacity"`
}

func CreateCircle(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body CircleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	circle := QuranCircle{
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		TeacherName: body.TeacherName,
		TeacherBio:  body.TeacherBio,
		CircleType:  body.CircleType,
		Level:       body.Level,
		DaysOfWeek:  body.DaysOfWeek,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		Location:    body.Location,
		IsOnline:    body.IsOnline,
		OnlineLink:  body.OnlineLink,
		Capacity:    body.Capacity,
		IsActive:    true,
		CreatedBy:   user.ID,
	}
	if circle.CircleType == "" {
		circle.CircleType = "general"
	}
	if circle.Level == "" {
		circle.Level = "beginner"
	}

	if err := DB.Create(&circle).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create circle: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, circle)
}

func DeleteCircle(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var circle QuranCircle
	if err := DB.First(&circle, id).Error; err != nil {
		jsonError(c, http.StatusNotFound, "circle not found")
		return
	}

	// Cascade: sessions own their attendance and file rows.
	if err := DB.Transaction(func(tx *gorm.DB) error {
		var sessionIDs []uint
		if err := tx.Model(&CircleSession{}).Where("circle_id = ?", id).
			Pluck("id", &sessionIDs).Error; err != nil {
			return err
		}
		if len(sessionIDs) > 0 {
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&SessionAttendance{}).Error; err != nil {
				return err
			}
			if err := tx.Where("session_id IN ?", sessionIDs).Delete(&SessionFile{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("circle_id = ?", id).Delete(&CircleSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("circle_id = ?", id).Delete(&CircleMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("circle_id = ?", id).Delete(&CircleFile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&QuranCircle{}, id).Error
	}); err != nil {
		jsonError(c, http.StatusInternalServerError, "delete failed: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "circle deleted"})
}
