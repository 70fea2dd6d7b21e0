package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// -----------------------------
// Admin: dashboard
// -----------------------------

func AdminDashboard(c *gin.Context) {
	var totalUsers, totalEvents, activeEvents, totalRegistrations int64
	DB.Model(&User{}).Count(&totalUsers)
	DB.Model(&Event{}).Count(&totalEvents)
	DB.Model(&Event{}).Where("is_active = ?", true).Count(&activeEvents)
	DB.Model(&Registration{}).Count(&totalRegistrations)

	var recentEvents []Event
	DB.Order("created_at desc").Limit(5).Find(&recentEvents)

	var newUsers []User
	DB.Order("created_at desc").Limit(5).Find(&newUsers)

	var recentRegistrations []Registration
	DB.Preload("User").Preload("Event").
		Order("registration_date desc").Limit(5).Find(&recentRegistrations)

	c.JSON(http.StatusOK, gin.H{
		"total_users":          totalUsers,
		"total_events":         totalEvents,
		"active_events":        activeEvents,
		"total_registrations":  totalRegistrations,
		"recent_events":        recentEvents,
		"new_users":            newUsers,
		"recent_registrations": recentRegistrations,
	})
}

// -----------------------------
// Admin: user management
// -----------------------------

func AdminUsers(c *gin.Context) {
	var users []User
	if err := DB.Order("created_at desc").Find(&users).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, users)
}

// ToggleUserStatus flips is_active. Admins cannot deactivate themselves.
func ToggleUserStatus(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if id == admin.ID {
		jsonError(c, http.StatusBadRequest, "you cannot deactivate your own account")
		return
	}

	var user User
	if err := DB.First(&user, id).Error; err != nil {
		jsonError(c, http.StatusNotFound, "user not found")
		return
	}

	user.IsActive = !user.IsActive
	if err := DB.Model(&user).Update("is_active", user.IsActive).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	status := "deactivated"
	if user.IsActive {
		status = "activated"
	}
	createNotification(user.ID, "Account status changed", "Your account was "+status+".")

	c.JSON(http.StatusOK, gin.H{"message": "user " + status, "is_active": user.IsActive})
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func ChangeUserRole(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var body ChangeRoleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if body.Role != RoleAdmin && body.Role != RoleManager && body.Role != RoleParticipant {
		jsonError(c, http.StatusBadRequest, "role must be one of: admin, manager, participant")
		return
	}

	var user User
	if err := DB.First(&user, id).Error; err != nil {
		jsonError(c, http.StatusNotFound, "user not found")
		return
	}

	if err := DB.Model(&user).Update("role", body.Role).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	createNotification(user.ID, "Role changed", "Your role was changed to "+body.Role+".")

	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

type VerifyUserRequest struct {
	Notes string `json:"notes"`
}

// VerifyUser approves a pending professor/staff registration: marks the
// account verified and activates it.
func VerifyUser(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var body VerifyUserRequest
	_ = c.ShouldBindJSON(&body)

	var user User
	if err := DB.First(&user, id).Error; err != nil {
		jsonError(c, http.StatusNotFound, "user not found")
		return
	}

	if user.IsVerified {
		c.JSON(http.StatusOK, gin.H{"message": "user is already verified"})
		return
	}

	now := time.Now()
	if err := DB.Model(&user).Updates(map[string]interface{}{
		"is_verified":        true,
		"verified_at":        now,
		"verified_by":        admin.ID,
		"verification_notes": body.Notes,
		"is_active":          true,
	}).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	createNotification(user.ID, "Account verified",
		"Your account was approved. You can now log in.")

	c.JSON(http.StatusOK, gin.H{"message": "user verified"})
}

// -----------------------------
// Admin: reports
// -----------------------------

func AdminReports(c *gin.Context) {
	// Top events by registration count
	type eventRow struct {
		ID           uint   `json:"id"`
		Title        string `json:"title"`
		Capacity     *int   `json:"capacity"`
		Participants int64  `json:"participants"`
	}
	var topEvents []eventRow
	if err := DB.Model(&Event{}).
		Select("events.id, events.title, events.capacity, count(registrations.id) as participants").
		Joins("LEFT JOIN registrations ON registrations.event_id = events.id").
		Group("events.id").
		Order("participants desc").
		Limit(10).
		Scan(&topEvents).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	// Registrations per day, last 30 distinct days
	type dailyRow struct {
		Date  string `json:"date"`
		Count int64  `json:"count"`
	}
	var daily []dailyRow
	if err := DB.Model(&Registration{}).
		Select("date(registration_date) as date, count(id) as count").
		Group("date(registration_date)").
		Order("date desc").
		Limit(30).
		Scan(&daily).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	// Users per university
	type universityRow struct {
		University string `json:"university"`
		Count      int64  `json:"count"`
	}
	var universities []universityRow
	if err := DB.Model(&User{}).
		Select("university, count(id) as count").
		Where("university <> ''").
		Group("university").
		Order("count desc").
		Limit(10).
		Scan(&universities).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_participation": topEvents,
		"daily_registrations": daily,
		"university_stats":    universities,
	})
}

// -----------------------------
// Admin: announcements
// -----------------------------

type AnnouncementRequest struct {
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// CreateAnnouncement stores the broadcast and fans it out to every active
// user as an in-app notification.
func CreateAnnouncement(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body AnnouncementRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	announcement := Announcement{
		Title:     body.Title,
		Message:   body.Message,
		CreatedBy: userID,
	}
	if err := DB.Create(&announcement).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	notifyActiveUsers("📢 "+body.Title, body.Message)

	c.JSON(http.StatusCreated, announcement)
}

func ListAnnouncements(c *gin.Context) {
	page, perPage := pagination(c, 20)

	var announcements []Announcement
	if err := DB.Preload("Creator").
		Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&announcements).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, announcements)
}
