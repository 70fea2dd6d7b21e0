package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// -----------------------------
// Notification helpers
// -----------------------------

// createNotification is fire-and-forget: a failed insert is logged, never
// propagated, so it cannot fail a ledger operation that already committed.
func createNotification(userID uint, title, message string) {
	n := Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
	}
	if err := DB.Create(&n).Error; err != nil {
		log.Printf("notification for user %d dropped: %v", userID, err)
	}
}

// notifyAdmins fans a notification out to every admin account.
func notifyAdmins(title, message string) {
	var admins []User
	if err := DB.Where("role = ?", RoleAdmin).Find(&admins).Error; err != nil {
		log.Printf("admin notification dropped: %v", err)
		return
	}
	for _, admin := range admins {
		createNotification(admin.ID, title, message)
	}
}

// notifyActiveUsers fans out to every active account (new-event broadcast).
func notifyActiveUsers(title, message string) {
	var users []User
	if err := DB.Where("is_active = ?", true).Find(&users).Error; err != nil {
		log.Printf("broadcast notification dropped: %v", err)
		return
	}
	for _, u := range users {
		createNotification(u.ID, title, message)
	}
}

// -----------------------------
// Notification handlers
// -----------------------------

func GetNotifications(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, perPage := pagination(c, 20)

	var notifications []Notification
	if err := DB.Where("user_id = ?", userID).
		Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&notifications).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	var unread int64
	DB.Model(&Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&unread)

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

func MarkNotificationRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var n Notification
	if err := DB.First(&n, id).Error; err != nil {
		jsonError(c, http.StatusNotFound, "notification not found")
		return
	}

	if n.UserID != userID {
		jsonError(c, http.StatusForbidden, "not your notification")
		return
	}

	if err := DB.Model(&n).Update("is_read", true).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := DB.Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read"})
}
