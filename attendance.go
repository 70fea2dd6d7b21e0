package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// -----------------------------
// Session attendance
// -----------------------------

type MarkAttendanceRequest struct {
	MemberID    uint   `json:"member_id" binding:"required"`
	Attended    bool   `json:"attended"`
	LateMinutes int    `json:"late_minutes"`
	Excuse      string `json:"excuse"`
}

// MarkSessionAttendanceHandler upserts one member's attendance for a session.
// The ledger enforces the teacher-or-admin capability check.
func MarkSessionAttendanceHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var body MarkAttendanceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	att, err := MarkSessionAttendance(DB, user, sessionID, body.MemberID,
		body.Attended, body.LateMinutes, body.Excuse)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "session or member not found")
			return
		}
		jsonError(c, ledgerErrorStatus(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, att)
}

// CircleRoster lists a circle's members with their attendance rates; circle
// teacher or admin only.
func CircleRoster(c *gin.Context) {
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

	var members []CircleMember
	if err := DB.Preload("User").
		Where("circle_id = ? AND is_active = ?", circleID, true).
		Order("joined_date asc").
		Find(&members).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	roster := make([]gin.H, 0, len(members))
	for i := range members {
		rate, err := AttendanceRate(DB, &members[i])
		if err != nil {
			jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
			return
		}
		roster = append(roster, gin.H{
			"member":          members[i],
			"attendance_rate": rate,
		})
	}

	c.JSON(http.StatusOK, roster)
}

// -----------------------------
// Event attendance
// -----------------------------

type EventAttendanceRequest struct {
	Attended *bool `json:"attended" binding:"required"`
}

// MarkEventAttendanceHandler flips the attended flag on a registration after
// the event; admin/manager only (enforced by the ledger).
func MarkEventAttendanceHandler(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	regID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var body EventAttendanceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if err := MarkEventAttendance(DB, user, regID, *body.Attended); err != nil {
		if err == gorm.ErrRecordNotFound {
			jsonError(c, http.StatusNotFound, "registration not found")
			return
		}
		jsonError(c, ledgerErrorStatus(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "attendance updated"})
}
