package main

import (
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
)

// The ledger owns every mutation that has to keep a stored counter
// (events.current_participants, quran_circles.current_members) in step with
// its join table. Each operation runs in a single transaction, and the
// capacity check + increment is one conditional UPDATE, so two concurrent
// calls can never both pass a capacity check with one slot left. The unique
// composite indexes on the join tables backstop duplicate races at the
// storage layer.

// JoinResult describes the outcome of a successful JoinCircle call.
type JoinResult int

const (
	JoinedNew JoinResult = iota
	Rejoined
	AlreadyMember
)

// RegisterForEvent creates a Registration for the user and increments the
// event counter. Fails with ErrEventInactive, ErrCapacityExceeded or
// ErrDuplicateRegistration; gorm.ErrRecordNotFound when the event is missing.
func RegisterForEvent(db *gorm.DB, userID, eventID uint) (*Registration, error) {
	var reg Registration

	err := db.Transaction(func(tx *gorm.DB) error {
		var ev Event
		if err := tx.First(&ev, eventID).Error; err != nil {
			return err
		}
		if !ev.IsActive {
			return ErrEventInactive
		}
		if ev.IsFull() {
			return ErrCapacityExceeded
		}

		var existing int64
		if err := tx.Model(&Registration{}).
			Where("user_id = ? AND event_id = ?", userID, eventID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateRegistration
		}

		// Guarded increment: only succeeds while a slot is free, so the
		// check and the bump cannot be separated by a concurrent call.
		res := tx.Model(&Event{}).
			Where("id = ? AND (capacity IS NULL OR current_participants < capacity)", eventID).
			UpdateColumn("current_participants", gorm.Expr("current_participants + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCapacityExceeded
		}

		reg = Registration{
			UserID:  userID,
			EventID: eventID,
			Status:  "registered",
		}
		return tx.Create(&reg).Error
	})
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CancelRegistration deletes the user's registration and decrements the
// counter. Cancellation is only allowed before the event starts.
func CancelRegistration(db *gorm.DB, userID, eventID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var reg Registration
		err := tx.Where("user_id = ? AND event_id = ?", userID, eventID).First(&reg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotRegistered
		}
		if err != nil {
			return err
		}

		var ev Event
		if err := tx.First(&ev, eventID).Error; err != nil {
			return err
		}
		if !time.Now().Before(ev.StartDate) {
			return ErrEventAlreadyStarted
		}

		// Guarded delete: a concurrent cancel of the same registration
		// deletes 0 rows here and must not touch the counter.
		res := tx.Where("id = ?", reg.ID).Delete(&Registration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotRegistered
		}
		return tx.Model(&Event{}).Where("id = ?", eventID).
			UpdateColumn("current_participants", gorm.Expr("current_participants - 1")).Error
	})
}

// MarkEventAttendance flips the attended flag on a registration. Pure field
// update, no counter interaction; restricted to admin/manager callers.
func MarkEventAttendance(db *gorm.DB, actor *User, registrationID uint, attended bool) error {
	if !actor.IsManager() {
		return ErrForbidden
	}
	var reg Registration
	if err := db.First(&reg, registrationID).Error; err != nil {
		return err
	}
	return db.Model(&reg).Update("attended", attended).Error
}

// JoinCircle adds the user to a circle, reactivating a previously left
// membership when one exists. An already active membership is acknowledged
// with AlreadyMember rather than treated as an error.
func JoinCircle(db *gorm.DB, userID, circleID uint) (JoinResult, error) {
	result := JoinedNew

	err := db.Transaction(func(tx *gorm.DB) error {
		var circle QuranCircle
		if err := tx.First(&circle, circleID).Error; err != nil {
			return err
		}

		var member CircleMember
		err := tx.Where("circle_id = ? AND user_id = ?", circleID, userID).First(&member).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		found := err == nil

		if found && member.IsActive {
			result = AlreadyMember
			return nil
		}

		if found {
			// Guarded reactivation: if a concurrent rejoin already
			// flipped the row active, this updates 0 rows and the
			// counter stays untouched.
			res := tx.Model(&CircleMember{}).
				Where("id = ? AND is_active = ?", member.ID, false).
				Update("is_active", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				result = AlreadyMember
				return nil
			}
			result = Rejoined
		}

		res := tx.Model(&QuranCircle{}).
			Where("id = ? AND (capacity IS NULL OR current_members < capacity)", circleID).
			UpdateColumn("current_members", gorm.Expr("current_members + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCircleFull
		}

		if found {
			return nil
		}

		member = CircleMember{
			CircleID: circleID,
			UserID:   userID,
			IsActive: true,
			Role:     MemberRoleMember,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// LeaveCircle deactivates the membership and decrements the counter. The row
// is kept so the member's attendance history survives a later rejoin.
func LeaveCircle(db *gorm.DB, userID, circleID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var member CircleMember
		err := tx.Where("circle_id = ? AND user_id = ? AND is_active = ?", circleID, userID, true).
			First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		if err != nil {
			return err
		}

		// Guarded deactivation: a concurrent leave flips 0 rows here
		// and must not decrement the counter a second time.
		res := tx.Model(&CircleMember{}).
			Where("id = ? AND is_active = ?", member.ID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotAMember
		}
		return tx.Model(&QuranCircle{}).Where("id = ?", circleID).
			UpdateColumn("current_members", gorm.Expr("current_members - 1")).Error
	})
}

// canManageCircle is the single capability check for attendance marking and
// session management: admins, or an active teacher member of the circle.
func canManageCircle(db *gorm.DB, user *User, circleID uint) bool {
	if user.IsAdmin() {
		return true
	}
	var n int64
	db.Model(&CircleMember{}).
		Where("circle_id = ? AND user_id = ? AND role = ? AND is_active = ?",
			circleID, user.ID, MemberRoleTeacher, true).
		Count(&n)
	return n > 0
}

// MarkSessionAttendance upserts the (session, member) attendance record.
// Only an active teacher of the circle or an admin may mark.
func MarkSessionAttendance(db *gorm.DB, marker *User, sessionID, memberID uint, attended bool, lateMinutes int, excuse string) (*SessionAttendance, error) {
	var att SessionAttendance

	err := db.Transaction(func(tx *gorm.DB) error {
		var session CircleSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			return err
		}

		if !canManageCircle(tx, marker, session.CircleID) {
			return ErrForbidden
		}

		// The member row must belong to the session's circle.
		var member CircleMember
		if err := tx.Where("id = ? AND circle_id = ?", memberID, session.CircleID).
			First(&member).Error; err != nil {
			return err
		}

		err := tx.Where("session_id = ? AND member_id = ?", sessionID, memberID).First(&att).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now()
		if err == nil {
			return tx.Model(&att).Updates(map[string]interface{}{
				"attended":     attended,
				"late_minutes": lateMinutes,
				"excuse":       excuse,
				"marked_by":    marker.ID,
				"marked_at":    now,
			}).Error
		}

		att = SessionAttendance{
			SessionID:   sessionID,
			MemberID:    memberID,
			Attended:    attended,
			LateMinutes: lateMinutes,
			Excuse:      excuse,
			MarkedBy:    marker.ID,
			MarkedAt:    now,
		}
		return tx.Create(&att).Error
	})
	if err != nil {
		return nil, err
	}
	return &att, nil
}

// AttendanceRate returns the member's presence percentage over the circle's
// held sessions, rounded to the nearest integer. 0 when nothing was held yet.
func AttendanceRate(db *gorm.DB, member *CircleMember) (int, error) {
	var held int64
	if err := db.Model(&CircleSession{}).
		Where("circle_id = ? AND is_held = ?", member.CircleID, true).
		Count(&held).Error; err != nil {
		return 0, err
	}
	if held == 0 {
		return 0, nil
	}

	var attended int64
	if err := db.Model(&SessionAttendance{}).
		Where("member_id = ? AND attended = ?", member.ID, true).
		Count(&attended).Error; err != nil {
		return 0, err
	}
	return int(math.Round(float64(attended) / float64(held) * 100)), nil
}
