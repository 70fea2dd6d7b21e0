package main

import (
	"time"
)

// User roles
const (
	RoleAdmin       = "admin"
	RoleManager     = "manager"
	RoleParticipant = "participant"
)

// User types (free-form discriminator, not an enum in the DB)
const (
	UserTypeStudent   = "student"
	UserTypeProfessor = "professor"
	UserTypeStaff     = "staff"
)

// Event types
const (
	EventWorkshop    = "workshop"
	EventCompetition = "competition"
	EventHalaqah     = "halaqah"
	EventLecture     = "lecture"
	EventOther       = "other"
)

// Circle member roles
const (
	MemberRoleMember    = "member"
	MemberRoleAssistant = "assistant"
	MemberRoleTeacher   = "teacher"
)

// User represents a registered account: student, professor or staff.
// Type-specific profile fields are nullable and only filled for the
// matching user_type.
type User struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Username     string `json:"username" gorm:"size:80;uniqueIndex;not null"`
	Email        string `json:"email" gorm:"size:120;uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"size:200;not null"`

	FirstName string `json:"first_name" gorm:"size:50;not null"`
	LastName  string `json:"last_name" gorm:"size:50;not null"`
	Phone     string `json:"phone" gorm:"size:20"`
	Landline  string `json:"landline,omitempty" gorm:"size:20"`
	Gender    string `json:"gender" gorm:"size:10"`

	UserType string `json:"user_type" gorm:"size:20;not null;default:student"`

	// Admin approval gate for professor/staff self-registrations.
	IsVerified        bool       `json:"is_verified" gorm:"default:false"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerifiedBy        *uint      `json:"verified_by,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty" gorm:"type:text"`

	// Student fields
	StudentID    string `json:"student_id,omitempty" gorm:"size:50"`
	EntranceYear string `json:"entrance_year,omitempty" gorm:"size:4"`
	Degree       string `json:"degree,omitempty" gorm:"size:50"`
	FieldOfStudy string `json:"field_of_study,omitempty" gorm:"size:150"`

	// Professor fields
	AcademicRank       string `json:"academic_rank,omitempty" gorm:"size:50"`
	Specialization     string `json:"specialization,omitempty" gorm:"size:200"`
	ResumeFile         string `json:"resume_file,omitempty" gorm:"size:500"`
	TeachingExperience int    `json:"teaching_experience,omitempty"`
	ProfessorCode      string `json:"professor_code,omitempty" gorm:"size:50"`
	OfficeHours        string `json:"office_hours,omitempty" gorm:"size:200"`
	Website            string `json:"website,omitempty" gorm:"size:200"`

	// Staff fields
	EmployeeID     string `json:"employee_id,omitempty" gorm:"size:50"`
	Department     string `json:"department,omitempty" gorm:"size:100"`
	Position       string `json:"position,omitempty" gorm:"size:100"`
	OfficePhone    string `json:"office_phone,omitempty" gorm:"size:20"`
	Responsibility string `json:"responsibility,omitempty" gorm:"type:text"`

	// Location
	Province   string `json:"province" gorm:"size:100"`
	City       string `json:"city" gorm:"size:100"`
	University string `json:"university" gorm:"size:150"`
	Faculty    string `json:"faculty" gorm:"size:150"`
	Address    string `json:"address,omitempty" gorm:"type:text"`

	Role      string     `json:"role" gorm:"size:20;default:participant"`
	IsActive  bool       `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsManager reports whether the user holds admin or manager privileges.
func (u *User) IsManager() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

// Event is a scheduled activity. CurrentParticipants mirrors the count of
// Registration rows and is only ever mutated together with them inside one
// transaction (see ledger.go).
type Event struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	Title               string    `json:"title" gorm:"size:200;not null"`
	Description         string    `json:"description" gorm:"type:text;not null"`
	EventType           string    `json:"event_type" gorm:"size:20;not null"`
	StartDate           time.Time `json:"start_date" gorm:"not null"`
	EndDate             time.Time `json:"end_date" gorm:"not null"`
	Location            string    `json:"location" gorm:"size:200"`
	Capacity            *int      `json:"capacity,omitempty"` // nil = unlimited
	CurrentParticipants int       `json:"current_participants" gorm:"default:0"`
	Image               string    `json:"image,omitempty" gorm:"size:200"`
	IsActive            bool      `json:"is_active" gorm:"default:true"`
	CreatedBy           uint      `json:"created_by"`
	CreatedAt           time.Time `json:"created_at"`

	Creator       *User          `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Registrations []Registration `json:"-" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (e *Event) IsFull() bool {
	return e.Capacity != nil && e.CurrentParticipants >= *e.Capacity
}

func (e *Event) RemainingCapacity() *int {
	if e.Capacity == nil {
		return nil
	}
	left := *e.Capacity - e.CurrentParticipants
	return &left
}

// Registration joins a User to an Event. (user_id, event_id) is unique so a
// user can hold at most one registration per event.
type Registration struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"not null;uniqueIndex:uniq_registration"`
	EventID          uint      `json:"event_id" gorm:"not null;uniqueIndex:uniq_registration"`
	RegistrationDate time.Time `json:"registration_date" gorm:"autoCreateTime"`
	Status           string    `json:"status" gorm:"size:20;default:registered"`
	Attended         bool      `json:"attended" gorm:"default:false"`

	User  *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Event *Event `json:"event,omitempty" gorm:"foreignKey:EventID"`
}

// Notification is an in-app message for a single user.
type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"size:200"`
	Message   string    `json:"message" gorm:"type:text"`
	IsRead    bool      `json:"is_read" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// Announcement records an admin broadcast; the delivery itself fans out as
// one Notification per active user.
type Announcement struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	Creator *User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
}

// QuranCircle is a recurring recitation study group. CurrentMembers mirrors
// the count of active CircleMember rows, same coupling rule as Event.
type QuranCircle struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name" gorm:"size:200;not null"`
	Description    string    `json:"description" gorm:"type:text"`
	TeacherName    string    `json:"teacher_name" gorm:"size:200;not null"`
	TeacherBio     string    `json:"teacher_bio,omitempty" gorm:"type:text"`
	TeacherImage   string    `json:"teacher_image,omitempty" gorm:"size:200"`
	CircleType     string    `json:"circle_type" gorm:"size:50;default:general"` // general, memorization, tajweed, tafsir
	Level          string    `json:"level" gorm:"size:50;default:beginner"`      // beginner, intermediate, advanced
	DaysOfWeek     string    `json:"days_of_week,omitempty" gorm:"size:200"`
	StartTime      string    `json:"start_time,omitempty" gorm:"size:10"`
	EndTime        string    `json:"end_time,omitempty" gorm:"size:10"`
	Location       string    `json:"location,omitempty" gorm:"size:200"`
	IsOnline       bool      `json:"is_online" gorm:"default:false"`
	OnlineLink     string    `json:"online_link,omitempty" gorm:"size:500"`
	Capacity       *int      `json:"capacity,omitempty"` // nil = unlimited
	CurrentMembers int       `json:"current_members" gorm:"default:0"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	CreatedBy      uint      `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`

	Sessions []CircleSession `json:"-" gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE"`
	Members  []CircleMember  `json:"-" gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE"`
	Files    []CircleFile    `json:"-" gorm:"foreignKey:CircleID;constraint:OnDelete:CASCADE"`
}

func (q *QuranCircle) IsFull() bool {
	return q.Capacity != nil && q.CurrentMembers >= *q.Capacity
}

func (q *QuranCircle) RemainingCapacity() *int {
	if q.Capacity == nil {
		return nil
	}
	left := *q.Capacity - q.CurrentMembers
	return &left
}

// CircleMember joins a User to a QuranCircle. Leaving flips IsActive instead
// of deleting the row so that rejoining keeps the attendance history.
type CircleMember struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CircleID   uint      `json:"circle_id" gorm:"not null;uniqueIndex:uniq_circle_member"`
	UserID     uint      `json:"user_id" gorm:"not null;uniqueIndex:uniq_circle_member"`
	JoinedDate time.Time `json:"joined_date" gorm:"autoCreateTime"`
	IsActive   bool      `json:"is_active" gorm:"default:true"`
	Role       string    `json:"role" gorm:"size:50;default:member"`
	Notes      string    `json:"notes,omitempty" gorm:"type:text"`

	User        *User               `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Circle      *QuranCircle        `json:"circle,omitempty" gorm:"foreignKey:CircleID"`
	Attendances []SessionAttendance `json:"-" gorm:"foreignKey:MemberID"`
}

// CircleSession is one scheduled occurrence of a circle. IsHeld flips after
// it actually took place; only held sessions count towards attendance rates.
type CircleSession struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CircleID       uint      `json:"circle_id" gorm:"not null;index"`
	Title          string    `json:"title" gorm:"size:200"`
	SessionDate    time.Time `json:"session_date" gorm:"not null"`
	StartTime      string    `json:"start_time,omitempty" gorm:"size:10"`
	EndTime        string    `json:"end_time,omitempty" gorm:"size:10"`
	Topic          string    `json:"topic,omitempty" gorm:"size:500"`
	Description    string    `json:"description,omitempty" gorm:"type:text"`
	VersesReviewed string    `json:"verses_reviewed,omitempty" gorm:"type:text"`
	Notes          string    `json:"notes,omitempty" gorm:"type:text"`
	Homework       string    `json:"homework,omitempty" gorm:"type:text"`
	IsHeld         bool      `json:"is_held" gorm:"default:false"`
	CreatedAt      time.Time `json:"created_at"`

	Circle      *QuranCircle        `json:"circle,omitempty" gorm:"foreignKey:CircleID"`
	Attendances []SessionAttendance `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Files       []SessionFile       `json:"-" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// SessionAttendance is a per-session, per-member fact. (session_id, member_id)
// is unique; re-marking overwrites the existing row.
type SessionAttendance struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	SessionID   uint      `json:"session_id" gorm:"not null;uniqueIndex:uniq_attendance"`
	MemberID    uint      `json:"member_id" gorm:"not null;uniqueIndex:uniq_attendance"`
	Attended    bool      `json:"attended" gorm:"default:false"`
	Excuse      string    `json:"excuse,omitempty" gorm:"size:200"`
	LateMinutes int       `json:"late_minutes" gorm:"default:0"`
	MarkedBy    uint      `json:"marked_by"`
	MarkedAt    time.Time `json:"marked_at"`

	Member *CircleMember `json:"member,omitempty" gorm:"foreignKey:MemberID"`
	Marker *User         `json:"marker,omitempty" gorm:"foreignKey:MarkedBy"`
}

// CircleFile is shared material attached to a circle.
type CircleFile struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CircleID      uint      `json:"circle_id" gorm:"not null;index"`
	Title         string    `json:"title" gorm:"size:200;not null"`
	Description   string    `json:"description,omitempty" gorm:"type:text"`
	FilePath      string    `json:"file_path" gorm:"size:500;not null"`
	FileType      string    `json:"file_type,omitempty" gorm:"size:50"`
	FileSize      int64     `json:"file_size,omitempty"`
	UploadedBy    uint      `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
	IsPublic      bool      `json:"is_public" gorm:"default:true"`
	DownloadCount int       `json:"download_count" gorm:"default:0"`
}

// SessionFile is material attached to a single session (recording, handout).
type SessionFile struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	SessionID     uint      `json:"session_id" gorm:"not null;index"`
	Title         string    `json:"title" gorm:"size:200;not null"`
	Description   string    `json:"description,omitempty" gorm:"type:text"`
	FilePath      string    `json:"file_path" gorm:"size:500;not null"`
	FileType      string    `json:"file_type,omitempty" gorm:"size:50"`
	FileSize      int64     `json:"file_size,omitempty"`
	UploadedBy    uint      `json:"uploaded_by"`
	UploadedAt    time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
	DownloadCount int       `json:"download_count" gorm:"default:0"`

	Session *CircleSession `json:"session,omitempty" gorm:"foreignKey:SessionID"`
}

// AIQuestion stores one Q&A exchange from the Quranic question feature.
type AIQuestion struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index"`
	Question  string    `json:"question" gorm:"type:text;not null"`
	Answer    string    `json:"answer,omitempty" gorm:"type:text"`
	IsQuranic bool      `json:"is_quranic" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
}

// QuranVerse backs the daily-verse endpoint and Q&A suggestions.
type QuranVerse struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	SurahName    string `json:"surah_name" gorm:"size:100"`
	SurahNumber  int    `json:"surah_number"`
	VerseNumber  int    `json:"verse_number"`
	VerseArabic  string `json:"verse_arabic" gorm:"type:text"`
	VersePersian string `json:"verse_persian,omitempty" gorm:"type:text"`
	Translation  string `json:"translation,omitempty" gorm:"type:text"`
	Keywords     string `json:"keywords,omitempty" gorm:"size:500"`
	Topic        string `json:"topic,omitempty" gorm:"size:100"`
	IsActive     bool   `json:"is_active" gorm:"default:true"`
}

// PasswordResetToken is a single-use token for the forgot-password flow.
type PasswordResetToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Token     string    `json:"-" gorm:"size:100;uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	Used      bool      `json:"used" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`

	User *User `json:"-" gorm:"foreignKey:UserID"`
}
