package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func GenerateToken(userID uint) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// checkUniqueAccount verifies the username and email are free.
func checkUniqueAccount(username, email string) (string, bool) {
	var count int64
	DB.Model(&User{}).Where("username = ?", username).Count(&count)
	if count > 0 {
		return "username already taken", false
	}
	DB.Model(&User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return "email already registered", false
	}
	return "", true
}

// ========================
// SIGNUP: STUDENT
// ========================

type StudentSignupRequest struct {
	Username        string `json:"username" binding:"required,min=3"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Phone           string `json:"phone"`
	Gender          string `json:"gender"`
	StudentID       string `json:"student_id"`
	EntranceYear    string `json:"entrance_year"`
	Degree          string `json:"degree"`
	FieldOfStudy    string `json:"field_of_study"`
	Province        string `json:"province"`
	City            string `json:"city"`
	University      string `json:"university"`
	Faculty         string `json:"faculty"`
}

// Signup registers a student. Student accounts are active immediately; no
// admin verification step.
func Signup(c *gin.Context) {
	var body StudentSignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if body.Password != body.ConfirmPassword {
		jsonError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	if msg, ok := checkUniqueAccount(body.Username, body.Email); !ok {
		jsonError(c, http.StatusConflict, msg)
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not hash password")
		return
	}

	user := User{
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: hash,
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Phone:        body.Phone,
		Gender:       body.Gender,
		UserType:     UserTypeStudent,
		StudentID:    body.StudentID,
		EntranceYear: body.EntranceYear,
		Degree:       body.Degree,
		FieldOfStudy: body.FieldOfStudy,
		Province:     body.Province,
		City:         body.City,
		University:   body.University,
		Faculty:      body.Faculty,
		Role:         RoleParticipant,
		IsActive:     true,
		IsVerified:   true,
	}

	if err := DB.Create(&user).Error; err != nil {
		jsonError(c, http.StatusConflict, "user already exists")
		return
	}

	createNotification(user.ID, "Welcome to Seraj!",
		"Dear "+user.FullName()+", your registration was successful. Browse the Quranic events to get started.")

	c.JSON(http.StatusCreated, gin.H{
		"message": "Signup successful",
		"user":    user,
	})
}

// ========================
// SIGNUP: PROFESSOR / STAFF
// ========================

type ProfessorSignupRequest struct {
	Username        string `json:"username" binding:"required,min=3"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Phone           string `json:"phone"`
	Landline        string `json:"landline"`
	OfficePhone     string `json:"office_phone"`
	Gender          string `json:"gender"`

	AcademicRank       string `json:"academic_rank"`
	Specialization     string `json:"specialization"`
	TeachingExperience int    `json:"teaching_experience"`
	ProfessorCode      string `json:"professor_code"`
	OfficeHours        string `json:"office_hours"`
	Website            string `json:"website"`

	Province   string `json:"province"`
	City       string `json:"city"`
	University string `json:"university"`
	Faculty    string `json:"faculty"`
	Address    string `json:"address"`
}

// SignupProfessor creates a pending professor account. The account stays
// inactive and unverified until an admin approves it.
func SignupProfessor(c *gin.Context) {
	var body ProfessorSignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if body.Password != body.ConfirmPassword {
		jsonError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	if msg, ok := checkUniqueAccount(body.Username, body.Email); !ok {
		jsonError(c, http.StatusConflict, msg)
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not hash password")
		return
	}

	user := User{
		Username:           body.Username,
		Email:              body.Email,
		PasswordHash:       hash,
		FirstName:          body.FirstName,
		LastName:           body.LastName,
		Phone:              body.Phone,
		Landline:           body.Landline,
		OfficePhone:        body.OfficePhone,
		Gender:             body.Gender,
		UserType:           UserTypeProfessor,
		AcademicRank:       body.AcademicRank,
		Specialization:     body.Specialization,
		TeachingExperience: body.TeachingExperience,
		ProfessorCode:      body.ProfessorCode,
		OfficeHours:        body.OfficeHours,
		Website:            body.Website,
		Province:           body.Province,
		City:               body.City,
		University:         body.University,
		Faculty:            body.Faculty,
		Address:            body.Address,
		Role:               RoleManager,
		IsActive:           false,
		IsVerified:         false,
	}

	if err := DB.Create(&user).Error; err != nil {
		jsonError(c, http.StatusConflict, "user already exists")
		return
	}

	notifyAdmins("New professor application",
		"Professor "+user.FullName()+" has applied to join. Review and verify the account.")

	c.JSON(http.StatusCreated, gin.H{
		"message": "application submitted, an admin will review your account",
	})
}

type StaffSignupRequest struct {
	Username        string `json:"username" binding:"required,min=3"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Phone           string `json:"phone"`
	Landline        string `json:"landline"`
	OfficePhone     string `json:"office_phone"`
	Gender          string `json:"gender"`

	EmployeeID     string `json:"employee_id"`
	Department     string `json:"department"`
	Position       string `json:"position"`
	Responsibility string `json:"responsibility"`

	Province   string `json:"province"`
	City       string `json:"city"`
	University string `json:"university"`
	Faculty    string `json:"faculty"`
	Address    string `json:"address"`
}

// SignupStaff mirrors SignupProfessor for cultural-affairs staff.
func SignupStaff(c *gin.Context) {
	var body StaffSignupRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if body.Password != body.ConfirmPassword {
		jsonError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	if msg, ok := checkUniqueAccount(body.Username, body.Email); !ok {
		jsonError(c, http.StatusConflict, msg)
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not hash password")
		return
	}

	user := User{
		Username:       body.Username,
		Email:          body.Email,
		PasswordHash:   hash,
		FirstName:      body.FirstName,
		LastName:       body.LastName,
		Phone:          body.Phone,
		Landline:       body.Landline,
		OfficePhone:    body.OfficePhone,
		Gender:         body.Gender,
		UserType:       UserTypeStaff,
		EmployeeID:     body.EmployeeID,
		Department:     body.Department,
		Position:       body.Position,
		Responsibility: body.Responsibility,
		Province:       body.Province,
		City:           body.City,
		University:     body.University,
		Faculty:        body.Faculty,
		Address:        body.Address,
		Role:           RoleManager,
		IsActive:       false,
		IsVerified:     false,
	}

	if err := DB.Create(&user).Error; err != nil {
		jsonError(c, http.StatusConflict, "user already exists")
		return
	}

	notifyAdmins("New staff application",
		"Staff member "+user.FullName()+" has applied to join. Review and verify the account.")

	c.JSON(http.StatusCreated, gin.H{
		"message": "application submitted, an admin will review your account",
	})
}

// ========================
// LOGIN
// ========================

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func Login(c *gin.Context) {
	var req LoginRequest
	var user User

	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		jsonError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !checkPassword(user.PasswordHash, req.Password) {
		jsonError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.IsActive {
		jsonError(c, http.StatusForbidden, "account is deactivated or awaiting verification")
		return
	}

	now := time.Now()
	DB.Model(&user).Update("last_login", now)

	token, err := GenerateToken(user.ID)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// ========================
// PASSWORD RESET
// ========================

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPassword issues a one-time reset token valid for 24 hours. Delivery
// is an in-app notification; there is no email integration.
func ForgotPassword(c *gin.Context) {
	var body ForgotPasswordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}

	var user User
	if err := DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
		jsonError(c, http.StatusNotFound, "email not found")
		return
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create token")
		return
	}
	token := hex.EncodeToString(raw)

	reset := PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := DB.Create(&reset).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create token")
		return
	}

	createNotification(user.ID, "Password reset",
		"A password reset link was created for your account. It is valid for 24 hours.")

	c.JSON(http.StatusOK, gin.H{"message": "reset token created", "token": token})
}

type ResetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

func ResetPassword(c *gin.Context) {
	tokenParam := c.Param("token")

	var body ResetPasswordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, err.Error())
		return
	}
	if body.Password != body.ConfirmPassword {
		jsonError(c, http.StatusBadRequest, "passwords do not match")
		return
	}

	var reset PasswordResetToken
	err := DB.Where("token = ? AND used = ?", tokenParam, false).First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && reset.ExpiresAt.Before(time.Now())) {
		jsonError(c, http.StatusBadRequest, "reset token is invalid or expired")
		return
	}
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not hash password")
		return
	}

	if err := DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&User{}).Where("id = ?", reset.UserID).
			Update("password_hash", hash).Error; err != nil {
			return err
		}
		return tx.Model(&reset).Update("used", true).Error
	}); err != nil {
		jsonError(c, http.StatusInternalServerError, "could not reset password")
		return
	}

	createNotification(reset.UserID, "Password changed", "Your password was changed successfully.")

	c.JSON(http.StatusOK, gin.H{"message": "password reset, please log in"})
}
