package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// -----------------------------
// File helpers
// -----------------------------

func uploadDir() string {
	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "uploads"
	}
	return dir
}

// saveUploadedFile stores the file under a uuid name to avoid collisions and
// returns the stored relative path.
func saveUploadedFile(c *gin.Context, field, subdir string) (string, int64, string, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", 0, "", err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	stored := filepath.Join(subdir, uuid.NewString()+ext)

	dest := filepath.Join(uploadDir(), stored)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", 0, "", err
	}
	if err := c.SaveUploadedFile(file, dest); err != nil {
		return "", 0, "", err
	}

	return stored, file.Size, strings.TrimPrefix(ext, "."), nil
}

// -----------------------------
// Circle files
// -----------------------------

// UploadCircleFile attaches material to a circle; circle teacher or admin.
func UploadCircleFile(c *gin.Context) {
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

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		jsonError(c, http.StatusBadRequest, "title is required")
		return
	}

	path, size, fileType, err := saveUploadedFile(c, "file", "circles")
	if err != nil {
		jsonError(c, http.StatusBadRequest, "file upload failed: "+err.Error())
		return
	}

	f := CircleFile{
		CircleID:    circleID,
		Title:       title,
		Description: c.PostForm("description"),
		FilePath:    path,
		FileType:    fileType,
		FileSize:    size,
		UploadedBy:  user.ID,
		IsPublic:    c.PostForm("is_public") != "false",
	}

	if err := DB.Create(&f).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not save file: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, f)
}

// DownloadCircleFile streams a circle file and bumps its download counter.
// Non-public files are members-only.
func DownloadCircleFile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var f CircleFile
	if err := DB.First(&f, fileID).Error; err != nil {
		jsonError(c, http.StatusNotFound, "file not found")
		return
	}

	if !f.IsPublic && !isActiveMember(user.ID, f.CircleID) && !user.IsAdmin() {
		jsonError(c, http.StatusForbidden, "circle members only")
		return
	}

	DB.Model(&f).UpdateColumn("download_count", gorm.Expr("download_count + 1"))

	c.FileAttachment(filepath.Join(uploadDir(), f.FilePath), f.Title)
}

// -----------------------------
// Session files
// -----------------------------

func UploadSessionFile(c *gin.Context) {
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

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		jsonError(c, http.StatusBadRequest, "title is required")
		return
	}

	path, size, fileType, err := saveUploadedFile(c, "file", "sessions")
	if err != nil {
		jsonError(c, http.StatusBadRequest, "file upload failed: "+err.Error())
		return
	}

	f := SessionFile{
		SessionID:   sessionID,
		Title:       title,
		Description: c.PostForm("description"),
		FilePath:    path,
		FileType:    fileType,
		FileSize:    size,
		UploadedBy:  user.ID,
	}

	if err := DB.Create(&f).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not save file: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, f)
}

// DownloadSessionFile is members-only; session recordings are never public.
func DownloadSessionFile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var f SessionFile
	if err := DB.Preload("Session").First(&f, fileID).Error; err != nil {
		jsonError(c, http.StatusNotFound, "file not found")
		return
	}

	if f.Session == nil {
		jsonError(c, http.StatusNotFound, "session not found")
		return
	}

	if !isActiveMember(user.ID, f.Session.CircleID) && !user.IsAdmin() {
		jsonError(c, http.StatusForbidden, "circle members only")
		return
	}

	DB.Model(&f).UpdateColumn("download_count", gorm.Expr("download_count + 1"))

	c.FileAttachment(filepath.Join(uploadDir(), f.FilePath), f.Title)
}
