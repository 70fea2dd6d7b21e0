package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// The Quranic Q&A feature runs in stub mode: questions are persisted and
// answered with a canned referral to the classical commentaries, mirroring
// the behavior when no external model is configured.

var quranicKeywords = []string{
	"quran", "surah", "ayah", "verse", "tafsir", "tajweed",
	"recitation", "memorization", "juz", "hifz",
}

func looksQuranic(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range quranicKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func cannedAnswer(question string) string {
	return "The Quranic Q&A assistant is under development. " +
		"For a reliable answer to \"" + question + "\", please consult the classical " +
		"commentaries (Tafsir al-Mizan, Tafsir Nemooneh, Tafsir Noor) or ask your circle teacher."
}

// dailyVerse picks a deterministic verse for the current day.
func dailyVerse() *QuranVerse {
	var count int64
	DB.Model(&QuranVerse{}).Where("is_active = ?", true).Count(&count)
	if count == 0 {
		return nil
	}

	offset := time.Now().YearDay() % int(count)

	var verse QuranVerse
	if err := DB.Where("is_active = ?", true).
		Order("id asc").Offset(offset).First(&verse).Error; err != nil {
		return nil
	}
	return &verse
}

// -----------------------------
// AI handlers
// -----------------------------

type AskQuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

func AskQuran(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body AskQuestionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	question := strings.TrimSpace(body.Question)
	if question == "" {
		jsonError(c, http.StatusBadRequest, "question must not be empty")
		return
	}

	q := AIQuestion{
		UserID:    user.ID,
		Question:  question,
		Answer:    cannedAnswer(question),
		IsQuranic: looksQuranic(question),
	}
	if err := DB.Create(&q).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "could not save question: "+err.Error())
		return
	}

	var suggested []QuranVerse
	DB.Where("is_active = ?", true).Limit(3).Find(&suggested)

	c.JSON(http.StatusOK, gin.H{
		"question":         q,
		"suggested_verses": suggested,
	})
}

func AIHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	page, perPage := pagination(c, 10)

	var questions []AIQuestion
	if err := DB.Where("user_id = ?", userID).
		Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&questions).Error; err != nil {
		jsonError(c, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, questions)
}

func AIStatistics(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var totalVerses, totalQuestions, userQuestions int64
	DB.Model(&QuranVerse{}).Count(&totalVerses)
	DB.Model(&AIQuestion{}).Count(&totalQuestions)
	DB.Model(&AIQuestion{}).Where("user_id = ?", userID).Count(&userQuestions)

	c.JSON(http.StatusOK, gin.H{
		"total_verses":    totalVerses,
		"total_questions": totalQuestions,
		"user_questions":  userQuestions,
	})
}

func DailyVerse(c *gin.Context) {
	verse := dailyVerse()
	if verse == nil {
		jsonError(c, http.StatusNotFound, "no verses available")
		return
	}
	c.JSON(http.StatusOK, verse)
}
