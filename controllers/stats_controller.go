package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/utils"
)

// StatsController provides forum statistics such as counts and today's question views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate statistics for the forum.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var questionCount int64
	var commentCount int64
	var likeCount int64
	var viewsToday int64

	db := s.db.WithContext(ctx.Request.Context())

	// Fallback to 0 instead of failing the whole endpoint
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		userCount = 0
	}

	if err := db.Model(&models.Question{}).Where("hidden = ?", false).Count(&questionCount).Error; err != nil {
		questionCount = 0
	}

	if err := db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}

	if err := db.Model(&models.Upvote{}).Count(&likeCount).Error; err != nil {
		likeCount = 0
	}

	now := time.Now().In(time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.PageView{}).
		Where("date = ? AND path LIKE ?", today, "/q/%").
		Select("COALESCE(SUM(count),0)").
		Scan(&viewsToday).Error; err != nil {
		viewsToday = 0
	}

	utils.Success(ctx, gin.H{
		"userCount":          userCount,
		"questionCount":      questionCount,
		"commentCount":       commentCount,
		"likeCount":          likeCount,
		"questionViewsToday": viewsToday,
	})
}
