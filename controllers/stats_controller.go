package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codingjojo/community/config"
	"github.com/codingjojo/community/models"
	"github.com/codingjojo/community/utils"
)

// StatsController serves the aggregate counters shown in the feed
// sidebar.
type StatsController struct {
	db *gorm.DB
}

func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns member, post, comment and online counts. A failed
// counter reads as zero rather than failing the endpoint.
func (s *StatsController) GetStats(ctx *gin.Context) {
	members := s.count(s.db.Model(&models.User{}))
	posts := s.count(s.db.Model(&models.Post{}).Where("status = ?", models.PostStatusPublished))
	comments := s.count(s.db.Model(&models.Comment{}))

	window := time.Duration(config.Get().PresenceOnlineWindow) * time.Second
	online := int64(len(utils.OnlineUserIDs(window)))

	utils.Success(ctx, gin.H{
		"member_count":  members,
		"post_count":    posts,
		"comment_count": comments,
		"online_count":  online,
	})
}

func (s *StatsController) count(q *gorm.DB) int64 {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0
	}
	return n
}
