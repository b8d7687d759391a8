package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codingjojo/community/config"
	"github.com/codingjojo/community/models"
	"github.com/codingjojo/community/utils"
)

// PresenceController exposes the online-member roster and the status
// heartbeat the clients post on an interval.
type PresenceController struct {
	db *gorm.DB
}

// NewPresenceController creates a new PresenceController instance.
func NewPresenceController(db *gorm.DB) *PresenceController {
	return &PresenceController{db: db}
}

type onlineMember struct {
	ID         uint      `json:"id"`
	Username   string    `json:"username"`
	AvatarURL  string    `json:"avatar_url"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	Reputation int       `json:"reputation"`
	PostCount  int64     `json:"postCount"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// OnlineMembers lists users seen within the presence window, most
// reputable first.
func (p *PresenceController) OnlineMembers(ctx *gin.Context) {
	window := time.Duration(config.Get().PresenceOnlineWindow) * time.Second
	ids := utils.UniqueUint(utils.OnlineUserIDs(window))
	if len(ids) == 0 {
		utils.Success(ctx, gin.H{"members": []onlineMember{}})
		return
	}

	var users []models.User
	if err := p.db.Where("id IN ?", ids).Order("reputation DESC, username ASC").Find(&users).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load members")
		return
	}

	type postCount struct {
		UserID uint
		Count  int64
	}
	var counts []postCount
	if err := p.db.Model(&models.Post{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", ids).
		Group("user_id").
		Find(&counts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load members")
		return
	}
	byUser := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byUser[c.UserID] = c.Count
	}

	members := make([]onlineMember, 0, len(users))
	for _, u := range users {
		members = append(members, onlineMember{
			ID:         u.ID,
			Username:   u.Username,
			AvatarURL:  u.AvatarURL,
			Role:       u.Role,
			Status:     "online",
			Reputation: u.Reputation,
			PostCount:  byUser[u.ID],
			LastSeenAt: utils.LastSeen(u.ID),
		})
	}
	utils.Success(ctx, gin.H{"members": members})
}

// SetStatus records a presence heartbeat for the caller.
func (p *PresenceController) SetStatus(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	// Body is optional; an empty heartbeat still marks the user online.
	_ = ctx.ShouldBindJSON(&req)

	utils.MarkOnline(userID)
	if err := p.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_seen_at", time.Now()).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to update status")
		return
	}
	utils.Success(ctx, gin.H{"status": "online"})
}
