package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codingjojo/community/models"
	"github.com/codingjojo/community/utils"
)

// EngagementController handles likes, comments, replies and the
// saved/followed/muted relations plus reports.
type EngagementController struct {
	db *gorm.DB
}

// NewEngagementController creates a new EngagementController instance.
func NewEngagementController(db *gorm.DB) *EngagementController {
	return &EngagementController{db: db}
}

func (e *EngagementController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	var post models.Post
	if err := e.db.First(&post, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "post not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		}
		return nil, false
	}
	return &post, true
}

// ToggleLike flips the caller's like on a post and returns the
// authoritative state.
func (e *EngagementController) ToggleLike(ctx *gin.Context) {
	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	var liked bool
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var like models.PostLike
		err := tx.Where("post_id = ? AND user_id = ?", post.ID, userID).First(&like).Error
		switch {
		case err == nil:
			liked = false
			return tx.Delete(&like).Error
		case err == gorm.ErrRecordNotFound:
			liked = true
			return tx.Create(&models.PostLike{PostID: post.ID, UserID: userID}).Error
		default:
			return err
		}
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to toggle like")
		return
	}

	var count int64
	if err := e.db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to count likes")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"liked": liked, "likeCount": count})
}

// CreateComment adds a top-level comment to a post.
func (e *EngagementController) CreateComment(ctx *gin.Context) {
	e.createComment(ctx, nil)
}

// CreateReply adds a reply under an existing top-level comment. Depth
// is capped at one level: replying to a reply is rejected.
func (e *EngagementController) CreateReply(ctx *gin.Context) {
	cid, err := strconv.ParseUint(strings.TrimSpace(ctx.Param("commentId")), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid comment id")
		return
	}
	parentID := uint(cid)
	e.createComment(ctx, &parentID)
}

func (e *EngagementController) createComment(ctx *gin.Context, parentID *uint) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}
	content := utils.Sanitize(strings.TrimSpace(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, "content cannot be empty")
		return
	}

	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	if parentID != nil {
		var parent models.Comment
		if err := e.db.First(&parent, *parentID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				utils.Error(ctx, http.StatusNotFound, "comment not found")
			} else {
				utils.Error(ctx, http.StatusInternalServerError, "failed to load comment")
			}
			return
		}
		if parent.PostID != post.ID {
			utils.Error(ctx, http.StatusBadRequest, "comment does not belong to this post")
			return
		}
		if parent.ParentID != nil {
			utils.Error(ctx, http.StatusBadRequest, "replies to replies are not supported")
			return
		}
	}

	comment := models.Comment{
		PostID:   post.ID,
		UserID:   userID,
		ParentID: parentID,
		Content:  content,
	}
	if err := e.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to create comment")
		return
	}
	if err := e.db.Preload("User").First(&comment, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load comment")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"comment": comment})
}

// ToggleCommentLike flips the caller's like on a comment.
func (e *EngagementController) ToggleCommentLike(ctx *gin.Context) {
	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	var comment models.Comment
	if err := e.db.First(&comment, strings.TrimSpace(ctx.Param("commentId"))).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "comment not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, "failed to load comment")
		}
		return
	}
	if comment.PostID != post.ID {
		utils.Error(ctx, http.StatusBadRequest, "comment does not belong to this post")
		return
	}

	var liked bool
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var like models.CommentLike
		err := tx.Where("comment_id = ? AND user_id = ?", comment.ID, userID).First(&like).Error
		switch {
		case err == nil:
			liked = false
			return tx.Delete(&like).Error
		case err == gorm.ErrRecordNotFound:
			liked = true
			return tx.Create(&models.CommentLike{CommentID: comment.ID, UserID: userID}).Error
		default:
			return err
		}
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to toggle like")
		return
	}

	var count int64
	if err := e.db.Model(&models.CommentLike{}).Where("comment_id = ?", comment.ID).Count(&count).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to count likes")
		return
	}

	utils.Success(ctx, gin.H{"liked": liked, "likeCount": count})
}

// DeleteComment allows the comment owner or an admin to delete a
// comment together with its replies.
func (e *EngagementController) DeleteComment(ctx *gin.Context) {
	cid := strings.TrimSpace(ctx.Param("commentId"))
	var comment models.Comment
	if err := e.db.First(&comment, cid).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "comment not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, "failed to load comment")
		}
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if comment.UserID != userID && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, "you can only delete your own comment")
		return
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		replyIDs := tx.Model(&models.Comment{}).Select("id").Where("parent_id = ?", comment.ID)
		if err := tx.Where("comment_id IN (?)", replyIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", comment.ID).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

// SavePost bookmarks a post for the caller. Saving twice is a no-op.
func (e *EngagementController) SavePost(ctx *gin.Context) {
	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	rec := models.SavedPost{UserID: userID, PostID: post.ID}
	if err := e.db.Where(&rec).FirstOrCreate(&rec).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to save post")
		return
	}
	utils.Success(ctx, gin.H{"saved": true})
}

// UnsavePost removes a bookmark; removing a missing one still succeeds.
func (e *EngagementController) UnsavePost(ctx *gin.Context) {
	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := e.db.Where("user_id = ? AND post_id = ?", userID, post.ID).Delete(&models.SavedPost{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to unsave post")
		return
	}
	utils.Success(ctx, gin.H{"saved": false})
}

// FollowUser makes the caller follow the target user.
func (e *EngagementController) FollowUser(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	var target models.User
	if err := e.db.First(&target, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "user not found")
		} else {
			utils.Error(ctx, http.StatusInternalServerError, "failed to load user")
		}
		return
	}
	if target.ID == userID {
		utils.Error(ctx, http.StatusBadRequest, "cannot follow yourself")
		return
	}
	rec := models.Follow{FollowerID: userID, FolloweeID: target.ID}
	if err := e.db.Where(&rec).FirstOrCreate(&rec).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to follow user")
		return
	}
	utils.Success(ctx, gin.H{"following": true})
}

// UnfollowUser removes a follow relation.
func (e *EngagementController) UnfollowUser(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := e.db.Where("follower_id = ? AND followee_id = ?", userID, ctx.Param("id")).Delete(&models.Follow{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to unfollow user")
		return
	}
	utils.Success(ctx, gin.H{"following": false})
}

// MutePost hides a post's activity for the caller.
func (e *EngagementController) MutePost(ctx *gin.Context) {
	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	rec := models.MutedPost{UserID: userID, PostID: post.ID}
	if err := e.db.Where(&rec).FirstOrCreate(&rec).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to mute post")
		return
	}
	utils.Success(ctx, gin.H{"muted": true})
}

// UnmutePost lifts a mute.
func (e *EngagementController) UnmutePost(ctx *gin.Context) {
	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := e.db.Where("user_id = ? AND post_id = ?", userID, post.ID).Delete(&models.MutedPost{}).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to unmute post")
		return
	}
	utils.Success(ctx, gin.H{"muted": false})
}

// ReportPost records a moderation flag on a post.
func (e *EngagementController) ReportPost(ctx *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}
	reason := utils.SanitizeText(strings.TrimSpace(req.Reason))
	if reason == "" {
		utils.Error(ctx, http.StatusBadRequest, "reason cannot be empty")
		return
	}

	post, ok := e.loadPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	report := models.Report{PostID: post.ID, UserID: userID, Reason: reason}
	if err := e.db.Create(&report).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to submit report")
		return
	}
	utils.Success(ctx, gin.H{"message": "report submitted"})
}

// MyRelations returns the caller's saved/followed/muted id sets so the
// client can seed its relation state after mount.
func (e *EngagementController) MyRelations(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	var saved []models.SavedPost
	var follows []models.Follow
	var muted []models.MutedPost
	if err := e.db.Where("user_id = ?", userID).Find(&saved).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load saved posts")
		return
	}
	if err := e.db.Where("follower_id = ?", userID).Find(&follows).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load follows")
		return
	}
	if err := e.db.Where("user_id = ?", userID).Find(&muted).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load muted posts")
		return
	}

	savedIDs := make([]uint, 0, len(saved))
	for _, s := range saved {
		savedIDs = append(savedIDs, s.PostID)
	}
	followedIDs := make([]uint, 0, len(follows))
	for _, f := range follows {
		followedIDs = append(followedIDs, f.FolloweeID)
	}
	mutedIDs := make([]uint, 0, len(muted))
	for _, m := range muted {
		mutedIDs = append(mutedIDs, m.PostID)
	}

	utils.Success(ctx, gin.H{
		"saved":    savedIDs,
		"followed": followedIDs,
		"muted":    mutedIDs,
	})
}
