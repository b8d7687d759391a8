package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codingjojo/community/config"
	"github.com/codingjojo/community/middleware"
	"github.com/codingjojo/community/models"
	"github.com/codingjojo/community/utils"
)

// PostController manages the feed listing and CRUD operations for posts.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// getUserID extracts the authenticated user id set by the auth middleware.
func getUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func isAdmin(ctx *gin.Context) bool {
	if v, ok := ctx.Get(middleware.ContextRoleKey); ok {
		if role, ok := v.(string); ok && role == "admin" {
			return true
		}
	}
	if v, ok := ctx.Get(middleware.ContextUsernameKey); ok {
		if name, ok := v.(string); ok {
			return config.IsAdmin(name)
		}
	}
	return false
}

func parsePagination(pageStr, limitStr string) (int, int) {
	cfg := config.Get()
	page, limit := 1, cfg.DefaultPageSize
	if n, err := strconv.Atoi(strings.TrimSpace(pageStr)); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(limitStr)); err == nil && n > 0 {
		limit = n
		if limit > cfg.MaxPageSize {
			limit = cfg.MaxPageSize
		}
	}
	return page, limit
}

// feedPreloads attaches everything the client normalizer consumes in
// one page: authors, likes, and the flat comment sequence with their
// own authors and likes.
func feedPreloads(q *gorm.DB) *gorm.DB {
	return q.Preload("User").
		Preload("Likes").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC")
		}).
		Preload("Comments.User").
		Preload("Comments.Likes")
}

// applySort translates a client sort order into SQL. Pinned posts stay
// on top for every order.
func applySort(q *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case "oldest":
		return q.Order("posts.pinned DESC, posts.created_at ASC")
	case "popular":
		return q.Order("posts.pinned DESC").
			Order("(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id) DESC").
			Order("posts.created_at DESC")
	case "trending":
		// Views decayed by age in days; yesterday's spike ranks below
		// today's steady traffic.
		return q.Order("posts.pinned DESC").
			Order("(posts.views / (1 + TIMESTAMPDIFF(HOUR, posts.created_at, NOW()) / 24)) DESC").
			Order("posts.created_at DESC")
	default: // recent
		return q.Order("posts.pinned DESC, posts.created_at DESC")
	}
}

// ListPosts returns one filtered, sorted, paginated page of posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, limit := parsePagination(ctx.Query("page"), ctx.Query("limit"))
	search := strings.TrimSpace(ctx.Query("search"))
	category := strings.TrimSpace(ctx.Query("category"))
	tag := strings.TrimSpace(ctx.Query("tag"))
	sort := strings.TrimSpace(ctx.Query("sort"))
	if category == "all" {
		category = ""
	}

	// Cache category/sort pages when there is no search term, to avoid
	// a cache key per keystroke
	cacheKey := fmt.Sprintf("cache:posts:list:cat=%s:tag=%s:sort=%s:page=%d:limit=%d", category, tag, sort, page, limit)
	if search == "" {
		if b, ok := utils.CacheGetBytes(cacheKey); ok {
			ctx.Data(200, "application/json", b)
			return
		}
	}

	query := p.db.Model(&models.Post{}).Where("posts.status = ?", models.PostStatusPublished)
	if search != "" {
		query = query.Where("title LIKE ? OR content LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if tag != "" {
		query = query.Where("tags LIKE ?", "%"+tag+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to count posts")
		return
	}

	var posts []models.Post
	offset := (page - 1) * limit
	listQ := feedPreloads(applySort(query, sort)).Offset(offset).Limit(limit)
	if err := listQ.Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to list posts")
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	payload := gin.H{
		"posts": posts,
		"pagination": gin.H{
			"current":    page,
			"total":      totalPages,
			"count":      len(posts),
			"totalPosts": total,
		},
	}
	if search == "" {
		wrapper := utils.JSONResponse{Success: true, Message: "success", Data: payload}
		utils.CacheSetJSON(cacheKey, wrapper, 5*time.Minute)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its full comment tree and records
// one view.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")

	var post models.Post
	if err := feedPreloads(p.db).First(&post, postID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	utils.RecordPostView(post.ID)

	utils.Success(ctx, gin.H{"post": post})
}

type postRequest struct {
	Title    string   `json:"title" binding:"required,min=1"`
	Content  string   `json:"content" binding:"required"`
	Excerpt  string   `json:"excerpt"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Status   string   `json:"status"`
}

func (r *postRequest) normalize() (title, content, excerpt, category, tags, status string, err string) {
	title = utils.SanitizeText(strings.TrimSpace(r.Title))
	if title == "" {
		return "", "", "", "", "", "", "title cannot be empty"
	}
	content = utils.Sanitize(r.Content)

	category = r.Category
	if category == "" {
		category = "general"
	}
	if !config.ValidCategory(category) {
		return "", "", "", "", "", "", "invalid category"
	}

	status = r.Status
	if status == "" {
		status = models.PostStatusPublished
	}
	switch status {
	case models.PostStatusDraft, models.PostStatusPublished, models.PostStatusArchived:
	default:
		return "", "", "", "", "", "", "invalid status"
	}

	excerpt = utils.SanitizeText(strings.TrimSpace(r.Excerpt))
	if excerpt == "" {
		excerpt = makeExcerpt(content)
	}

	cleaned := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		if t = strings.TrimSpace(utils.SanitizeText(t)); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	tags = strings.Join(cleaned, ",")
	return title, content, excerpt, category, tags, status, ""
}

// CreatePost allows authenticated users to create new posts.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	title, content, excerpt, category, tags, status, msg := req.normalize()
	if msg != "" {
		utils.Error(ctx, http.StatusBadRequest, msg)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}

	post := models.Post{
		UserID:   userID,
		Title:    title,
		Content:  content,
		Excerpt:  excerpt,
		Category: category,
		Tags:     tags,
		Status:   status,
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to create post")
		return
	}
	if err := p.db.Preload("User").First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"post": post})
}

// UpdatePost allows the author or an admin to update a post's editable
// fields.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req struct {
		Title    *string   `json:"title"`
		Content  *string   `json:"content"`
		Excerpt  *string   `json:"excerpt"`
		Category *string   `json:"category"`
		Tags     *[]string `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "invalid request payload")
		return
	}

	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if post.UserID != userID && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, "you can only edit your own post")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.SanitizeText(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Content != nil {
		updates["content"] = utils.Sanitize(*req.Content)
	}
	if req.Excerpt != nil {
		updates["excerpt"] = utils.SanitizeText(strings.TrimSpace(*req.Excerpt))
	}
	if req.Category != nil {
		if !config.ValidCategory(*req.Category) {
			utils.Error(ctx, http.StatusBadRequest, "invalid category")
			return
		}
		updates["category"] = *req.Category
	}
	if req.Tags != nil {
		cleaned := make([]string, 0, len(*req.Tags))
		for _, t := range *req.Tags {
			if t = strings.TrimSpace(utils.SanitizeText(t)); t != "" {
				cleaned = append(cleaned, t)
			}
		}
		updates["tags"] = strings.Join(cleaned, ",")
	}

	if len(updates) > 0 {
		if err := p.db.Model(&post).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, "failed to update post")
			return
		}
	}
	if err := feedPreloads(p.db).First(&post, post.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost allows the author or an admin to delete a post and its
// dependents.
func (p *PostController) DeletePost(ctx *gin.Context) {
	var post models.Post
	if err := p.db.First(&post, ctx.Param("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			utils.Error(ctx, http.StatusNotFound, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, "failed to load post")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, "unauthorized")
		return
	}
	if post.UserID != userID && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, "you can only delete your own post")
		return
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		// Likes hang off comments, not the post, so they go first.
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", post.ID)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.CommentLike{}).Error; err != nil {
			return err
		}
		for _, m := range []interface{}{&models.Comment{}, &models.PostLike{}, &models.SavedPost{}, &models.MutedPost{}, &models.Report{}} {
			if err := tx.Where("post_id = ?", post.ID).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to delete post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:list:")

	utils.Success(ctx, gin.H{"message": "post deleted"})
}

const excerptRunes = 160

func makeExcerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptRunes {
		return content
	}
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}
