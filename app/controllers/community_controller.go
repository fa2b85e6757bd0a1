package controllers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/app/repository"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/database"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/shortener"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/usercontext"
)

type postRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID uint   `json:"category_id"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type reactionRequest struct {
	Type string `json:"type"`
}

// HandleListPosts returns the newest forum posts, optionally filtered by a
// category slug.
func HandleListPosts(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)
	repo := repository.GetGlobalFactory().GetPostRepository()

	var (
		posts []models.Post
		err   error
	)
	if categorySlug := strings.TrimSpace(c.Query("category")); categorySlug != "" {
		category, catErr := repo.GetCategoryBySlug(categorySlug)
		if catErr != nil {
			return jsonError(c, fiber.StatusNotFound, "category_not_found", "Unknown category")
		}
		posts, err = repo.GetByCategory(category.ID, offset, limit)
	} else {
		posts, err = repo.List(offset, limit)
	}
	if err != nil {
		log.Errorf("[Community] Failed to list posts: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load posts")
	}

	total, _ := repo.Count()

	items := make([]fiber.Map, 0, len(posts))
	for i := range posts {
		items = append(items, postSummary(&posts[i]))
	}

	return c.JSON(fiber.Map{
		"posts": items,
		"total": total,
	})
}

// HandleListPostCategories returns all forum categories.
func HandleListPostCategories(c *fiber.Ctx) error {
	categories, err := repository.GetGlobalFactory().GetPostRepository().GetCategories()
	if err != nil {
		log.Errorf("[Community] Failed to list categories: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load categories")
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// HandleGetPost returns one post with its comments.
func HandleGetPost(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetPostRepository()

	post, err := repo.GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "post_not_found", "Post not found")
	}

	offset, limit := parsePagination(c)
	comments, err := repo.GetComments(post.ID, offset, limit)
	if err != nil {
		log.Errorf("[Community] Failed to load comments for post %d: %v", post.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to load comments")
	}

	commentItems := make([]fiber.Map, 0, len(comments))
	for i := range comments {
		cm := &comments[i]
		commentItems = append(commentItems, fiber.Map{
			"id":         cm.ID,
			"author":     cm.Author.Username,
			"content":    cm.Content,
			"created_at": cm.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	body := postSummary(post)
	body["content"] = post.Content
	body["comments"] = commentItems
	return c.JSON(body)
}

// HandleCreatePost creates a forum post for the logged-in user.
func HandleCreatePost(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetPostRepository()

	slug, err := uniquePostSlug(repo, req.Title)
	if err != nil {
		log.Errorf("[Community] Failed to build post slug: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to create post")
	}

	post := models.Post{
		AuthorID:   userCtx.UserID,
		CategoryID: req.CategoryID,
		Title:      strings.TrimSpace(req.Title),
		Slug:       slug,
		Content:    req.Content,
	}
	if err := post.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repo.Create(&post); err != nil {
		log.Errorf("[Community] Failed to create post: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to create post")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":   post.ID,
		"slug": post.Slug,
	})
}

// HandleUpdatePost edits a post. Only the author or an admin may edit.
func HandleUpdatePost(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "post_not_found", "Post not found")
	}
	if post.AuthorID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your post")
	}

	var req struct {
		Title      *string `json:"title"`
		Content    *string `json:"content"`
		CategoryID *uint   `json:"category_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	if req.Title != nil {
		post.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.CategoryID != nil {
		post.CategoryID = *req.CategoryID
	}

	if err := post.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repo.Update(post); err != nil {
		log.Errorf("[Community] Failed to update post %d: %v", post.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to update post")
	}

	return c.JSON(fiber.Map{"id": post.ID, "slug": post.Slug})
}

// HandleDeletePost soft-deletes a post. Only the author or an admin may
// delete.
func HandleDeletePost(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "post_not_found", "Post not found")
	}
	if post.AuthorID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your post")
	}

	if err := repo.Delete(post.ID); err != nil {
		log.Errorf("[Community] Failed to delete post %d: %v", post.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to delete post")
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// HandleAddComment appends a comment to a post.
func HandleAddComment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "post_not_found", "Post not found")
	}

	comment := models.PostComment{
		PostID:   post.ID,
		AuthorID: userCtx.UserID,
		Content:  req.Content,
	}
	if strings.TrimSpace(comment.Content) == "" {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "Comment cannot be empty")
	}
	if err := repo.AddComment(&comment); err != nil {
		log.Errorf("[Community] Failed to add comment to post %d: %v", post.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to add comment")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": comment.ID})
}

// HandleDeleteComment removes a comment. Only the comment author or an admin
// may delete.
func HandleDeleteComment(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	commentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid comment id")
	}

	db := database.GetDB()
	if db == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Database unavailable")
	}

	var comment models.PostComment
	if err := db.First(&comment, uint(commentID)).Error; err != nil {
		return jsonError(c, fiber.StatusNotFound, "comment_not_found", "Comment not found")
	}
	if comment.AuthorID != userCtx.UserID && !userCtx.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Not your comment")
	}

	if err := repository.GetGlobalFactory().GetPostRepository().DeleteComment(comment.ID); err != nil {
		log.Errorf("[Community] Failed to delete comment %d: %v", comment.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to delete comment")
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// HandleTogglePostReaction flips one reaction of the logged-in user on a post
// and returns the new state plus the updated counters.
func HandleTogglePostReaction(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req reactionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Invalid request body")
	}
	if !models.IsValidReactionType(req.Type) {
		return jsonError(c, fiber.StatusUnprocessableEntity, "invalid_reaction", "Unknown reaction type")
	}

	repo := repository.GetGlobalFactory().GetPostRepository()
	post, err := repo.GetBySlug(c.Params("slug"))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "post_not_found", "Post not found")
	}

	db := database.GetDB()
	if db == nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Database unavailable")
	}

	added, err := models.ToggleReaction(db, post.ID, userCtx.UserID, req.Type)
	if err != nil {
		log.Errorf("[Community] Failed to toggle %s on post %d: %v", req.Type, post.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_error", "Failed to toggle reaction")
	}

	// Re-read the counters the toggle adjusted.
	updated, err := repo.GetByID(post.ID)
	if err != nil {
		updated = post
	}

	return c.JSON(fiber.Map{
		"type":   req.Type,
		"added":  added,
		"likes":  updated.LikesCount,
		"useful": updated.UsefulCount,
		"fire":   updated.FireCount,
	})
}

func postSummary(post *models.Post) fiber.Map {
	return fiber.Map{
		"id":             post.ID,
		"slug":           post.Slug,
		"title":          post.Title,
		"author":         post.Author.Username,
		"category":       post.Category.Name,
		"likes_count":    post.LikesCount,
		"useful_count":   post.UsefulCount,
		"fire_count":     post.FireCount,
		"comments_count": post.CommentsCount,
		"created_at":     post.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func uniquePostSlug(repo repository.PostRepository, title string) (string, error) {
	base := slugify(title)
	if base == "" {
		base = "post"
	}
	for attempt := 0; attempt < 5; attempt++ {
		suffix, err := shortener.GenerateSecureSlug(6)
		if err != nil {
			return "", err
		}
		candidate := base + "-" + strings.ToLower(suffix)
		exists, err := repo.SlugExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not find a free slug for %q", base)
}
