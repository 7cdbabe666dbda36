package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/casavia/casavia/internal/middleware"
	"github.com/casavia/casavia/internal/models"
	"github.com/casavia/casavia/internal/services"
	appErrors "github.com/casavia/casavia/pkg/errors"
	"github.com/casavia/casavia/pkg/response"
)

// PostHandler serves the public blog and the contributor authoring surface.
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler configures a post handler.
func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

type createPostRequest struct {
	Title         string `json:"title" validate:"required,max=256"`
	Excerpt       string `json:"excerpt" validate:"omitempty,max=512"`
	Body          string `json:"body" validate:"required"`
	CoverImageURL string `json:"cover_image_url" validate:"omitempty,max=512"`
}

type updatePostRequest struct {
	Title         *string `json:"title" validate:"omitempty,max=256"`
	Excerpt       *string `json:"excerpt" validate:"omitempty,max=512"`
	Body          *string `json:"body"`
	CoverImageURL *string `json:"cover_image_url" validate:"omitempty,max=512"`
}

// ListPublished returns the public blog feed, newest first.
// GET /api/posts
func (h *PostHandler) ListPublished(c *gin.Context) {
	opts := services.ListPostsOptions{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 20),
	}

	posts, total, err := h.posts.ListPublished(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, gin.H{"posts": posts}, &response.Meta{
		Page:    opts.Page,
		PerPage: opts.PerPage,
		Total:   total,
	})
}

// GetBySlug returns a single published article.
// GET /api/posts/:slug
func (h *PostHandler) GetBySlug(c *gin.Context) {
	post, err := h.posts.GetBySlug(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// Create stores a new draft for the calling contributor.
// POST /api/posts
func (h *PostHandler) Create(c *gin.Context) {
	var req createPostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	authorID := c.GetString(middleware.CtxUserIDKey)
	post, err := h.posts.Create(requestContext(c), authorID, services.CreatePostInput{
		Title:         req.Title,
		Excerpt:       req.Excerpt,
		Body:          req.Body,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"post": post})
}

// Update edits a draft or published article.
// PATCH /api/posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	var req updatePostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.posts.Update(requestContext(c), c.Param("id"), callerID(c), callerRole(c), services.UpdatePostInput{
		Title:         req.Title,
		Excerpt:       req.Excerpt,
		Body:          req.Body,
		CoverImageURL: req.CoverImageURL,
	})
	if err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// Publish makes a draft publicly visible.
// POST /api/posts/:id/publish
func (h *PostHandler) Publish(c *gin.Context) {
	post, err := h.posts.Publish(requestContext(c), c.Param("id"), callerID(c), callerRole(c))
	if err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"post": post})
}

// Delete removes an article.
// DELETE /api/posts/:id
func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.posts.Delete(requestContext(c), c.Param("id"), callerID(c), callerRole(c)); err != nil {
		response.Error(c, postError(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Mine lists the caller's own articles, drafts included.
// GET /api/posts/mine
func (h *PostHandler) Mine(c *gin.Context) {
	posts, err := h.posts.ListByAuthor(requestContext(c), callerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"posts": posts})
}

func callerID(c *gin.Context) string {
	return c.GetString(middleware.CtxUserIDKey)
}

func callerRole(c *gin.Context) models.Role {
	if value, ok := c.Get(middleware.CtxUserRoleKey); ok {
		if role, ok := value.(models.Role); ok {
			return role
		}
	}
	return models.RoleUser
}

func postError(err error) error {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrPostForbidden):
		return appErrors.ErrForbidden
	default:
		return err
	}
}
