package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"gorm.io/gorm"

	"github.com/casavia/casavia/internal/models"
)

var (
	// ErrPostNotFound indicates the requested post does not exist.
	ErrPostNotFound = errors.New("post: not found")
	// ErrPostForbidden signals the caller may not modify the post.
	ErrPostForbidden = errors.New("post: not owned by caller")
)

// CreatePostInput describes a new blog article.
type CreatePostInput struct {
	Title         string
	Excerpt       string
	Body          string
	CoverImageURL string
}

// UpdatePostInput enumerates mutable post attributes.
type UpdatePostInput struct {
	Title         *string
	Excerpt       *string
	Body          *string
	CoverImageURL *string
}

// ListPostsOptions controls pagination for the public post listing.
type ListPostsOptions struct {
	Page    int
	PerPage int
}

// PostService manages blog articles written by contributors.
type PostService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostService constructs a PostService.
func NewPostService(db *gorm.DB) (*PostService, error) {
	if db == nil {
		return nil, errors.New("post service: db is required")
	}
	return &PostService{db: db, now: time.Now}, nil
}

// Create stores a new draft post for the author.
func (s *PostService) Create(ctx context.Context, authorID string, input CreatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.New("post service: title is required")
	}

	post := models.Post{
		Title:         title,
		Excerpt:       strings.TrimSpace(input.Excerpt),
		Body:          input.Body,
		CoverImageURL: strings.TrimSpace(input.CoverImageURL),
		AuthorID:      authorID,
	}

	slug := Slugify(title)
	for attempt := 0; ; attempt++ {
		post.Slug = slug
		if attempt > 0 {
			post.Slug = fmt.Sprintf("%s-%d", slug, attempt+1)
		}
		err := s.db.WithContext(ctx).Create(&post).Error
		if err == nil {
			break
		}
		if isUniqueConstraintError(err) && attempt < 10 {
			post.ID = ""
			continue
		}
		return nil, fmt.Errorf("post service: create: %w", err)
	}

	return &post, nil
}

// Update applies changes to a post the caller owns. Admins may edit any post.
func (s *PostService) Update(ctx context.Context, postID, callerID string, callerRole models.Role, input UpdatePostInput) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != callerID && callerRole != models.RoleAdmin {
		return nil, ErrPostForbidden
	}

	updates := map[string]any{}
	if input.Title != nil {
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Excerpt != nil {
		updates["excerpt"] = strings.TrimSpace(*input.Excerpt)
	}
	if input.Body != nil {
		updates["body"] = *input.Body
	}
	if input.CoverImageURL != nil {
		updates["cover_image_url"] = strings.TrimSpace(*input.CoverImageURL)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("post service: update: %w", err)
		}
	}

	return s.get(ctx, postID)
}

// Publish moves a draft to the public listing, stamping published_at once.
func (s *PostService) Publish(ctx context.Context, postID, callerID string, callerRole models.Role) (*models.Post, error) {
	ctx = ensureContext(ctx)

	post, err := s.get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != callerID && callerRole != models.RoleAdmin {
		return nil, ErrPostForbidden
	}
	if post.Published {
		return post, nil
	}

	now := s.now()
	updates := map[string]any{"published": true, "published_at": now}
	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("post service: publish: %w", err)
	}

	post.Published = true
	post.PublishedAt = &now
	return post, nil
}

// Delete removes a post. Authors may delete their own; admins any.
func (s *PostService) Delete(ctx context.Context, postID, callerID string, callerRole models.Role) error {
	ctx = ensureContext(ctx)

	post, err := s.get(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != callerID && callerRole != models.RoleAdmin {
		return ErrPostForbidden
	}

	if err := s.db.WithContext(ctx).Delete(post).Error; err != nil {
		return fmt.Errorf("post service: delete: %w", err)
	}
	return nil
}

// GetBySlug returns a published post with its author preloaded.
func (s *PostService) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	ctx = ensureContext(ctx)

	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("slug = ? AND published = ?", strings.TrimSpace(slug), true).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("post service: get by slug: %w", err)
	}
	return &post, nil
}

// ListPublished returns published posts newest first with a total count.
func (s *PostService) ListPublished(ctx context.Context, opts ListPostsOptions) ([]models.Post, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := paginate(opts.Page, opts.PerPage)

	query := s.db.WithContext(ctx).Model(&models.Post{}).Where("published = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("post service: count: %w", err)
	}

	var posts []models.Post
	err := query.
		Preload("Author").
		Order("published_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("post service: list: %w", err)
	}

	return posts, total, nil
}

// ListByAuthor returns every post (draft or published) owned by the author.
func (s *PostService) ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	ctx = ensureContext(ctx)

	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("post service: list by author: %w", err)
	}
	return posts, nil
}

func (s *PostService) get(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("post service: get: %w", err)
	}
	return &post, nil
}

func paginate(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

// Slugify converts a title into a URL-safe slug.
func Slugify(title string) string {
	var b strings.Builder
	lastDash := true

	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}

	return strings.TrimRight(b.String(), "-")
}
