package post

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"quillblog/db"
	"quillblog/internal/auth"
	"quillblog/models"
)

type PostService struct {
	repo    db.PostRepository
	canned  db.FuturePostRepository
	now     func() time.Time
	pickOne func(n int) int
}

func NewPostService(repo db.PostRepository, canned db.FuturePostRepository) *PostService {
	return &PostService{
		repo:    repo,
		canned:  canned,
		now:     time.Now,
		pickOne: rand.Intn,
	}
}

// WithClock replaces the source of creation timestamps.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	s.now = now
	return s
}

// Create stores a new post. An empty title inserts nothing.
func (s *PostService) Create(ctx context.Context, title, body string, authorID int64) (*models.Post, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.Required("Title")
	}

	post, err := s.repo.Create(ctx, &models.Post{
		Title:    title,
		Body:     body,
		Created:  s.now().UTC(),
		AuthorID: authorID,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("post_id", post.ID).Int64("author_id", authorID).Msg("Post created")
	return post, nil
}

// Get returns a post with its author's username.
func (s *PostService) Get(ctx context.Context, id int64) (*models.Post, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns every post, newest first.
func (s *PostService) List(ctx context.Context) ([]*models.Post, error) {
	return s.repo.FindAll(ctx)
}

// Count returns the number of stored posts.
func (s *PostService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// GetOwned returns the post only if user may modify it.
func (s *PostService) GetOwned(ctx context.Context, id int64, user *models.User) (*models.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if err := auth.RequireOwnership(post, user); err != nil {
		return nil, err
	}
	return post, nil
}

// Update overwrites title and body of a post owned by user.
func (s *PostService) Update(ctx context.Context, id int64, title, body string, user *models.User) (*models.Post, error) {
	post, err := s.GetOwned(ctx, id, user)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.Required("Title")
	}

	post.Title = title
	post.Body = body
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, err
	}

	log.Info().Int64("post_id", post.ID).Msg("Post updated")
	return post, nil
}

// Delete removes a post owned by user.
func (s *PostService) Delete(ctx context.Context, id int64, user *models.User) error {
	if _, err := s.GetOwned(ctx, id, user); err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	log.Info().Int64("post_id", id).Int64("user_id", user.ID).Msg("Post deleted")
	return nil
}

// AutoPublish publishes one of the canned posts, chosen uniformly, as user.
func (s *PostService) AutoPublish(ctx context.Context, user *models.User) (*models.Post, error) {
	if err := auth.RequireAuthenticated(user); err != nil {
		return nil, err
	}

	canned, err := s.canned.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(canned) == 0 {
		return nil, fmt.Errorf("no canned posts available: %w", models.ErrNotFound)
	}

	fp := canned[s.pickOne(len(canned))]
	return s.Create(ctx, fp.Title, fp.Body, user.ID)
}
