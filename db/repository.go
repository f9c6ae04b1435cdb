package db

import (
	"context"
	"database/sql"

	"quillblog/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = models.ErrNotFound

// UserRepository is the credential store.
type UserRepository interface {
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// PostRepository defines the interface for post operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	FindByID(ctx context.Context, id int64) (*models.Post, error)
	FindAll(ctx context.Context) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	DeleteByID(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// FuturePostRepository reads the canned posts used by the auto publisher.
type FuturePostRepository interface {
	FindAll(ctx context.Context) ([]*models.FuturePost, error)
}

// RepositoryFactory creates repositories sharing one connection pool
type RepositoryFactory struct {
	DB *sql.DB
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(db *sql.DB) *RepositoryFactory {
	return &RepositoryFactory{DB: db}
}

func (f *RepositoryFactory) NewUserRepository() UserRepository {
	return NewSQLiteUserRepository(f.DB)
}

func (f *RepositoryFactory) NewPostRepository() PostRepository {
	return NewSQLitePostRepository(f.DB)
}

func (f *RepositoryFactory) NewFuturePostRepository() FuturePostRepository {
	return NewSQLiteFuturePostRepository(f.DB)
}
