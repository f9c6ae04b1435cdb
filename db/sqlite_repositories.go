package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"quillblog/internal/util"
	"quillblog/models"
)

// SQLiteUserRepository implements the UserRepository interface for SQLite
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLiteUserRepository
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a credential row. A username collision is reported as
// models.ErrDuplicateUser.
func (r *SQLiteUserRepository) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	query := `INSERT INTO "user" (username, password) VALUES (?, ?)`
	res, err := util.RetryOnLockWithResult(ctx, func() (sql.Result, error) {
		return r.db.ExecContext(ctx, query, username, passwordHash)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrDuplicateUser
		}
		return nil, fmt.Errorf("error inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error reading user id: %w", err)
	}

	return &models.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// FindByID finds a user by ID
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, username, password FROM "user" WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// FindByUsername finds a user by username
func (r *SQLiteUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password FROM "user" WHERE username = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// SQLitePostRepository implements the PostRepository interface for SQLite
type SQLitePostRepository struct {
	db *sql.DB
}

// NewSQLitePostRepository creates a new SQLitePostRepository
func NewSQLitePostRepository(db *sql.DB) *SQLitePostRepository {
	return &SQLitePostRepository{db: db}
}

const selectPost = `SELECT p.id, p.title, p.body, p.created, p.author_id, u.username
	FROM post p JOIN "user" u ON u.id = p.author_id`

// Create inserts a post and fills in its ID
func (r *SQLitePostRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	query := `INSERT INTO post (title, body, created, author_id) VALUES (?, ?, ?, ?)`
	res, err := util.RetryOnLockWithResult(ctx, func() (sql.Result, error) {
		return r.db.ExecContext(ctx, query, post.Title, post.Body, post.Created, post.AuthorID)
	})
	if err != nil {
		return nil, fmt.Errorf("error inserting post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error reading post id: %w", err)
	}
	post.ID = id
	return post, nil
}

// FindByID finds a post by ID, joined with its author's username
func (r *SQLitePostRepository) FindByID(ctx context.Context, id int64) (*models.Post, error) {
	row := r.db.QueryRowContext(ctx, selectPost+` WHERE p.id = ?`, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.Title, &post.Body, &post.Created, &post.AuthorID, &post.AuthorUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning post: %w", err)
	}
	return &post, nil
}

// FindAll returns every post, newest first
func (r *SQLitePostRepository) FindAll(ctx context.Context) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, selectPost+` ORDER BY p.created DESC, p.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.Title, &post.Body, &post.Created, &post.AuthorID, &post.AuthorUsername); err != nil {
			return nil, fmt.Errorf("error scanning post: %w", err)
		}
		posts = append(posts, &post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// Update overwrites title and body. ID, author and created stay as stored.
func (r *SQLitePostRepository) Update(ctx context.Context, post *models.Post) error {
	query := `UPDATE post SET title = ?, body = ? WHERE id = ?`
	res, err := util.RetryOnLockWithResult(ctx, func() (sql.Result, error) {
		return r.db.ExecContext(ctx, query, post.Title, post.Body, post.ID)
	})
	if err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}
	return requireAffected(res)
}

// DeleteByID deletes a post by ID
func (r *SQLitePostRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := util.RetryOnLockWithResult(ctx, func() (sql.Result, error) {
		return r.db.ExecContext(ctx, `DELETE FROM post WHERE id = ?`, id)
	})
	if err != nil {
		return fmt.Errorf("error deleting post: %w", err)
	}
	return requireAffected(res)
}

// Count returns the number of stored posts
func (r *SQLitePostRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting posts: %w", err)
	}
	return n, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLiteFuturePostRepository implements the FuturePostRepository interface for SQLite
type SQLiteFuturePostRepository struct {
	db *sql.DB
}

// NewSQLiteFuturePostRepository creates a new SQLiteFuturePostRepository
func NewSQLiteFuturePostRepository(db *sql.DB) *SQLiteFuturePostRepository {
	return &SQLiteFuturePostRepository{db: db}
}

// FindAll returns the canned posts ordered by ID
func (r *SQLiteFuturePostRepository) FindAll(ctx context.Context) ([]*models.FuturePost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, body FROM future_posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying future posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.FuturePost
	for rows.Next() {
		var fp models.FuturePost
		if err := rows.Scan(&fp.ID, &fp.Title, &fp.Body); err != nil {
			return nil, fmt.Errorf("error scanning future post: %w", err)
		}
		posts = append(posts, &fp)
	}
	return posts, rows.Err()
}
