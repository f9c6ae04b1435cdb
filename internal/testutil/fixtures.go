package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quillblog/db"
	"quillblog/models"
)

// CreateTestUser stores a user whose password is password.
func CreateTestUser(t *testing.T, repo db.UserRepository, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user, err := repo.Create(context.Background(), username, string(hash))
	require.NoError(t, err)
	return user
}

// CreateTestPost stores a post by author created at the given time.
func CreateTestPost(t *testing.T, repo db.PostRepository, author *models.User, title string, created time.Time) *models.Post {
	t.Helper()
	p, err := repo.Create(context.Background(), &models.Post{
		Title:    title,
		Body:     "Body of " + title,
		Created:  created.UTC(),
		AuthorID: author.ID,
	})
	require.NoError(t, err)
	return p
}
