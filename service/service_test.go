package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inkwell/common"
	"inkwell/database"
	"inkwell/models"
	"inkwell/repository"
)

type testEnv struct {
	db       *gorm.DB
	posts    *Posts
	comments *Comments
	accounts *Accounts
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.RunMigrations(db))

	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	return &testEnv{
		db:       db,
		posts:    NewPosts(postRepo, commentRepo),
		comments: NewComments(commentRepo, postRepo),
		accounts: NewAccounts(repository.NewUserRepository(db), repository.NewProfileRepository(db), postRepo).
			WithHashCost(bcrypt.MinCost),
	}
}

func (e *testEnv) register(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.accounts.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return user
}

func as(user *models.User) context.Context {
	return common.WithUser(context.Background(), user)
}
