package application

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miskit/backoffice/internal/domain/entity"
	"github.com/miskit/backoffice/internal/infrastructure/memory"
	"github.com/miskit/backoffice/pkg/helpers"
	"github.com/miskit/backoffice/pkg/storage"
)

const testDefaultPassword = "123456"

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	jwt := helpers.NewJWTManager("test", "access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	avatars := storage.NewDiskStore(t.TempDir(), "/avatar")
	return NewService(memory.NewUserRepository(), jwt, avatars, nil, logger, nil, nil, "", testDefaultPassword)
}

func addUser(t *testing.T, svc *Service, name, username, role string) *entity.User {
	t.Helper()
	u, err := svc.AddUser(context.Background(), AddUserInput{Name: name, Username: username, Role: role})
	require.NoError(t, err)
	return u
}

func adminIdentity() entity.Identity {
	return entity.Identity{UserID: 1, ClientID: "admin", Permission: entity.RoleAdministrator}
}

func TestAddUser_BlankFieldsNeverTouchStore(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   AddUserInput
	}{
		{name: "blank name", in: AddUserInput{Name: " ", Username: "jdoe", Role: "employee"}},
		{name: "blank username", in: AddUserInput{Name: "John", Username: "", Role: "employee"}},
		{name: "blank role", in: AddUserInput{Name: "John", Username: "jdoe", Role: "\t"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := svc.AddUser(ctx, tt.in)
			require.Error(t, err)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// none of the attempts may have persisted anything
	taken, err := svc.Repo.UsernameTaken(ctx, "jdoe")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestAddUser_DefaultCredentials(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	u := addUser(t, svc, "John Doe", "jdoe", "employee")

	assert.Equal(t, helpers.Digest(testDefaultPassword), u.Password)
	assert.Equal(t, entity.DefaultAvatar, u.Avatar)
	assert.NotZero(t, u.ID)
}

func TestAddUser_DuplicateUsername(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	addUser(t, svc, "John Doe", "jdoe", "employee")

	_, err := svc.AddUser(context.Background(), AddUserInput{Name: "Jane", Username: "jdoe", Role: "member"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestGetByID_UnknownUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	_, err := svc.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateByAdmin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	u := addUser(t, svc, "John Doe", "jdoe", "employee")

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UpdateByAdmin(ctx, 999, UpdateUserInput{Name: "X"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("overwrites only supplied fields", func(t *testing.T) {
		got, err := svc.UpdateByAdmin(ctx, u.ID, UpdateUserInput{Role: "manager"})
		require.NoError(t, err)
		assert.Equal(t, "John Doe", got.Name)
		assert.Equal(t, "manager", got.Role)
		assert.Equal(t, "jdoe", got.Username)
	})

	t.Run("blank fields left untouched", func(t *testing.T) {
		got, err := svc.UpdateByAdmin(ctx, u.ID, UpdateUserInput{Name: "  "})
		require.NoError(t, err)
		assert.Equal(t, "John Doe", got.Name)
	})
}

func TestUpdateSelf(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	u := addUser(t, svc, "John Doe", "jdoe", "employee")
	owner := entity.Identity{UserID: u.ID, ClientID: u.Username, Permission: u.Role}

	t.Run("owner renames", func(t *testing.T) {
		got, err := svc.UpdateSelf(ctx, owner, u.ID, "Johnny")
		require.NoError(t, err)
		assert.Equal(t, "Johnny", got.Name)
		assert.Equal(t, "employee", got.Role)
		assert.Equal(t, "jdoe", got.Username)
	})

	t.Run("non-owner rejected", func(t *testing.T) {
		other := entity.Identity{UserID: u.ID + 1, Permission: entity.RoleAdministrator}
		_, err := svc.UpdateSelf(ctx, other, u.ID, "Hacked")
		assert.ErrorIs(t, err, ErrForbidden)

		got, gErr := svc.GetByID(ctx, u.ID)
		require.NoError(t, gErr)
		assert.Equal(t, "Johnny", got.Name)
	})
}

func TestChangePassword(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	u := addUser(t, svc, "John Doe", "jdoe", "employee")

	t.Run("correct old password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: testDefaultPassword, NewPassword: "new-secret"})
		require.NoError(t, err)

		got, gErr := svc.GetByID(ctx, u.ID)
		require.NoError(t, gErr)
		assert.Equal(t, helpers.Digest("new-secret"), got.Password)
	})

	t.Run("wrong old password leaves digest unchanged", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{OldPassword: "nope", NewPassword: "other"})
		assert.ErrorIs(t, err, ErrWrongPassword)

		got, gErr := svc.GetByID(ctx, u.ID)
		require.NoError(t, gErr)
		assert.Equal(t, helpers.Digest("new-secret"), got.Password)
	})

	t.Run("recovery path skips verification", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{NewPassword: "recovered"})
		require.NoError(t, err)

		got, gErr := svc.GetByID(ctx, u.ID)
		require.NoError(t, gErr)
		assert.Equal(t, helpers.Digest("recovered"), got.Password)
	})

	t.Run("blank new password", func(t *testing.T) {
		err := svc.ChangePassword(ctx, u.ID, ChangePasswordInput{NewPassword: "  "})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := svc.ChangePassword(ctx, 999, ChangePasswordInput{NewPassword: "x"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestDelete(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	u := addUser(t, svc, "John Doe", "jdoe", "employee")

	require.NoError(t, svc.Delete(ctx, u.ID))

	t.Run("second delete reports not found", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, u.ID), ErrUserNotFound)
	})

	t.Run("lookups miss the deleted row", func(t *testing.T) {
		_, err := svc.GetByID(ctx, u.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)

		taken, err := svc.Repo.UsernameTaken(ctx, "jdoe")
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("username freed for reuse", func(t *testing.T) {
		again := addUser(t, svc, "John II", "jdoe", "employee")
		assert.NotEqual(t, u.ID, again.ID)
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, 999), ErrUserNotFound)
	})
}

func TestUploadAvatar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	jwt := helpers.NewJWTManager("test", "a", "r", time.Minute, time.Hour)
	svc := NewService(memory.NewUserRepository(), jwt, storage.NewDiskStore(dir, "/avatar"), nil, logger, nil, nil, "", testDefaultPassword)
	ctx := context.Background()
	u := addUser(t, svc, "John Doe", "jdoe", "employee")

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UploadAvatar(ctx, 999, strings.NewReader("img"), "a.png", 3, "image/png")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("empty file leaves avatar unchanged", func(t *testing.T) {
		_, err := svc.UploadAvatar(ctx, u.ID, bytes.NewReader(nil), "a.png", 0, "image/png")
		assert.ErrorIs(t, err, ErrValidation)

		got, gErr := svc.GetByID(ctx, u.ID)
		require.NoError(t, gErr)
		assert.Equal(t, entity.DefaultAvatar, got.Avatar)
	})

	t.Run("stores under id plus extension and overwrites", func(t *testing.T) {
		path, err := svc.UploadAvatar(ctx, u.ID, strings.NewReader("first"), "photo.PNG", 5, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "/avatar/1.png", path)

		got, gErr := svc.GetByID(ctx, u.ID)
		require.NoError(t, gErr)
		assert.Equal(t, "1.png", got.Avatar)

		_, err = svc.UploadAvatar(ctx, u.ID, strings.NewReader("second"), "new.png", 6, "image/png")
		require.NoError(t, err)

		data, rErr := os.ReadFile(filepath.Join(dir, "avatar", "1.png"))
		require.NoError(t, rErr)
		assert.Equal(t, "second", string(data))
	})
}

func TestList_ScopedByIdentity(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	addUser(t, svc, "Root", "root", entity.RoleAdministrator)
	addUser(t, svc, "Alice", "alice", "employee")
	addUser(t, svc, "Bob", "bob", "member")
	addUser(t, svc, "Alan", "alan", "employee")

	t.Run("administrator sees everyone", func(t *testing.T) {
		users, total, err := svc.List(ctx, adminIdentity(), ListInput{PageNow: 1, PageSize: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 4, total)
		assert.Len(t, users, 4)
	})

	t.Run("non-admin never sees administrators", func(t *testing.T) {
		member := entity.Identity{UserID: 3, Permission: "member"}
		users, total, err := svc.List(ctx, member, ListInput{PageNow: 1, PageSize: 10})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		for _, u := range users {
			assert.NotEqual(t, entity.RoleAdministrator, u.Role)
		}
	})

	t.Run("filters compose", func(t *testing.T) {
		users, total, err := svc.List(ctx, adminIdentity(), ListInput{PageNow: 1, PageSize: 10, Role: "employee", Username: "al"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, "alan", users[1].Username)
	})

	t.Run("pagination", func(t *testing.T) {
		users, total, err := svc.List(ctx, adminIdentity(), ListInput{PageNow: 2, PageSize: 3})
		require.NoError(t, err)
		assert.EqualValues(t, 4, total)
		assert.Len(t, users, 1)
	})
}
