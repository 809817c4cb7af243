package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userapp "github.com/miskit/backoffice/internal/application"
	"github.com/miskit/backoffice/internal/domain/entity"
	"github.com/miskit/backoffice/internal/infrastructure/memory"
	"github.com/miskit/backoffice/internal/interface/middleware"
	"github.com/miskit/backoffice/pkg/helpers"
	"github.com/miskit/backoffice/pkg/storage"
	"github.com/miskit/backoffice/pkg/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Init()
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

// identityStub replaces the auth middleware in tests.
func identityStub(ident entity.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("identity", ident)
		c.Next()
	}
}

type testEnv struct {
	svc   *userapp.Service
	admin entity.Identity
}

func newTestRouter(t *testing.T, ident entity.Identity) (*gin.Engine, *testEnv) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	jwt := helpers.NewJWTManager("test", "a", "r", time.Minute, time.Hour)
	svc := userapp.NewService(memory.NewUserRepository(), jwt, storage.NewDiskStore(t.TempDir(), "/avatar"), nil, logger, nil, nil, "", "123456")
	h := NewUserHandler(svc, logger)

	r := gin.New()
	g := r.Group("/api/user", identityStub(ident))
	adminOnly := middleware.RequireRoles(entity.RoleAdministrator)
	g.POST("", h.Add)
	g.PUT("", h.AdminUpdate)
	g.POST("/list", h.List)
	g.POST("/avatar", h.UploadAvatar)
	g.GET("/:userId", h.Get)
	g.PUT("/:userId", h.SelfUpdate)
	g.DELETE("/:userId", adminOnly, h.Delete)
	g.PUT("/password/:userId", h.ChangePassword)

	return r, &testEnv{svc: svc, admin: ident}
}

func adminIdent() entity.Identity {
	return entity.Identity{UserID: 1, ClientID: "admin", Permission: entity.RoleAdministrator}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func createUser(t *testing.T, r *gin.Engine, name, username, role string) {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/api/user", gin.H{"name": name, "username": username, "role": role})
	require.Equal(t, http.StatusOK, w.Code, env.Message)
}

func TestAddUserEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, adminIdent())

	t.Run("success", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPost, "/api/user", gin.H{"name": "John", "username": "jdoe", "role": "employee"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
	})

	t.Run("duplicate username", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPost, "/api/user", gin.H{"name": "Jane", "username": "jdoe", "role": "member"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.False(t, env.Success)
	})

	t.Run("blank field rejected by binding", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPost, "/api/user", gin.H{"name": "  ", "username": "x", "role": "member"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotNil(t, env.Error)
	})

	t.Run("missing field rejected", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/user", gin.H{"username": "y", "role": "member"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad email rejected", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/user", gin.H{"name": "Z", "username": "z", "role": "member", "email": "not-an-email"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetUserEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, adminIdent())
	createUser(t, r, "John", "jdoe", "employee")

	t.Run("found", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodGet, "/api/user/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var u entity.User
		require.NoError(t, json.Unmarshal(env.Data, &u))
		assert.Equal(t, "jdoe", u.Username)
	})

	t.Run("password digest never serialized", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodGet, "/api/user/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, string(env.Data), "password")
	})

	t.Run("not found", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/user/99", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodGet, "/api/user/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAdminUpdateEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, adminIdent())
	createUser(t, r, "John", "jdoe", "employee")

	t.Run("updates role", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPut, "/api/user", gin.H{"userId": 1, "role": "manager"})
		assert.Equal(t, http.StatusOK, w.Code)

		var u entity.User
		require.NoError(t, json.Unmarshal(env.Data, &u))
		assert.Equal(t, "manager", u.Role)
		assert.Equal(t, "John", u.Name)
	})

	t.Run("unknown user", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user", gin.H{"userId": 99, "name": "X"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing userId", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user", gin.H{"name": "X"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSelfUpdateEndpoint(t *testing.T) {
	t.Parallel()

	owner := entity.Identity{UserID: 1, ClientID: "jdoe", Permission: "employee"}
	r, _ := newTestRouter(t, owner)
	createUser(t, r, "John", "jdoe", "employee")

	t.Run("owner renames, role field ignored", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPut, "/api/user/1", gin.H{"name": "Johnny", "role": "administrator"})
		assert.Equal(t, http.StatusOK, w.Code)

		var u entity.User
		require.NoError(t, json.Unmarshal(env.Data, &u))
		assert.Equal(t, "Johnny", u.Name)
		assert.Equal(t, "employee", u.Role)
	})

	t.Run("updating someone else is forbidden", func(t *testing.T) {
		createUser(t, r, "Jane", "jane", "member")
		w, _ := doJSON(t, r, http.MethodPut, "/api/user/2", gin.H{"name": "Hacked"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestDeleteEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("administrator deletes, second delete is not found", func(t *testing.T) {
		t.Parallel()
		r, _ := newTestRouter(t, adminIdent())
		createUser(t, r, "John", "jdoe", "employee")

		w, _ := doJSON(t, r, http.MethodDelete, "/api/user/1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w, _ = doJSON(t, r, http.MethodDelete, "/api/user/1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = doJSON(t, r, http.MethodGet, "/api/user/1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-administrator is rejected", func(t *testing.T) {
		t.Parallel()
		r, _ := newTestRouter(t, entity.Identity{UserID: 5, Permission: "member"})
		createUser(t, r, "John", "jdoe", "employee")

		w, _ := doJSON(t, r, http.MethodDelete, "/api/user/1", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestListEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, adminIdent())
	createUser(t, r, "Root", "root", "administrator")
	createUser(t, r, "Alice", "alice", "employee")
	createUser(t, r, "Bob", "bob", "member")

	t.Run("paged result with metadata", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPost, "/api/user/list", gin.H{"pageNow": 1, "pageSize": 2})
		assert.Equal(t, http.StatusOK, w.Code)

		var page struct {
			Total     int64         `json:"total"`
			PageCount int           `json:"page_count"`
			List      []entity.User `json:"list"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.EqualValues(t, 3, page.Total)
		assert.Equal(t, 2, page.PageCount)
		assert.Len(t, page.List, 2)
	})

	t.Run("role filter", func(t *testing.T) {
		w, env := doJSON(t, r, http.MethodPost, "/api/user/list", gin.H{"pageNow": 1, "pageSize": 10, "role": "employee"})
		assert.Equal(t, http.StatusOK, w.Code)

		var page struct {
			List []entity.User `json:"list"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &page))
		require.Len(t, page.List, 1)
		assert.Equal(t, "alice", page.List[0].Username)
	})

	t.Run("page bounds enforced", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPost, "/api/user/list", gin.H{"pageNow": 0, "pageSize": 10})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doJSON(t, r, http.MethodPost, "/api/user/list", gin.H{"pageNow": 1, "pageSize": 1000})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChangePasswordEndpoint(t *testing.T) {
	t.Parallel()

	r, _ := newTestRouter(t, adminIdent())
	createUser(t, r, "John", "jdoe", "employee")

	t.Run("with correct old password", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user/password/1", gin.H{"oldPassword": "123456", "newPassword": "fresh-1"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("with wrong old password", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user/password/1", gin.H{"oldPassword": "bogus", "newPassword": "fresh-2"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("recovery without old password", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user/password/1", gin.H{"newPassword": "fresh-3"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("blank new password", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user/password/1", gin.H{"newPassword": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		w, _ := doJSON(t, r, http.MethodPut, "/api/user/password/99", gin.H{"newPassword": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUploadAvatarEndpoint(t *testing.T) {
	t.Parallel()

	r, env := newTestRouter(t, adminIdent())
	createUser(t, r, "John", "jdoe", "employee")

	upload := func(t *testing.T, id int64, filename, content string) (*httptest.ResponseRecorder, envelope) {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("id", strconv.FormatInt(id, 10)))
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/user/avatar", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return w, out
	}

	t.Run("stores and returns public path", func(t *testing.T) {
		w, out := upload(t, 1, "me.png", "imagedata")
		assert.Equal(t, http.StatusOK, w.Code)

		var path string
		require.NoError(t, json.Unmarshal(out.Data, &path))
		assert.Equal(t, "/avatar/1.png", path)

		u, err := env.svc.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "1.png", u.Avatar)
	})

	t.Run("empty file rejected, avatar untouched", func(t *testing.T) {
		w, _ := upload(t, 1, "me.jpg", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		u, err := env.svc.GetByID(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "1.png", u.Avatar)
	})

	t.Run("unknown user", func(t *testing.T) {
		w, _ := upload(t, 99, "me.png", "data")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
