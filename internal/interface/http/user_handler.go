package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/miskit/backoffice/internal/application"
	"github.com/miskit/backoffice/internal/interface/middleware"
	"github.com/miskit/backoffice/pkg/response"
	"github.com/miskit/backoffice/pkg/validation"
)

type UserHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewUserHandler(svc *userapp.Service, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type addUserRequest struct {
	Name     string `json:"name" binding:"required,notblank"`
	Username string `json:"username" binding:"required,notblank"`
	Role     string `json:"role" binding:"required,notblank"`
	Email    string `json:"email" binding:"omitempty,email"`
}

type adminUpdateRequest struct {
	UserID int64  `json:"userId" binding:"required,gt=0"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type selfUpdateRequest struct {
	Name string `json:"name"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" binding:"required,notblank"`
}

type listRequest struct {
	PageNow  int    `json:"pageNow" binding:"required,gte=1"`
	PageSize int    `json:"pageSize" binding:"required,gte=1,lte=100"`
	Role     string `json:"role"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// writeServiceError maps service sentinels onto the error envelope.
func (h *UserHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, userapp.ErrValidation):
		response.Error[any](c, http.StatusBadRequest, "missing or blank required field", nil)
	case errors.Is(err, userapp.ErrUsernameTaken):
		response.Error[any](c, http.StatusConflict, "username already registered", nil)
	case errors.Is(err, userapp.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, "user does not exist", nil)
	case errors.Is(err, userapp.ErrWrongPassword):
		response.Error[any](c, http.StatusUnauthorized, "incorrect original password", nil)
	case errors.Is(err, userapp.ErrForbidden):
		response.Error[any](c, http.StatusForbidden, "operation not permitted", nil)
	default:
		h.Logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

// Add POST /api/user
func (h *UserHandler) Add(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	_, err := h.Svc.AddUser(c.Request.Context(), userapp.AddUserInput{
		Name:     req.Name,
		Username: req.Username,
		Role:     req.Role,
		Email:    req.Email,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "user added", nil)
}

// AdminUpdate PUT /api/user
func (h *UserHandler) AdminUpdate(c *gin.Context) {
	var req adminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateByAdmin(c.Request.Context(), req.UserID, userapp.UpdateUserInput{
		Name: req.Name,
		Role: req.Role,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user updated", nil)
}

// SelfUpdate PUT /api/user/:userId — only the record owner may call this,
// and only the display name can change.
func (h *UserHandler) SelfUpdate(c *gin.Context) {
	id, ok := middleware.UserIDParam(c, "userId")
	if !ok {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	ident, ok := middleware.IdentityFromCtx(c)
	if !ok {
		response.Error[any](c, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req selfUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateSelf(c.Request.Context(), ident, id, req.Name)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user updated", nil)
}

// Get GET /api/user/:userId
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := middleware.UserIDParam(c, "userId")
	if !ok {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	u, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user found", nil)
}

// Delete DELETE /api/user/:userId — the administrator-role guard runs
// before this handler.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := middleware.UserIDParam(c, "userId")
	if !ok {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "user deleted", nil)
}

// List POST /api/user/list
func (h *UserHandler) List(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	ident, ok := middleware.IdentityFromCtx(c)
	if !ok {
		response.Error[any](c, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	users, total, err := h.Svc.List(c.Request.Context(), ident, userapp.ListInput{
		PageNow:  req.PageNow,
		PageSize: req.PageSize,
		Role:     req.Role,
		Username: req.Username,
		Name:     req.Name,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	page := response.NewPageResult(users, total, req.PageNow, req.PageSize)
	response.Success(c, http.StatusOK, page, "users found", nil)
}

// ChangePassword PUT /api/user/password/:userId
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, ok := middleware.UserIDParam(c, "userId")
	if !ok {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Svc.ChangePassword(c.Request.Context(), id, userapp.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "password changed", nil)
}

// UploadAvatar POST /api/user/avatar — multipart form with "file" and "id".
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	var form struct {
		ID int64 `form:"id" binding:"required,gt=0"`
	}
	if err := c.ShouldBind(&form); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file missing", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file unreadable", nil)
		return
	}
	defer func() { _ = f.Close() }()

	path, err := h.Svc.UploadAvatar(c.Request.Context(), form.ID, f, fh.Filename, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, userapp.ErrValidation) {
			response.Error[any](c, http.StatusBadRequest, "avatar upload failed, file is empty", nil)
			return
		}
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, path, "avatar uploaded", nil)
}

// Search GET /api/user/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	res, err := h.Svc.SearchUsers(c.Request.Context(), q, 10)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res, "search results", nil)
}
