package application

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/miskit/backoffice/internal/domain/entity"
	repo "github.com/miskit/backoffice/internal/domain/repository"
	"github.com/miskit/backoffice/pkg/helpers"
)

// SessionTTL bounds how long a redis session outlives its last refresh.
var SessionTTL = 24 * time.Hour

// TokenPair is the access/refresh pair handed to the cookie layer.
type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// SessionKey is the redis key holding the caller's session hash.
func SessionKey(userID int64) string {
	return "user:session:" + strconv.FormatInt(userID, 10)
}

// Login checks the username/password digest and, on success, issues a token
// pair and records the session in redis.
func (s *Service) Login(ctx context.Context, username, password string) (*entity.User, TokenPair, error) {
	if blank(username) || blank(password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if !helpers.DigestEqual(u.Password, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

func (s *Service) issueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, u.Username, u.Role, sid)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, u.Username, u.Role, sid)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		return TokenPair{}, err
	}

	if s.Redis != nil {
		key := SessionKey(u.ID)
		fields := map[string]any{
			"user_id":  u.ID,
			"username": u.Username,
			"name":     u.Name,
			"role":     u.Role,
			"sid":      sid,
			"issuer":   s.JWT.Issuer,
		}
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, SessionTTL)
		if _, rErr := pipe.Exec(ctx); rErr != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Refresh rotates the session id and both tokens. The refresh token must
// match the live session's sid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	u, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, SessionKey(u.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, ErrInvalidCredentials
		}
	}
	return s.issueTokens(ctx, u)
}

// Logout drops the redis session; the handler clears the cookies.
func (s *Service) Logout(ctx context.Context, ident entity.Identity) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, SessionKey(ident.UserID)).Err(); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{"user_id": ident.UserID}).Warn("session delete failed")
	}
}
