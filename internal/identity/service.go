package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/descanso-app/descanso/internal/shared"
)

const sessionKeyPrefix = "descanso:session:"

// SessionStore keeps opaque bearer tokens in Redis with a sliding TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Create mints a token bound to the profile id.
func (s *SessionStore) Create(ctx context.Context, profileID uuid.UUID) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.client.Set(ctx, sessionKeyPrefix+token, profileID.String(), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("identity: store session: %w", err)
	}
	return token, nil
}

// Resolve maps a token back to the profile id, refreshing the TTL.
func (s *SessionStore) Resolve(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.client.GetEx(ctx, sessionKeyPrefix+token, s.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, shared.ErrInvalidCredentials
		}
		return uuid.Nil, fmt.Errorf("identity: resolve session: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("identity: corrupt session payload: %w", err)
	}
	return id, nil
}

// Delete removes a token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("identity: delete session: %w", err)
	}
	return nil
}

// Service wraps authentication business rules. There is exactly one
// authentication strategy: password hash on the profile record.
type Service struct {
	repo     Repository
	sessions *SessionStore
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *SessionStore) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// Login validates credentials and mints a session token.
func (s *Service) Login(ctx context.Context, email, password string) (shared.Identity, string, error) {
	profile, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return shared.Identity{}, "", shared.ErrInvalidCredentials
	}
	if !profile.IsActive {
		return shared.Identity{}, "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return shared.Identity{}, "", shared.ErrInvalidCredentials
	}
	token, err := s.sessions.Create(ctx, profile.ID)
	if err != nil {
		return shared.Identity{}, "", err
	}
	return profile.Identity(), token, nil
}

// Authenticate resolves a bearer token to the caller's identity.
func (s *Service) Authenticate(ctx context.Context, token string) (shared.Identity, error) {
	profileID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return shared.Identity{}, err
	}
	profile, err := s.repo.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Identity{}, shared.ErrInvalidCredentials
		}
		return shared.Identity{}, err
	}
	if !profile.IsActive {
		return shared.Identity{}, shared.ErrInvalidCredentials
	}
	return profile.Identity(), nil
}

// Logout deletes the session and reports which viewer it belonged to, so
// the caller can release that viewer's engine.
func (s *Service) Logout(ctx context.Context, token string) (uuid.UUID, error) {
	profileID, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return uuid.Nil, err
	}
	return profileID, nil
}
