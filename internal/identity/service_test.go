package identity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/descanso-app/descanso/internal/shared"
)

type memoryProfileRepo struct {
	byEmail map[string]*Profile
	byID    map[uuid.UUID]*Profile
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{
		byEmail: make(map[string]*Profile),
		byID:    make(map[uuid.UUID]*Profile),
	}
}

func (m *memoryProfileRepo) add(p Profile) *Profile {
	stored := p
	m.byEmail[p.Email] = &stored
	m.byID[p.ID] = &stored
	return &stored
}

func (m *memoryProfileRepo) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	p, ok := m.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryProfileRepo) FindByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func newTestService(t *testing.T) (*Service, *memoryProfileRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := newMemoryProfileRepo()
	return NewService(repo, NewSessionStore(client, time.Hour)), repo, mr
}

func seedProfile(t *testing.T, repo *memoryProfileRepo, role shared.Role, active bool) Profile {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("senha-forte"), bcrypt.MinCost)
	require.NoError(t, err)
	return *repo.add(Profile{
		ID:           uuid.New(),
		Email:        string(role) + "@example.com",
		Name:         "Carla Nunes",
		Role:         role,
		EmployeeType: shared.EmployeeCLT,
		PasswordHash: string(hash),
		IsActive:     active,
		CreatedAt:    time.Now(),
	})
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, true)

	id, token, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, profile.ID, id.ID)
	require.Equal(t, shared.RoleEmployee, id.Role)

	resolved, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, profile.ID, resolved.ID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, true)

	_, _, err := svc.Login(context.Background(), "unknown@example.com", "senha-forte")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), profile.Email, "senha-errada")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveProfile(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, false)

	_, _, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Authenticate(context.Background(), "no-such-token")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateRejectsExpiredSession(t *testing.T) {
	svc, repo, mr := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, true)

	_, token, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = svc.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateRejectsDeactivatedProfile(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleManager, true)

	_, token, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.NoError(t, err)

	repo.byID[profile.ID].IsActive = false
	_, err = svc.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc, repo, _ := newTestService(t)
	profile := seedProfile(t, repo, shared.RoleEmployee, true)

	_, token, err := svc.Login(context.Background(), profile.Email, "senha-forte")
	require.NoError(t, err)

	viewerID, err := svc.Logout(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, profile.ID, viewerID)

	_, err = svc.Authenticate(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Logout(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
