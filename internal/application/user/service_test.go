package user

import (
	"context"
	"errors"
	"testing"

	"github.com/go-phone-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) FindByID(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) AttachPhone(ctx context.Context, u *domain.User, phone string) error {
	return m.Called(ctx, u, phone).Error(0)
}

func newSvc(repo *mockUserStore) Service {
	return NewService(ServiceDeps{UserRepo: repo})
}

// --- Get ---

func TestGet_Found(t *testing.T) {
	repo := &mockUserStore{}
	repo.On("FindByID", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	u, err := newSvc(repo).Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
}

func TestGet_NotFound(t *testing.T) {
	repo := &mockUserStore{}
	repo.On("FindByID", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	_, err := newSvc(repo).Get(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- AttachPhone ---

func TestAttachPhone_Normalizes(t *testing.T) {
	repo := &mockUserStore{}
	u := &domain.User{UserID: "u1"}
	repo.On("FindByID", mock.Anything, "u1").Return(u, nil)
	repo.On("FindByPhone", mock.Anything, "+15551234567").Return(nil, domain.ErrNotFound)
	repo.On("AttachPhone", mock.Anything, u, "+15551234567").Return(nil)

	got, err := newSvc(repo).AttachPhone(context.Background(), "u1", domain.AttachPhoneRequest{PhoneNumber: "1 (555) 123-4567"})
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", got.PhoneValue())
	assert.False(t, got.PhoneVerified)
	repo.AssertExpectations(t)
}

func TestAttachPhone_SameOwnerIsAllowed(t *testing.T) {
	repo := &mockUserStore{}
	phone := "+15551234567"
	u := &domain.User{UserID: "u1", Phone: &phone}
	repo.On("FindByID", mock.Anything, "u1").Return(u, nil)
	repo.On("FindByPhone", mock.Anything, phone).Return(u, nil)
	repo.On("AttachPhone", mock.Anything, u, phone).Return(nil)

	_, err := newSvc(repo).AttachPhone(context.Background(), "u1", domain.AttachPhoneRequest{PhoneNumber: phone})
	assert.NoError(t, err)
}

func TestAttachPhone_AlreadyVerified(t *testing.T) {
	repo := &mockUserStore{}
	repo.On("FindByID", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PhoneVerified: true}, nil)

	_, err := newSvc(repo).AttachPhone(context.Background(), "u1", domain.AttachPhoneRequest{PhoneNumber: "+15551234567"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	repo.AssertNotCalled(t, "AttachPhone", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttachPhone_TakenByAnotherUser(t *testing.T) {
	repo := &mockUserStore{}
	repo.On("FindByID", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	repo.On("FindByPhone", mock.Anything, "+15551234567").Return(&domain.User{UserID: "u2"}, nil)

	_, err := newSvc(repo).AttachPhone(context.Background(), "u1", domain.AttachPhoneRequest{PhoneNumber: "+15551234567"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAttachPhone_UserMissing(t *testing.T) {
	repo := &mockUserStore{}
	repo.On("FindByID", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	_, err := newSvc(repo).AttachPhone(context.Background(), "ghost", domain.AttachPhoneRequest{PhoneNumber: "+15551234567"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAttachPhone_RaceLostAtWrite(t *testing.T) {
	repo := &mockUserStore{}
	u := &domain.User{UserID: "u1"}
	repo.On("FindByID", mock.Anything, "u1").Return(u, nil)
	repo.On("FindByPhone", mock.Anything, "+15551234567").Return(nil, domain.ErrNotFound)
	repo.On("AttachPhone", mock.Anything, u, "+15551234567").Return(domain.ErrConflict)

	_, err := newSvc(repo).AttachPhone(context.Background(), "u1", domain.AttachPhoneRequest{PhoneNumber: "+15551234567"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAttachPhone_LookupFailure(t *testing.T) {
	repo := &mockUserStore{}
	repo.On("FindByID", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	repo.On("FindByPhone", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := newSvc(repo).AttachPhone(context.Background(), "u1", domain.AttachPhoneRequest{PhoneNumber: "+15551234567"})
	assert.ErrorContains(t, err, "throttled")
}
