package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"dm-service/internal/mail"
	"dm-service/internal/media"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) user(args mock.Arguments) (models.User, error) {
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) users(args mock.Arguments) ([]models.User, error) {
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) Create(ctx context.Context, u repositories.NewUser) (models.User, error) {
	return m.user(m.Called(ctx, u))
}

func (m *UserRepositoryMock) FindByEmailOrName(ctx context.Context, email, fullName string) (models.User, error) {
	return m.user(m.Called(ctx, email, fullName))
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, id string) (models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *UserRepositoryMock) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *UserRepositoryMock) GetByVerificationToken(ctx context.Context, token string) (models.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *UserRepositoryMock) GetByResetToken(ctx context.Context, token string) (models.User, error) {
	return m.user(m.Called(ctx, token))
}

func (m *UserRepositoryMock) MarkVerified(ctx context.Context, id, code string) (models.User, error) {
	return m.user(m.Called(ctx, id, code))
}

func (m *UserRepositoryMock) ClearVerificationToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *UserRepositoryMock) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	return m.Called(ctx, id, token, expiresAt).Error(0)
}

func (m *UserRepositoryMock) ClearResetToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *UserRepositoryMock) ResetPassword(ctx context.Context, id, token, passwordHash string) error {
	return m.Called(ctx, id, token, passwordHash).Error(0)
}

func (m *UserRepositoryMock) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *UserRepositoryMock) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, u models.User) (models.User, error) {
	return m.user(m.Called(ctx, u))
}

func (m *UserRepositoryMock) Search(ctx context.Context, query, excludeID string) ([]models.User, error) {
	return m.users(m.Called(ctx, query, excludeID))
}

func (m *UserRepositoryMock) ListPartners(ctx context.Context, userID string) ([]models.User, error) {
	return m.users(m.Called(ctx, userID))
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) message(args mock.Arguments) (models.Message, error) {
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	return m.message(m.Called(ctx, msg))
}

func (m *MessageRepositoryMock) ListConversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID))
}

func (m *MessageRepositoryMock) UpdateText(ctx context.Context, messageID, text string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, text))
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID, emoji string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, emoji))
}

func (m *MessageRepositoryMock) Delete(ctx context.Context, messageID string) error {
	return m.Called(ctx, messageID).Error(0)
}

func (m *MessageRepositoryMock) DeleteConversation(ctx context.Context, userA, userB string) (int64, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(int64), args.Error(1)
}

type ChatRequestRepositoryMock struct {
	mock.Mock
}

func (m *ChatRequestRepositoryMock) Create(ctx context.Context, receiverID, senderID string) (models.ChatRequest, error) {
	args := m.Called(ctx, receiverID, senderID)
	var req models.ChatRequest
	if val := args.Get(0); val != nil {
		req = val.(models.ChatRequest)
	}
	return req, args.Error(1)
}

func (m *ChatRequestRepositoryMock) ListPending(ctx context.Context, receiverID string) ([]models.PendingRequest, error) {
	args := m.Called(ctx, receiverID)
	var reqs []models.PendingRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.PendingRequest)
	}
	return reqs, args.Error(1)
}

func (m *ChatRequestRepositoryMock) Accept(ctx context.Context, receiverID, senderID string) error {
	return m.Called(ctx, receiverID, senderID).Error(0)
}

func (m *ChatRequestRepositoryMock) IsAccepted(ctx context.Context, userA, userB string) (bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Bool(0), args.Error(1)
}

type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) SendVerification(ctx context.Context, to, code string) error {
	return m.Called(ctx, to, code).Error(0)
}

func (m *MailerMock) SendWelcome(ctx context.Context, to, name string) error {
	return m.Called(ctx, to, name).Error(0)
}

func (m *MailerMock) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	return m.Called(ctx, to, resetURL).Error(0)
}

func (m *MailerMock) SendResetSuccess(ctx context.Context, to string) error {
	return m.Called(ctx, to).Error(0)
}

type ImageHostMock struct {
	mock.Mock
}

func (m *ImageHostMock) Upload(ctx context.Context, image string) (string, error) {
	args := m.Called(ctx, image)
	return args.String(0), args.Error(1)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ChatRequestRepository = (*ChatRequestRepositoryMock)(nil)
var _ mail.Mailer = (*MailerMock)(nil)
var _ media.ImageHost = (*ImageHostMock)(nil)
