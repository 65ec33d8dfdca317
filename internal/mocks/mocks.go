// Package mocks provides testify mocks for the service interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"chatlink-service/internal/bridge"
	"chatlink-service/internal/models"
	"chatlink-service/internal/telegram"
)

type IntentRepositoryMock struct {
	mock.Mock
}

func (m *IntentRepositoryMock) CreateOrReuse(ctx context.Context, projectID string, initiatorID int64, ttl time.Duration, tgUserID *int64) (models.LinkIntent, error) {
	args := m.Called(ctx, projectID, initiatorID, ttl, tgUserID)
	return args.Get(0).(models.LinkIntent), args.Error(1)
}

func (m *IntentRepositoryMock) FindActiveByToken(ctx context.Context, tok string) (models.LinkIntent, error) {
	args := m.Called(ctx, tok)
	return args.Get(0).(models.LinkIntent), args.Error(1)
}

func (m *IntentRepositoryMock) FindActiveByTelegramUser(ctx context.Context, tgUserID int64) (models.LinkIntent, error) {
	args := m.Called(ctx, tgUserID)
	return args.Get(0).(models.LinkIntent), args.Error(1)
}

func (m *IntentRepositoryMock) FindActiveByRequest(ctx context.Context, requestID int64) (models.LinkIntent, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).(models.LinkIntent), args.Error(1)
}

func (m *IntentRepositoryMock) FindActiveByChat(ctx context.Context, chatID int64) (models.LinkIntent, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(models.LinkIntent), args.Error(1)
}

func (m *IntentRepositoryMock) AttachTelegramUser(ctx context.Context, tok string, tgUserID int64) error {
	args := m.Called(ctx, tok, tgUserID)
	return args.Error(0)
}

func (m *IntentRepositoryMock) RecordShare(ctx context.Context, intentID int64, requestID int64, chatID int64) error {
	args := m.Called(ctx, intentID, requestID, chatID)
	return args.Error(0)
}

func (m *IntentRepositoryMock) MarkConsumed(ctx context.Context, intentID int64, chatID int64) (bool, error) {
	args := m.Called(ctx, intentID, chatID)
	return args.Bool(0), args.Error(1)
}

func (m *IntentRepositoryMock) Cancel(ctx context.Context, tok string, initiatorID int64) error {
	args := m.Called(ctx, tok, initiatorID)
	return args.Error(0)
}

func (m *IntentRepositoryMock) SweepExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *IntentRepositoryMock) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) UpsertShared(ctx context.Context, tgChatID int64, projectID string, addedBy int64) (models.TelegramChat, error) {
	args := m.Called(ctx, tgChatID, projectID, addedBy)
	return args.Get(0).(models.TelegramChat), args.Error(1)
}

func (m *ChatRepositoryMock) UpsertMembership(ctx context.Context, upd models.ChatMembershipUpdate) (models.TelegramChat, error) {
	args := m.Called(ctx, upd)
	return args.Get(0).(models.TelegramChat), args.Error(1)
}

func (m *ChatRepositoryMock) BindProject(ctx context.Context, tgChatID int64, projectID string) (bool, error) {
	args := m.Called(ctx, tgChatID, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) GetByTgID(ctx context.Context, tgChatID int64) (models.TelegramChat, error) {
	args := m.Called(ctx, tgChatID)
	return args.Get(0).(models.TelegramChat), args.Error(1)
}

func (m *ChatRepositoryMock) ListByProject(ctx context.Context, projectID string) ([]models.TelegramChat, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TelegramChat), args.Error(1)
}

type AccessRepositoryMock struct {
	mock.Mock
}

func (m *AccessRepositoryMock) HasAccess(ctx context.Context, userID int64, tgChatID int64) (bool, error) {
	args := m.Called(ctx, userID, tgChatID)
	return args.Bool(0), args.Error(1)
}

type ProjectRepositoryMock struct {
	mock.Mock
}

func (m *ProjectRepositoryMock) HasManageRights(ctx context.Context, projectID string, userID int64) (bool, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Bool(0), args.Error(1)
}

type TelegramClientMock struct {
	mock.Mock
}

func (m *TelegramClientMock) BotID() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *TelegramClientMock) ChatFlags(chatID int64) telegram.ChatFlags {
	args := m.Called(chatID)
	return args.Get(0).(telegram.ChatFlags)
}

func (m *TelegramClientMock) SendMessage(chatID int64, text string) error {
	args := m.Called(chatID, text)
	return args.Error(0)
}

type BridgeMock struct {
	mock.Mock
}

func (m *BridgeMock) Publish(ctx context.Context, key string, event models.LinkEvent) error {
	args := m.Called(ctx, key, event)
	return args.Error(0)
}

func (m *BridgeMock) Subscribe(ctx context.Context, key string) (bridge.Subscription, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(bridge.Subscription), args.Error(1)
}

func (m *BridgeMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type ValidatorMock struct {
	mock.Mock
}

func (m *ValidatorMock) ValidateToken(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}
