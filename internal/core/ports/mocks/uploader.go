package mocks

import (
	"context"

	"github.com/hoanghieutb97/server-downfilein/internal/core/domain"
	"github.com/hoanghieutb97/server-downfilein/internal/core/ports"
)

// MockUploader is a mock implementation of Uploader for testing
type MockUploader struct {
	UploadFunc func(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error)
}

// NewMockUploader creates a new mock uploader
func NewMockUploader() *MockUploader {
	return &MockUploader{}
}

// Upload delivers a local artifact to the mock backend
func (m *MockUploader) Upload(ctx context.Context, localPath string, name string, destHint string) (*domain.UploadResult, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, localPath, name, destHint)
	}
	return &domain.UploadResult{RemoteID: "mock-id", Name: name}, nil
}

var _ ports.Uploader = (*MockUploader)(nil)

// MockProgressUploader is a mock implementation of ProgressUploader for testing
type MockProgressUploader struct {
	MockUploader
	UploadWithProgressFunc func(ctx context.Context, localPath string, name string, destHint string, onProgress ports.ProgressFunc) (*domain.UploadResult, error)
}

// NewMockProgressUploader creates a new mock progress uploader
func NewMockProgressUploader() *MockProgressUploader {
	return &MockProgressUploader{}
}

// UploadWithProgress delivers a local artifact, reporting byte progress
func (m *MockProgressUploader) UploadWithProgress(ctx context.Context, localPath string, name string, destHint string, onProgress ports.ProgressFunc) (*domain.UploadResult, error) {
	if m.UploadWithProgressFunc != nil {
		return m.UploadWithProgressFunc(ctx, localPath, name, destHint, onProgress)
	}
	return m.Upload(ctx, localPath, name, destHint)
}

var _ ports.ProgressUploader = (*MockProgressUploader)(nil)

// MockDelegateSender is a mock implementation of DelegateSender for testing
type MockDelegateSender struct {
	SendFunc func(ctx context.Context, localPath string) error
}

// NewMockDelegateSender creates a new mock delegate sender
func NewMockDelegateSender() *MockDelegateSender {
	return &MockDelegateSender{}
}

// Send hands a finished artifact to the mock delegate
func (m *MockDelegateSender) Send(ctx context.Context, localPath string) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, localPath)
	}
	return nil
}

var _ ports.DelegateSender = (*MockDelegateSender)(nil)

// MockChatSender is a mock implementation of ChatSender for testing
type MockChatSender struct {
	SendToChatFunc func(ctx context.Context, localPath string, name string, chatID string) (*domain.ChatMessageRef, error)
}

// NewMockChatSender creates a new mock chat sender
func NewMockChatSender() *MockChatSender {
	return &MockChatSender{}
}

// SendToChat posts a local artifact into the mock chat
func (m *MockChatSender) SendToChat(ctx context.Context, localPath string, name string, chatID string) (*domain.ChatMessageRef, error) {
	if m.SendToChatFunc != nil {
		return m.SendToChatFunc(ctx, localPath, name, chatID)
	}
	return &domain.ChatMessageRef{MessageID: "mock-message", ChatID: chatID}, nil
}

var _ ports.ChatSender = (*MockChatSender)(nil)
