package executor

import (
	"context"

	"scene-bridge/internal/domain"
)

// MockExecutor permite tests sin un proceso host real.
type MockExecutor struct {
	RunResult    domain.ExecutionResult
	ImportResult domain.ExecutionResult
	RunCalls     int
	ImportCalls  int
	LastCode     string
	LastPath     string
}

func (m *MockExecutor) Run(ctx context.Context, code string) domain.ExecutionResult {
	m.RunCalls++
	m.LastCode = code
	return m.RunResult
}

func (m *MockExecutor) ImportAsset(ctx context.Context, path string) domain.ExecutionResult {
	m.ImportCalls++
	m.LastPath = path
	return m.ImportResult
}
