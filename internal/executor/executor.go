// Package executor es la única costura entre el bridge y el proceso host
// privilegiado que ejecuta código e importa assets en la escena.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"scene-bridge/internal/domain"
)

// HostExecutor abstrae el proceso host. Ambas llamadas bloquean hasta el
// timeout configurado; un timeout se reporta con TimedOut=true para que el
// caller distinga "host colgado" de "el código lanzó un error".
type HostExecutor interface {
	Run(ctx context.Context, code string) domain.ExecutionResult
	ImportAsset(ctx context.Context, path string) domain.ExecutionResult
}

// HTTPExecutor habla con el endpoint local del host.
type HTTPExecutor struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *zap.Logger
}

func NewHTTPExecutor(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPExecutor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		// El timeout por llamada lo maneja el context; el del cliente es
		// solo una red de seguridad más holgada.
		client: &http.Client{Timeout: timeout + 5*time.Second},
		logger: logger,
	}
}

func (e *HTTPExecutor) Run(ctx context.Context, code string) domain.ExecutionResult {
	return e.post(ctx, "/execute", map[string]string{"code": code})
}

func (e *HTTPExecutor) ImportAsset(ctx context.Context, path string) domain.ExecutionResult {
	return e.post(ctx, "/import", map[string]string{"path": path})
}

func (e *HTTPExecutor) post(ctx context.Context, route string, payload map[string]string) domain.ExecutionResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ExecutionResult{Error: fmt.Sprintf("marshal request: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+route, bytes.NewReader(body))
	if err != nil {
		return domain.ExecutionResult{Error: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			e.logger.Warn("host executor timed out", zap.String("route", route), zap.Duration("timeout", e.timeout))
			return domain.ExecutionResult{
				TimedOut: true,
				Error:    fmt.Sprintf("host executor timed out after %s", e.timeout),
			}
		}
		return domain.ExecutionResult{Error: fmt.Sprintf("host executor unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ExecutionResult{Error: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode >= 400 {
		return domain.ExecutionResult{Error: fmt.Sprintf("host executor http error: status=%d", resp.StatusCode)}
	}

	var result domain.ExecutionResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.ExecutionResult{Error: fmt.Sprintf("unmarshal response: %v", err)}
	}
	return result
}
