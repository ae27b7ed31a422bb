package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// send performs one HTTP attempt for req and reads the whole body. The call is aborted when
// either the caller's context or the manager is done.
func (m *Manager) send(req *pendingRequest) (*http.Response, []byte, error) {
	ctx, cancel := context.WithCancel(req.ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	var body io.Reader
	if req.payload.body != nil {
		body = bytes.NewReader(req.payload.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.route.Method(), m.baseURL+req.route.Path(), body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("Authorization", m.authorization())
	httpReq.Header.Set("User-Agent", m.userAgent)
	if req.payload.contentType != "" {
		httpReq.Header.Set("Content-Type", req.payload.contentType)
	}
	if req.reason != "" {
		httpReq.Header.Set("X-Audit-Log-Reason", url.PathEscape(req.reason))
	}

	resp, err := m.doer.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, data, nil
}

// authorization prefixes bare bot tokens; tokens already carrying a scheme are sent as is
func (m *Manager) authorization() string {
	if strings.HasPrefix(m.token, "Bot ") || strings.HasPrefix(m.token, "Bearer ") {
		return m.token
	}
	return "Bot " + m.token
}
