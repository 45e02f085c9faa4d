package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/legion-bot/internal/interfaces"
	"github.com/user/legion-bot/internal/types"
)

// spawnClient asks a running server to force a wild spawn, so the spawn
// goes through the one live coordinator
type spawnClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newSpawnClient(baseURL, token string) *spawnClient {
	return &spawnClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ForceSpawn posts to /admin/spawn. A 503 wraps ErrDestinationUnavailable.
func (c *spawnClient) ForceSpawn(ctx context.Context) (*types.SpawnResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/spawn", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(adminTokenHeader, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%s: %w", msg, interfaces.ErrDestinationUnavailable)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}

	var result types.SpawnResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode spawn result: %w", err)
	}
	return &result, nil
}
