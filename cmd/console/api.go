package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/microcom/cyberquest/internal/handlers"
)

type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) healthy() bool {
	resp, err := c.http.Get(c.baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *apiClient) start(userID, playerName string) (*handlers.TurnResponse, error) {
	return c.postTurn("/v1/game/start", handlers.StartRequest{
		UserID:     userID,
		PlayerName: playerName,
	})
}

func (c *apiClient) answer(userID, itemID, optionID string) (*handlers.TurnResponse, error) {
	return c.postTurn("/v1/game/answer", handlers.AnswerRequest{
		UserID:   userID,
		ItemID:   itemID,
		OptionID: optionID,
	})
}

func (c *apiClient) advance(userID, itemID string) (*handlers.TurnResponse, error) {
	return c.postTurn("/v1/game/advance", handlers.AdvanceRequest{
		UserID: userID,
		ItemID: itemID,
	})
}

func (c *apiClient) postTurn(path string, payload any) (*handlers.TurnResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
		}
		return nil, fmt.Errorf("%s", errorResp.Error)
	}

	var turn handlers.TurnResponse
	if err := json.Unmarshal(data, &turn); err != nil {
		return nil, fmt.Errorf("failed to parse turn response: %w", err)
	}
	return &turn, nil
}
