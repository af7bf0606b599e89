package idpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// decodeJSON reads a provider response, returning a classified *APIError for
// non-expected statuses and decoding the body into target otherwise. A nil
// target skips decoding (used for empty bodies).
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("idpclient: read response body: %w", err)
	}

	if resp.StatusCode != expectedStatus {
		return parseAPIError(resp.StatusCode, body)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("idpclient: decode response: %w", err)
	}
	return nil
}
