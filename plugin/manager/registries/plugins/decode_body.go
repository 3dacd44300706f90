package plugins

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// DecodeJSONRequestBody decodes the request's body into a fresh T.
func DecodeJSONRequestBody[T any](request *http.Request) (*T, error) {
	pRequest := new(T)
	if err := json.NewDecoder(request.Body).Decode(pRequest); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return pRequest, nil
}
