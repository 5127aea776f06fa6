package plaid

import (
	"encoding/json"
	"fmt"
)

// state is the auxiliary data blob persisted per account. It is opaque
// to the core; only this provider (de)serializes it.
type state struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

func decodeState(raw []byte) (*state, error) {
	var s state
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decodeState: %w", err)
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("decodeState: missing access token")
	}
	return &s, nil
}

func (s *state) encode() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return raw, nil
}
