package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer derives cache keys for API routes.
//
// Contract:
// - Determinism: equal params produce equal keys regardless of map order.
type Keyer interface {
	Key(route string, params any) (string, error)
}

// DefaultKeyer formats keys as "api:<route>" or, with params,
// "api:<route>:<first 16 hex chars of SHA-256(JSON(params))>".
type DefaultKeyer struct{}

// Key derives the key. encoding/json sorts map keys, which makes the hash
// stable.
func (DefaultKeyer) Key(route string, params any) (string, error) {
	if params == nil {
		return "api:" + route, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("cache: encode params: %w", err)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("api:%s:%s", route, hex.EncodeToString(sum[:8])), nil
}

var _ Keyer = DefaultKeyer{}
