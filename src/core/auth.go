package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"sync"
)

// NodeTokenHeader carries a participant's identity token on API calls
const NodeTokenHeader = "X-Node-Token"

// TokenIssuer issues deterministic identity tokens for registered nodes.
// Tokens are HMAC-SHA256 digests of the node id under a shared secret, so
// a restarted process re-derives the same token for the same node.
type TokenIssuer struct {
	mu     sync.RWMutex
	secret string
	tokens map[string]string
}

// NewTokenIssuer creates an issuer with the given secret
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{
		secret: secret,
		tokens: make(map[string]string),
	}
}

// IssueToken issues and stores a token for a node id
func (ti *TokenIssuer) IssueToken(nodeID string) (string, error) {
	if nodeID == "" {
		return "", &ValidationError{Field: "node_id", Reason: "node id cannot be empty"}
	}

	mac := hmac.New(sha256.New, []byte(ti.secret))
	mac.Write([]byte(nodeID))
	token := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	ti.mu.Lock()
	ti.tokens[nodeID] = token
	ti.mu.Unlock()
	return token, nil
}

// TokenFor returns the stored token for a node, issuing one if missing
func (ti *TokenIssuer) TokenFor(nodeID string) (string, error) {
	ti.mu.RLock()
	token, exists := ti.tokens[nodeID]
	ti.mu.RUnlock()
	if exists {
		return token, nil
	}
	return ti.IssueToken(nodeID)
}

// VerifyToken reports whether the token matches any issued token.
// Comparison is constant-time to prevent timing attacks.
func (ti *TokenIssuer) VerifyToken(token string) bool {
	if token == "" {
		return false
	}

	ti.mu.RLock()
	defer ti.mu.RUnlock()

	for _, issued := range ti.tokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(issued)) == 1 {
			return true
		}
	}
	return false
}

// RevokeToken withdraws a previously issued token
func (ti *TokenIssuer) RevokeToken(nodeID string) {
	ti.mu.Lock()
	delete(ti.tokens, nodeID)
	ti.mu.Unlock()
}
