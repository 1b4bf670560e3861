package main

import (
	"testing"
)

func TestIssueToken_Deterministic(t *testing.T) {
	issuer := NewTokenIssuer("secret")

	first, err := issuer.IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := issuer.IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first != second {
		t.Error("Expected the same token for the same node id and secret")
	}

	other := NewTokenIssuer("secret")
	restarted, err := other.IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if restarted != first {
		t.Error("Expected a fresh issuer with the same secret to re-derive the token")
	}
}

func TestIssueToken_VariesByNodeAndSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret")

	t1, err := issuer.IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	t2, err := issuer.IssueToken("n2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if t1 == t2 {
		t.Error("Expected distinct tokens for distinct node ids")
	}

	otherSecret, err := NewTokenIssuer("different").IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if otherSecret == t1 {
		t.Error("Expected distinct tokens under distinct secrets")
	}
}

func TestIssueToken_EmptyNodeID(t *testing.T) {
	issuer := NewTokenIssuer("secret")

	if _, err := issuer.IssueToken(""); err == nil {
		t.Error("Expected error for empty node id, got nil")
	}
}

func TestVerifyToken(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	token, err := issuer.IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !issuer.VerifyToken(token) {
		t.Error("Expected issued token to verify")
	}
	if issuer.VerifyToken("bogus") {
		t.Error("Expected unknown token to fail verification")
	}
	if issuer.VerifyToken("") {
		t.Error("Expected empty token to fail verification")
	}
}

func TestRevokeToken(t *testing.T) {
	issuer := NewTokenIssuer("secret")
	token, err := issuer.IssueToken("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	issuer.RevokeToken("n1")
	if issuer.VerifyToken(token) {
		t.Error("Expected revoked token to fail verification")
	}
}

func TestTokenFor_IssuesWhenMissing(t *testing.T) {
	issuer := NewTokenIssuer("secret")

	token, err := issuer.TokenFor("n1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !issuer.VerifyToken(token) {
		t.Error("Expected TokenFor to issue a verifiable token")
	}
}
