package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	access, jti, exp, err := p.IssueAccess("u1", "o1", RoleManager)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || jti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	uid, oid, role, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if uid != "u1" || oid != "o1" || role != RoleManager {
		t.Errorf("ValidateAccess: got userID=%q orgID=%q role=%q", uid, oid, role)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, _, _, err = p.ValidateAccess("invalid-token")
	if err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_WrongIssuerRejected(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	issuerA := NewTokenProvider(signer, pub, "issuer-a", "aud", time.Minute)
	issuerB := NewTokenProvider(signer, pub, "issuer-b", "aud", time.Minute)

	access, _, _, err := issuerA.IssueAccess("u1", "o1", RoleEmployee)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, _, err := issuerB.ValidateAccess(access); err != ErrInvalidToken {
		t.Errorf("cross-issuer token accepted: %v", err)
	}
}

func TestTokenProvider_ValidationOnlyCannotIssue(t *testing.T) {
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(nil, pub, "test-issuer", "test-audience", time.Minute)
	if _, _, _, err := p.IssueAccess("u1", "o1", RoleEmployee); err != ErrInvalidToken {
		t.Errorf("IssueAccess without private key: want ErrInvalidToken, got %v", err)
	}
}
