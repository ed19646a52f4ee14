package api

import (
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := checkPassword(hash, "hunter22"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := checkPassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := generateToken("user-1", "secret", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	userID, err := parseToken(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("user id = %q", userID)
	}

	if _, err := parseToken(token, "other-secret"); err == nil {
		t.Error("token accepted with wrong secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := generateToken("user-1", "secret", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := parseToken(token, "secret"); err == nil {
		t.Error("expired token accepted")
	}
}
