package security

import (
	"strings"
	"testing"
	"time"
)

func TestDownloadTokenRoundTrip(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, time.Minute, "secret")
	if err != nil {
		t.Fatalf("GenerateDownloadToken: %v", err)
	}

	claims, err := VerifyDownloadToken(token, "secret")
	if err != nil {
		t.Fatalf("VerifyDownloadToken: %v", err)
	}
	if claims.UserID != 42 || claims.ModelID != 7 {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestDownloadTokenRejectsTampering(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, time.Minute, "secret")
	if err != nil {
		t.Fatalf("GenerateDownloadToken: %v", err)
	}

	if _, err := VerifyDownloadToken(token, "other-secret"); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}

	parts := strings.SplitN(token, ".", 2)
	forged := parts[0] + "x." + parts[1]
	if _, err := VerifyDownloadToken(forged, "secret"); err == nil {
		t.Fatalf("expected tampered payload to fail")
	}

	if _, err := VerifyDownloadToken("not-a-token", "secret"); err == nil {
		t.Fatalf("expected malformed token to fail")
	}
}

func TestDownloadTokenExpiry(t *testing.T) {
	token, err := GenerateDownloadToken(42, 7, -time.Minute, "secret")
	if err != nil {
		t.Fatalf("GenerateDownloadToken: %v", err)
	}
	if _, err := VerifyDownloadToken(token, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}
