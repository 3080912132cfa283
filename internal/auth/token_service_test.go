package auth

import (
	"testing"
	"time"
)

func newTestTokenService() *TokenService {
	return NewTokenService(TokenServiceConfig{
		AccessSecret:       "test-access-secret-key-32-chars!",
		RefreshSecret:      "test-refresh-secret-key-32-char!",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "test-issuer",
	})
}

func TestTokenPairRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	pair, err := svc.GenerateTokenPair("user-1", "staff@hotel.test", "hotel-1", "staff")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Errorf("ExpiresIn = %d", pair.ExpiresIn)
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID() != "user-1" {
		t.Errorf("UserID = %q", claims.UserID())
	}
	if claims.HotelID != "hotel-1" {
		t.Errorf("HotelID = %q", claims.HotelID)
	}
	if claims.Role != "staff" {
		t.Errorf("Role = %q", claims.Role)
	}

	refreshClaims, err := svc.ValidateRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefreshToken failed: %v", err)
	}
	if refreshClaims.UserID() != "user-1" {
		t.Errorf("refresh UserID = %q", refreshClaims.UserID())
	}
}

// A refresh token must never pass access-token validation and vice versa,
// even though both are valid JWTs.
func TestTokenTypeConfusionRejected(t *testing.T) {
	svc := newTestTokenService()

	pair, err := svc.GenerateTokenPair("user-1", "staff@hotel.test", "hotel-1", "staff")
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if _, err := svc.ValidateAccessToken(pair.RefreshToken); err == nil {
		t.Error("refresh token must not validate as access token")
	}
	if _, err := svc.ValidateRefreshToken(pair.AccessToken); err == nil {
		t.Error("access token must not validate as refresh token")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	svc := newTestTokenService()
	other := NewTokenService(TokenServiceConfig{
		AccessSecret:       "another-secret-entirely-32-chars",
		RefreshSecret:      "another-refresh-secret-32-chars!",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "test-issuer",
	})

	token, err := svc.GenerateAccessToken("user-1", "staff@hotel.test", "hotel-1", "staff")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(TokenServiceConfig{
		AccessSecret:       "test-access-secret-key-32-chars!",
		RefreshSecret:      "test-refresh-secret-key-32-char!",
		AccessTokenExpiry:  -time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Issuer:             "test-issuer",
	})

	token, err := svc.GenerateAccessToken("user-1", "staff@hotel.test", "hotel-1", "staff")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := svc.ValidateAccessToken(token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := newTestTokenService()
	if _, err := svc.ValidateAccessToken("not.a.jwt"); err == nil {
		t.Error("garbage input must be rejected")
	}
}

func TestHashRefreshTokenIsStable(t *testing.T) {
	svc := newTestTokenService()

	a := svc.HashRefreshToken("some-token")
	b := svc.HashRefreshToken("some-token")
	c := svc.HashRefreshToken("other-token")

	if a != b {
		t.Error("same input must hash identically")
	}
	if a == c {
		t.Error("different inputs must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
