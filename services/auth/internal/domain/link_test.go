package domain_test

import (
	"errors"
	"testing"

	"github.com/miyomint/storefront/services/auth/internal/domain"
)

func TestParseLinkURLFragmentPair(t *testing.T) {
	creds := domain.ParseLinkURL("https://shop.example/verify#access_token=abc&refresh_token=def&type=signup")

	if !creds.HasTokenPair() {
		t.Fatalf("expected token pair, got %+v", creds)
	}
	if creds.AccessToken != "abc" || creds.RefreshToken != "def" {
		t.Errorf("unexpected tokens: %+v", creds)
	}
}

func TestParseLinkURLLoneAccessTokenDropped(t *testing.T) {
	creds := domain.ParseLinkURL("https://shop.example/verify#access_token=abc")

	if creds.HasTokenPair() {
		t.Error("lone access token must not count as a pair")
	}
	if !creds.Empty() {
		t.Errorf("expected empty credentials, got %+v", creds)
	}
}

func TestParseLinkURLCodeFallback(t *testing.T) {
	creds := domain.ParseLinkURL("https://shop.example/verify-email?code=xyz-123")

	if !creds.HasCode() {
		t.Fatalf("expected code, got %+v", creds)
	}
	if creds.Code != "xyz-123" {
		t.Errorf("unexpected code %q", creds.Code)
	}
}

func TestParseLinkURLFragmentWinsOverCode(t *testing.T) {
	creds := domain.ParseLinkURL("https://shop.example/verify?code=xyz#access_token=abc&refresh_token=def")

	if !creds.HasTokenPair() {
		t.Fatalf("fragment pair should win, got %+v", creds)
	}
	if creds.HasCode() {
		t.Error("code should be ignored when the fragment carries a pair")
	}
}

func TestParseLinkURLMalformed(t *testing.T) {
	for _, raw := range []string{"", "://not-a-url", "https://shop.example/verify", "https://shop.example/verify#type=signup"} {
		creds := domain.ParseLinkURL(raw)
		if !creds.Empty() {
			t.Errorf("ParseLinkURL(%q) = %+v, want empty", raw, creds)
		}
	}
}

func TestClassifyExchangeErrorExpired(t *testing.T) {
	for _, msg := range []string{"token is expired", "otp Expired", "link EXPIRED by provider"} {
		ae := domain.ClassifyExchangeError(errors.New(msg))
		if ae.Kind != domain.KindLinkExpired {
			t.Errorf("ClassifyExchangeError(%q).Kind = %s, want %s", msg, ae.Kind, domain.KindLinkExpired)
		}
	}
}

func TestClassifyExchangeErrorUnknown(t *testing.T) {
	ae := domain.ClassifyExchangeError(errors.New("signature is invalid"))
	if ae.Kind != domain.KindUnknown {
		t.Errorf("Kind = %s, want %s", ae.Kind, domain.KindUnknown)
	}
}

func TestClassifyExchangeErrorPassesThroughAuthError(t *testing.T) {
	orig := domain.NewAuthError(domain.KindLinkInvalid, "invalid or already used link")
	if got := domain.ClassifyExchangeError(orig); got != orig {
		t.Errorf("AuthError should pass through unchanged, got %+v", got)
	}
}

func TestKindOf(t *testing.T) {
	if got := domain.KindOf(domain.NewAuthError(domain.KindAlreadyExists, "x")); got != domain.KindAlreadyExists {
		t.Errorf("KindOf = %s, want %s", got, domain.KindAlreadyExists)
	}
	if got := domain.KindOf(errors.New("plain")); got != domain.KindUnknown {
		t.Errorf("KindOf(plain) = %s, want %s", got, domain.KindUnknown)
	}
}
