package hostauth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/halcyonlabs/trustplane/internal/hostauth"
	"github.com/halcyonlabs/trustplane/internal/protocol"
)

const caller = protocol.Identity("acct:alice")

func TestIssueVerifyRoundTrip(t *testing.T) {
	issuer := hostauth.NewIssuer([]byte("test-secret"), "https://trustplane.local", time.Minute)

	token, err := issuer.Issue(caller)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token does not look like a JWT: %q", token)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != caller {
		t.Errorf("caller = %q, want %q", got, caller)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := hostauth.NewIssuer([]byte("secret-a"), "https://trustplane.local", time.Minute)
	other := hostauth.NewIssuer([]byte("secret-b"), "https://trustplane.local", time.Minute)

	token, err := issuer.Issue(caller)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatal("token verified under a different secret")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issuer := hostauth.NewIssuer([]byte("secret"), "https://a.local", time.Minute)
	other := hostauth.NewIssuer([]byte("secret"), "https://b.local", time.Minute)

	token, err := issuer.Issue(caller)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Fatal("token verified under a different issuer")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := hostauth.NewIssuer([]byte("secret"), "https://trustplane.local", -time.Minute)

	token, err := issuer.Issue(caller)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := hostauth.NewIssuer([]byte("secret"), "https://trustplane.local", time.Minute)

	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := issuer.Verify(tok); err == nil {
			t.Errorf("garbage token %q verified", tok)
		}
	}
}

func TestDefaultTTL(t *testing.T) {
	issuer := hostauth.NewIssuer([]byte("secret"), "https://trustplane.local", 0)
	if issuer.TTL() != time.Hour {
		t.Errorf("default ttl = %v, want 1h", issuer.TTL())
	}
}
