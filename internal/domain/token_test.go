package domain_test

import (
	"testing"

	"github.com/gatherly/pushpipe/internal/domain"
)

func TestRegisterTokenRequest_Validate(t *testing.T) {
	valid := domain.RegisterTokenRequest{
		SessionID: "s-A",
		Platform:  domain.PlatformIOS,
		Token:     "ExponentPushToken[abc]",
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty session", func(t *testing.T) {
		r := valid
		r.SessionID = ""
		if err := r.Validate(); err != domain.ErrInvalidSession {
			t.Fatalf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("invalid platform", func(t *testing.T) {
		r := valid
		r.Platform = "blackberry"
		if err := r.Validate(); err != domain.ErrInvalidPlatform {
			t.Fatalf("expected ErrInvalidPlatform, got %v", err)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		r := valid
		r.Token = ""
		if err := r.Validate(); err != domain.ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestJobStatus_Terminal(t *testing.T) {
	cases := []struct {
		status domain.JobStatus
		want   bool
	}{
		{domain.StatusQueued, false},
		{domain.StatusSent, true},
		{domain.StatusSkipped, true},
		{domain.StatusPermanentFailure, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestJobType_IsValid(t *testing.T) {
	for _, typ := range []domain.JobType{domain.JobTypeMatch, domain.JobTypeMessage, domain.JobTypeGeneric} {
		if !typ.IsValid() {
			t.Errorf("expected %s to be valid", typ)
		}
	}
	if domain.JobType("poke").IsValid() {
		t.Error("expected unknown type to be invalid")
	}
}
