package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"foodsnap/internal/domain"
)

func TestAccessService_FreeUserSummary(t *testing.T) {
	meals := &mealRepoStub{countSince: 2}
	analysis := newTestAnalysisService(nil, meals, &settingsRepoStub{})
	svc := NewAccessService(zap.NewNop(), meals, analysis)

	summary, err := svc.Summary(context.Background(), freeUser())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.FreeUsed != 2 || summary.FreeRemaining != 3 {
		t.Fatalf("unexpected usage: %+v", summary)
	}
	if summary.PlanActive || summary.CanUsePaid {
		t.Fatalf("free plan must not be active: %+v", summary)
	}
	if summary.PlanCode != domain.PlanFree {
		t.Fatalf("unexpected plan code: %s", summary.PlanCode)
	}
}

func TestAccessService_PaidPlanSummary(t *testing.T) {
	meals := &mealRepoStub{countSince: 9}
	analysis := newTestAnalysisService(nil, meals, &settingsRepoStub{})
	svc := NewAccessService(zap.NewNop(), meals, analysis)

	until := time.Now().UTC().Add(10 * 24 * time.Hour)
	user := proUser()
	user.PlanValidUntil = &until

	summary, err := svc.Summary(context.Background(), user)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.PlanActive || !summary.CanUsePaid {
		t.Fatalf("expected active paid plan: %+v", summary)
	}
	if summary.FreeRemaining != 0 {
		t.Fatalf("free remaining must floor at zero, got %d", summary.FreeRemaining)
	}
}

func TestAccessService_ExpiredPlanCannotUsePaid(t *testing.T) {
	meals := &mealRepoStub{}
	analysis := newTestAnalysisService(nil, meals, &settingsRepoStub{})
	svc := NewAccessService(zap.NewNop(), meals, analysis)

	until := time.Now().UTC().Add(-24 * time.Hour)
	user := proUser()
	user.PlanValidUntil = &until

	summary, err := svc.Summary(context.Background(), user)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.PlanActive {
		t.Fatalf("plan code is still paid: %+v", summary)
	}
	if summary.CanUsePaid {
		t.Fatalf("expired validity must block paid usage: %+v", summary)
	}
}
