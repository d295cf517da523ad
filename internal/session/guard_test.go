package session

import (
	"testing"

	"foodsnap/internal/domain"
)

func TestDecide(t *testing.T) {
	member := &domain.User{ID: "u1", Plan: domain.PlanPro}
	admin := &domain.User{ID: "u2", IsAdmin: true}

	cases := []struct {
		name  string
		state State
		req   Requirement
		want  Decision
	}{
		{"loading public", State{IsLoading: true}, Requirement{}, DecisionPending},
		{"loading never redirects", State{IsLoading: true}, Requirement{RequiresAuth: true, RequiresAdmin: true}, DecisionPending},
		{"loading with user still pending", State{IsLoading: true, User: member}, Requirement{RequiresAuth: true}, DecisionPending},
		{"anonymous public route", State{}, Requirement{}, DecisionAllow},
		{"anonymous auth route", State{}, Requirement{RequiresAuth: true}, DecisionRedirectLanding},
		{"anonymous admin route", State{}, Requirement{RequiresAdmin: true}, DecisionRedirectDashboard},
		{"member auth route", State{User: member}, Requirement{RequiresAuth: true}, DecisionAllow},
		{"member admin route", State{User: member}, Requirement{RequiresAuth: true, RequiresAdmin: true}, DecisionRedirectDashboard},
		{"admin admin route", State{User: admin}, Requirement{RequiresAuth: true, RequiresAdmin: true}, DecisionAllow},
		{"incomplete profile still allowed", State{User: member, ProfileIncomplete: true}, Requirement{RequiresAuth: true}, DecisionAllow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.state, tc.req); got != tc.want {
				t.Fatalf("Decide(%+v, %+v) = %v, want %v", tc.state, tc.req, got, tc.want)
			}
		})
	}
}

func TestDecisionString(t *testing.T) {
	if DecisionPending.String() != "pending" || DecisionAllow.String() != "allow" {
		t.Fatalf("unexpected decision strings")
	}
	if DecisionRedirectLanding.String() != "redirect_landing" {
		t.Fatalf("unexpected redirect landing string")
	}
	if DecisionRedirectDashboard.String() != "redirect_dashboard" {
		t.Fatalf("unexpected redirect dashboard string")
	}
}
