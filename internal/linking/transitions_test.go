package linking

import (
	"testing"

	"chatlink-service/internal/models"
)

func TestApplyMembership(t *testing.T) {
	cases := []struct {
		name      string
		status    string
		canInvite bool
		want      Decision
	}{
		{"admin with invite rights", "administrator", true, Decision{Status: models.ChatActive, Linkable: true}},
		{"admin without invite rights", "administrator", false, Decision{Status: models.ChatPendingRights}},
		{"plain member", "member", false, Decision{Status: models.ChatPendingRights}},
		{"restricted member", "restricted", true, Decision{Status: models.ChatPendingRights}},
		{"left", "left", false, Decision{Status: models.ChatInactive}},
		{"kicked", "kicked", false, Decision{Status: models.ChatInactive}},
		{"creator is not handled", "creator", true, Decision{Ignore: true}},
		{"garbage status", "whatever", true, Decision{Ignore: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyMembership(tc.status, tc.canInvite)
			if got != tc.want {
				t.Fatalf("ApplyMembership(%q, %v) = %+v, want %+v", tc.status, tc.canInvite, got, tc.want)
			}
		})
	}
}
