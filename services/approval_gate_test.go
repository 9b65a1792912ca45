package services

import "testing"

func TestResolveRoute(t *testing.T) {
	tests := []struct {
		name string
		in   GateInput
		want Route
	}{
		{
			name: "manual override wins over everything",
			in: GateInput{
				ManualOverride:         true,
				GroupRequiresApproval:  true,
				ADApprovalRequired:     true,
				Rev:                    "00",
				ConfirmationConfigured: true,
			},
			want: RouteManual,
		},
		{
			name: "group approval beats ad approval",
			in: GateInput{
				GroupRequiresApproval:  true,
				ADApprovalRequired:     true,
				Rev:                    "00",
				ConfirmationConfigured: true,
			},
			want: RouteGroupApproval,
		},
		{
			name: "ad approval",
			in: GateInput{
				ADApprovalRequired:     true,
				Rev:                    "01",
				ConfirmationConfigured: true,
			},
			want: RouteADApproval,
		},
		{
			name: "revision dropping a co-author needs reconfirmation",
			in: GateInput{
				Rev:                    "03",
				PriorAuthors:           []string{"a@example.org", "b@example.org"},
				SubmittedAuthors:       []string{"a@example.org"},
				ConfirmationConfigured: true,
			},
			want: RouteAuthorApproval,
		},
		{
			name: "revision keeping all prior authors self-confirms",
			in: GateInput{
				Rev:                    "03",
				PriorAuthors:           []string{"a@example.org", "b@example.org"},
				SubmittedAuthors:       []string{"B@Example.org", "a@example.org", "c@example.org"},
				ConfirmationConfigured: true,
			},
			want: RouteAuth,
		},
		{
			name: "first version with a single prior author never reconfirms",
			in: GateInput{
				Rev:                    "02",
				PriorAuthors:           []string{"a@example.org"},
				SubmittedAuthors:       []string{"b@example.org"},
				ConfirmationConfigured: true,
			},
			want: RouteAuth,
		},
		{
			name: "fresh draft with confirmation configured",
			in: GateInput{
				Rev:                    "00",
				ConfirmationConfigured: true,
			},
			want: RouteAuth,
		},
		{
			name: "no confirmation configured posts directly",
			in: GateInput{
				Rev: "00",
			},
			want: RoutePost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveRoute(tt.in)
			if err != nil {
				t.Fatalf("ResolveRoute: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveRoute = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveRouteRejectsBadRevision(t *testing.T) {
	if _, err := ResolveRoute(GateInput{Rev: "1"}); err == nil {
		t.Fatal("expected an error for a one-digit revision")
	}
	if _, err := ResolveRoute(GateInput{Rev: ""}); err == nil {
		t.Fatal("expected an error for an empty revision")
	}
}
