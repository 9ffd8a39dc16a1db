package types

import (
	"errors"
	"testing"
	"time"
)

func floatPtr(f float64) *float64 { return &f }

func TestEndpointValidate(t *testing.T) {
	tests := []struct {
		name    string
		ep      Endpoint
		wantErr bool
	}{
		{
			name: "valid",
			ep: Endpoint{ID: "list-users", Method: MethodGet, Path: "/api/v1/users", Parameters: []Parameter{
				{Name: "page", Type: ParamNumber},
				{Name: "limit", Type: ParamNumber},
			}},
		},
		{
			name:    "missing id",
			ep:      Endpoint{Method: MethodGet, Path: "/x"},
			wantErr: true,
		},
		{
			name:    "bad method",
			ep:      Endpoint{ID: "x", Method: "TRACE", Path: "/x"},
			wantErr: true,
		},
		{
			name:    "relative path",
			ep:      Endpoint{ID: "x", Method: MethodGet, Path: "x"},
			wantErr: true,
		},
		{
			name: "duplicate parameter",
			ep: Endpoint{ID: "x", Method: MethodGet, Path: "/x", Parameters: []Parameter{
				{Name: "page", Type: ParamNumber},
				{Name: "page", Type: ParamString},
			}},
			wantErr: true,
		},
		{
			name: "inverted bounds",
			ep: Endpoint{ID: "x", Method: MethodGet, Path: "/x", Parameters: []Parameter{
				{Name: "page", Type: ParamNumber, Minimum: floatPtr(10), Maximum: floatPtr(1)},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ep.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEndpoint) {
				t.Errorf("Validate() error = %v, want ErrInvalidEndpoint", err)
			}
		})
	}
}

func TestParameterLocation(t *testing.T) {
	p := Parameter{Name: "q", Type: ParamString}
	if got := p.Location(MethodGet); got != InQuery {
		t.Errorf("Location(GET) = %q, want %q", got, InQuery)
	}
	if got := p.Location(MethodPost); got != InBody {
		t.Errorf("Location(POST) = %q, want %q", got, InBody)
	}
	p.In = InPath
	if got := p.Location(MethodPost); got != InPath {
		t.Errorf("Location(POST) with explicit in = %q, want %q", got, InPath)
	}
}

func TestStatusCodeInNormalizes(t *testing.T) {
	a := StatusCodeIn(400, 200, 400)
	if len(a.StatusSet) != 2 || a.StatusSet[0] != 200 || a.StatusSet[1] != 400 {
		t.Errorf("StatusCodeIn() set = %v, want [200 400]", a.StatusSet)
	}
	if got := a.String(); got != "status in {200,400}" {
		t.Errorf("String() = %q", got)
	}
}

func TestWhenStatusGuard(t *testing.T) {
	a := BodyExcludes("salt")
	guarded := a.WhenStatus(200)
	if a.OnStatus != 0 {
		t.Errorf("WhenStatus() modified the receiver")
	}
	if got := guarded.String(); got != `body excludes "salt" (on 200)` {
		t.Errorf("String() = %q", got)
	}
}

func TestVerdictClone(t *testing.T) {
	now := time.Now()
	v := EndpointVerdict{EndpointID: "e", Status: VerdictSuccess, LastTestedAt: &now, Outcomes: []Outcome{{TestCaseID: "a", Passed: true}}}
	c := v.Clone()
	c.Outcomes[0].Passed = false
	*c.LastTestedAt = now.Add(time.Hour)

	if !v.Outcomes[0].Passed {
		t.Error("Clone() shares outcome storage")
	}
	if !v.LastTestedAt.Equal(now) {
		t.Error("Clone() shares timestamp storage")
	}
}
