package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNewErrorResponse(t *testing.T) {
	parseErr := fmt.Errorf("parse projectx CSV: %w", errors.New(`line 4: invalid number "abc"`))

	cases := []struct {
		name        string
		message     string
		err         error
		wantDetails string
		wantError   string
	}{
		{name: "message only", message: "rate limit exceeded", wantError: "rate limit exceeded"},
		{
			name:        "wrapped error text is kept whole",
			message:     "invalid CSV",
			err:         parseErr,
			wantDetails: `parse projectx CSV: line 4: invalid number "abc"`,
			wantError:   `invalid CSV: parse projectx CSV: line 4: invalid number "abc"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := time.Now().UTC()
			e := NewErrorResponse(tc.message, tc.err)

			if e.Message != tc.message || e.ErrorDetails != tc.wantDetails {
				t.Fatalf("unexpected %+v", e)
			}
			if e.Error() != tc.wantError {
				t.Fatalf("Error()=%q want %q", e.Error(), tc.wantError)
			}
			if e.Timestamp.Location() != time.UTC || e.Timestamp.Before(before.Add(-time.Second)) {
				t.Fatalf("timestamp should be current UTC, got %v", e.Timestamp)
			}
		})
	}
}

func TestErrorResponse_JSONOmitsEmptyDetails(t *testing.T) {
	b, err := json.Marshal(NewErrorResponse("account not found", nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), `"error"`) {
		t.Fatalf("empty details should be omitted: %s", b)
	}

	b, err = json.Marshal(NewErrorResponse("internal", errors.New("boom")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"error":"boom"`) || !strings.Contains(string(b), `"timestamp":`) {
		t.Fatalf("unexpected body: %s", b)
	}
}

func TestErrorResponse_UsableAsError(t *testing.T) {
	var err error = NewErrorResponse("forbidden", nil)
	var er ErrorResponse
	if !errors.As(err, &er) || er.Message != "forbidden" {
		t.Fatalf("errors.As should recover the response, got %v", err)
	}
}
