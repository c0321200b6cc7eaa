package platform

import (
	"errors"
	"testing"
)

func TestIsCompatible(t *testing.T) {
	cases := []struct {
		firm     string
		platform string
		want     bool
	}{
		{"Topstep", "projectx", true},
		{"topstep", "tradovate", false},
		{"Apex", "Tradovate", true},
		{"My Funded Futures", "ProjectX", true},
		{"take-profit-trader", "tradovate", true},
		{"unknown firm", "projectx", false},
		{"apex", "rithmic", false},
	}
	for _, tc := range cases {
		if got := IsCompatible(tc.firm, tc.platform); got != tc.want {
			t.Fatalf("IsCompatible(%q, %q)=%v, want %v", tc.firm, tc.platform, got, tc.want)
		}
	}
}

func TestCheckCompatible_ErrorType(t *testing.T) {
	err := CheckCompatible("topstep", "tradovate")
	var ipe *IncompatiblePlatformError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected IncompatiblePlatformError, got %v", err)
	}
	if ipe.BrokerFirm != "topstep" || ipe.Platform != "tradovate" {
		t.Fatalf("unexpected fields: %+v", ipe)
	}
	if err := CheckCompatible("apex", "tradovate"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKnownAndPlatformsFor(t *testing.T) {
	if !Known(" ProjectX ") || !Known("tradovate") || Known("ninjatrader") {
		t.Fatalf("Known returned unexpected results")
	}
	got := PlatformsFor("tradeify")
	if len(got) != 2 || got[0] != ProjectX || got[1] != Tradovate {
		t.Fatalf("PlatformsFor(tradeify)=%v", got)
	}
}
