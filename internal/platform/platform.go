// Package platform lists the broker-export platforms trades can be imported
// from and which prop firms accept them.
package platform

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// ProjectX is the ProjectX / TopstepX trade export.
	ProjectX = "projectx"
	// Tradovate is the Tradovate "Performance" report export.
	Tradovate = "tradovate"
)

// compatibility maps a normalized broker firm to the export platforms its
// accounts are traded on.
var compatibility = map[string][]string{
	"topstep":          {ProjectX},
	"alphafutures":     {ProjectX},
	"apex":             {Tradovate},
	"bulenox":          {Tradovate},
	"takeprofittrader": {Tradovate, ProjectX},
	"tradeify":         {Tradovate, ProjectX},
	"myfundedfutures":  {Tradovate, ProjectX},
	"lucidtrading":     {Tradovate, ProjectX},
}

// IncompatiblePlatformError is returned when an account's firm does not
// trade on the platform an import claims to come from.
type IncompatiblePlatformError struct {
	BrokerFirm string
	Platform   string
}

func (e *IncompatiblePlatformError) Error() string {
	return fmt.Sprintf("platform %q is not supported for broker firm %q", e.Platform, e.BrokerFirm)
}

// Known reports whether id is a supported platform.
func Known(id string) bool {
	switch Normalize(id) {
	case ProjectX, Tradovate:
		return true
	}
	return false
}

// Normalize lower-cases and trims a platform or firm identifier.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
	return s
}

// IsCompatible reports whether accounts of brokerFirm can import exports
// from platform.
func IsCompatible(brokerFirm, platform string) bool {
	p := Normalize(platform)
	for _, allowed := range compatibility[Normalize(brokerFirm)] {
		if allowed == p {
			return true
		}
	}
	return false
}

// CheckCompatible returns an *IncompatiblePlatformError when the pairing is
// rejected.
func CheckCompatible(brokerFirm, platform string) error {
	if !IsCompatible(brokerFirm, platform) {
		return &IncompatiblePlatformError{BrokerFirm: brokerFirm, Platform: platform}
	}
	return nil
}

// PlatformsFor lists the platforms accepted for brokerFirm, sorted.
func PlatformsFor(brokerFirm string) []string {
	out := append([]string(nil), compatibility[Normalize(brokerFirm)]...)
	sort.Strings(out)
	return out
}
