package universe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/trendhealth/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// id 는 파일 키로 사용됨
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks all required constraints
func Validate(f *File) error {
	if len(f.Universes) == 0 {
		return ValidationError{"universes", "at least one universe is required"}
	}

	ids := make(map[string]bool, len(f.Universes))
	for i, u := range f.Universes {
		field := fmt.Sprintf("universes[%d]", i)

		if !idPattern.MatchString(u.ID) || strings.Contains(u.ID, "__") {
			return ValidationError{field + ".id", fmt.Sprintf("invalid id %q", u.ID)}
		}
		if ids[u.ID] {
			return ValidationError{field + ".id", fmt.Sprintf("duplicate id %q", u.ID)}
		}
		ids[u.ID] = true

		switch u.DenominatorMode {
		case contracts.DenominatorTotal, contracts.DenominatorEligible:
		default:
			return ValidationError{field + ".denominator_mode", fmt.Sprintf("unknown mode %q", u.DenominatorMode)}
		}
		if u.MinEligibleCount < 0 {
			return ValidationError{field + ".min_eligible_count", "must be >= 0"}
		}
		if u.MinKnownPct < 0 || u.MinKnownPct > 1 {
			return ValidationError{field + ".min_known_pct", "must be in [0, 1]"}
		}

		if len(u.Items) == 0 {
			return ValidationError{field + ".items", "must not be empty"}
		}
		tickers := make(map[string]bool, len(u.Items))
		for j, item := range u.Items {
			if strings.TrimSpace(item.Ticker) == "" {
				return ValidationError{fmt.Sprintf("%s.items[%d].ticker", field, j), "required"}
			}
			if tickers[item.Ticker] {
				return ValidationError{fmt.Sprintf("%s.items[%d].ticker", field, j), fmt.Sprintf("duplicate ticker %q", item.Ticker)}
			}
			tickers[item.Ticker] = true
		}
	}

	return nil
}
