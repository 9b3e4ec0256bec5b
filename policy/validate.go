package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaclearn/runbox/sandbox"
)

// importKeywords are the statement heads treated as import/include-style
// lines by the lexical scan.
var importKeywords = map[string]bool{
	"import":  true,
	"include": true,
	"from":    true,
}

// Validate is a pure gate: it checks the request against the policy in a
// fixed order, short-circuiting on the first failure, and mutates nothing
// on either outcome. Rejected requests are never counted toward rate
// limits; recording an attempt is the caller's accounting, done only after
// validation passes.
//
// On rejection the returned error chains through a *Violation; any other
// error reflects a rate-counter infrastructure failure.
func Validate(ctx context.Context, req sandbox.ExecutionRequest, pol Policy, caller CallerIdentity, rate RateCounterView) error {
	if !pol.LanguageAllowed(req.Language) {
		return &Violation{
			Kind:   KindUnsupportedLanguage,
			Detail: fmt.Sprintf("language %q is not allowed", req.Language),
		}
	}

	if int64(len(req.Code)) > req.Limits.MaxCodeSize {
		return &Violation{
			Kind:   KindCodeTooLarge,
			Detail: fmt.Sprintf("code is %d bytes, limit is %d", len(req.Code), req.Limits.MaxCodeSize),
		}
	}

	if v := scanForbidden(req.Code, pol.BlockedImports, pol.BlockedFunctions); v != nil {
		return v
	}

	if pol.MaxExecutionsPerMinute > 0 {
		count, err := rate.ExecutionsInLastMinute(ctx, caller)
		if err != nil {
			return fmt.Errorf("rate counter unavailable: %w", err)
		}
		if count >= pol.MaxExecutionsPerMinute {
			return &Violation{
				Kind:   KindRateLimited,
				Detail: fmt.Sprintf("%d executions in the last minute, limit is %d", count, pol.MaxExecutionsPerMinute),
			}
		}
	}

	if pol.MaxExecutionsPerHour > 0 {
		count, err := rate.ExecutionsInLastHour(ctx, caller)
		if err != nil {
			return fmt.Errorf("rate counter unavailable: %w", err)
		}
		if count >= pol.MaxExecutionsPerHour {
			return &Violation{
				Kind:   KindRateLimited,
				Detail: fmt.Sprintf("%d executions in the last hour, limit is %d", count, pol.MaxExecutionsPerHour),
			}
		}
	}

	return nil
}

// scanForbidden is a lexical scan, not a parse. Import-style lines are
// matched by their leading keyword and the identifiers they mention;
// blocked functions are matched as call-style tokens (name immediately
// followed by "("). It does not attempt semantic resolution such as alias
// tracking, trading false negatives for determinism and speed; that is a
// documented limitation of this gate.
func scanForbidden(code string, blockedImports, blockedFunctions []string) *Violation {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		fields := identTokens(trimmed)
		if len(fields) > 1 && importKeywords[fields[0]] {
			for _, name := range blockedImports {
				for _, tok := range fields[1:] {
					if tok == name {
						return &Violation{
							Kind:      KindForbiddenConstruct,
							Construct: name,
							Detail:    "blocked import",
						}
					}
				}
			}
		}

		for _, name := range blockedFunctions {
			if containsCall(trimmed, name) {
				return &Violation{
					Kind:      KindForbiddenConstruct,
					Construct: name,
					Detail:    "blocked function call",
				}
			}
		}
	}
	return nil
}

// identTokens splits a line into identifier tokens.
func identTokens(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return !isIdentRune(r)
	})
}

// containsCall reports whether name appears as a call token: the name
// followed immediately by "(", with no identifier character before it.
func containsCall(line, name string) bool {
	for i := 0; ; {
		idx := strings.Index(line[i:], name+"(")
		if idx < 0 {
			return false
		}
		idx += i
		if idx == 0 || !isIdentRune(rune(line[idx-1])) {
			return true
		}
		i = idx + len(name)
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}
