package funnel

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.elara.ws/pcre"
)

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func NewRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	// Double-check pattern
	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// wildcardToRegex translates a pattern where % matches any run of
// characters into an anchored regex. Everything else is literal.
func wildcardToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(pattern, "%") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")
	return b.String()
}

// MatchValue reports whether value satisfies the step's match expression.
func (s Step) MatchValue(value string, rc *RegexCache) (bool, error) {
	switch s.effectiveMatchKind() {
	case MatchContains:
		return strings.Contains(value, s.Match), nil
	case MatchWildcard:
		regex, err := rc.get(wildcardToRegex(s.Match))
		if err != nil {
			return false, fmt.Errorf("failed to compile step pattern %q: %w", s.Match, err)
		}
		return regex.MatchString(value), nil
	default:
		return value == s.Match, nil
	}
}

func (s Step) effectiveMatchKind() MatchKind {
	if s.MatchKind != "" {
		return s.MatchKind
	}
	if strings.Contains(s.Match, "%") {
		return MatchWildcard
	}
	return MatchExact
}
