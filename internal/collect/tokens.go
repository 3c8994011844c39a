package collect

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrUnresolvedToken indicates a Markdown file still contains @token@
// placeholders after substitution. Unresolved tokens would leak into every
// generated format, so collection fails fast instead.
var ErrUnresolvedToken = errors.New("docpress: unresolved substitution token")

// tokenPattern matches @token@ placeholders. Token names start with a
// letter and may contain letters, digits, '_', '.' and '-'.
var tokenPattern = regexp.MustCompile(`@([A-Za-z][A-Za-z0-9_.-]*)@`)

// SubstituteTokens replaces every @token@ placeholder with its configured
// value and rejects content that still carries placeholders afterwards.
func SubstituteTokens(content []byte, tokens map[string]string) ([]byte, error) {
	text := string(content)
	for name, value := range tokens {
		text = strings.ReplaceAll(text, "@"+name+"@", value)
	}

	matches := tokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []byte(text), nil
	}

	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return nil, fmt.Errorf("%w: %s", ErrUnresolvedToken, strings.Join(names, ", "))
}
