package engine

import (
	"regexp"
	"strings"
	"sync"

	"github.com/google/shlex"
)

// NormalizeCommand canonicalizes a command line for pattern matching:
// shell-style tokenization collapses quoting and whitespace differences so
// `ls  -la "/tmp"` and `ls -la /tmp` match the same pattern. Lines that do
// not tokenize (unbalanced quotes) are matched verbatim.
func NormalizeCommand(command string) string {
	tokens, err := shlex.Split(command)
	if err != nil || len(tokens) == 0 {
		return strings.TrimSpace(command)
	}
	return strings.Join(tokens, " ")
}

var (
	globCacheMu sync.Mutex
	globCache   = map[string]*regexp.Regexp{}
)

// matchGlob matches a command against a shell-style glob pattern where `*`
// matches any run of characters (including spaces and slashes) and `?`
// matches one. filepath.Match is deliberately not used: its `*` stops at
// path separators, which is wrong for command lines.
func matchGlob(pattern, s string) bool {
	globCacheMu.Lock()
	re, ok := globCache[pattern]
	globCacheMu.Unlock()

	if !ok {
		var b strings.Builder
		b.WriteString("^")
		for _, r := range pattern {
			switch r {
			case '*':
				b.WriteString(".*")
			case '?':
				b.WriteString(".")
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
		b.WriteString("$")

		compiled, err := regexp.Compile(b.String())
		if err != nil {
			return false
		}
		re = compiled

		globCacheMu.Lock()
		globCache[pattern] = re
		globCacheMu.Unlock()
	}

	return re.MatchString(s)
}
