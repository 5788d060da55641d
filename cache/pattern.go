package cache

import "strings"

// Pattern is a compiled invalidation glob. '*' matches any run of characters,
// including an empty one; every other character matches itself. Matching is
// anchored at both ends.
type Pattern struct {
	raw   string
	parts []string
}

// CompilePattern compiles a glob such as "templates:list:public:*".
func CompilePattern(glob string) (*Pattern, error) {
	if strings.TrimSpace(glob) == "" || strings.ContainsAny(glob, "\n\r") {
		return nil, ErrInvalidPattern
	}
	return &Pattern{raw: glob, parts: strings.Split(glob, "*")}, nil
}

// String returns the source glob.
func (p *Pattern) String() string {
	return p.raw
}

// Prefix returns the literal text before the first wildcard.
func (p *Pattern) Prefix() string {
	return p.parts[0]
}

// IsLiteral reports whether the pattern has no wildcard.
func (p *Pattern) IsLiteral() bool {
	return len(p.parts) == 1
}

// Match reports whether key matches the whole pattern.
func (p *Pattern) Match(key string) bool {
	if p.IsLiteral() {
		return key == p.raw
	}

	head := p.parts[0]
	if !strings.HasPrefix(key, head) {
		return false
	}
	rest := key[len(head):]

	tail := p.parts[len(p.parts)-1]
	for _, mid := range p.parts[1 : len(p.parts)-1] {
		if mid == "" {
			continue
		}
		i := strings.Index(rest, mid)
		if i < 0 {
			return false
		}
		rest = rest[i+len(mid):]
	}

	return strings.HasSuffix(rest, tail)
}
