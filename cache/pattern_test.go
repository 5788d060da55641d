package cache

import "testing"

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"templates:list:public:*", "templates:list:public:::createdAt:desc:20:start:anonymous", true},
		{"templates:list:public:*", "templates:list:public:", true},
		{"templates:list:public:*", "templates:list:popular:x", false},
		{"templates:list:public:*", "xtemplates:list:public:", false},
		{"templates:list:public:*", "templates:get:123", false},
		{"templates:get:123", "templates:get:123", true},
		{"templates:get:123", "templates:get:1234", false},
		{"*:anonymous", "templates:list:all:anonymous", true},
		{"*:anonymous", "templates:list:all:u1", false},
		{"templates:*:anonymous", "templates:list:all:anonymous", true},
		{"templates:*:*:anonymous", "templates:list:all:anonymous", true},
		{"a*a", "a", false},
		{"a*a", "aa", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "acb", false},
		{"*", "", true},
		{"*", "anything", true},
		{"a**b", "ab", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.key, func(t *testing.T) {
			p, err := CompilePattern(tt.pattern)
			if err != nil {
				t.Fatalf("CompilePattern(%q) failed: %v", tt.pattern, err)
			}
			if got := p.Match(tt.key); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestPattern_Prefix(t *testing.T) {
	tests := []struct {
		pattern string
		prefix  string
		literal bool
	}{
		{"templates:list:*", "templates:list:", false},
		{"*:anonymous", "", false},
		{"templates:get:1", "templates:get:1", true},
	}
	for _, tt := range tests {
		p := mustCompilePattern(tt.pattern)
		if p.Prefix() != tt.prefix {
			t.Errorf("Prefix(%q) = %q, want %q", tt.pattern, p.Prefix(), tt.prefix)
		}
		if p.IsLiteral() != tt.literal {
			t.Errorf("IsLiteral(%q) = %v, want %v", tt.pattern, p.IsLiteral(), tt.literal)
		}
		if p.String() != tt.pattern {
			t.Errorf("String() = %q, want %q", p.String(), tt.pattern)
		}
	}
}

func TestCompilePattern_Invalid(t *testing.T) {
	for _, glob := range []string{"", "   ", "a\nb"} {
		if _, err := CompilePattern(glob); err != ErrInvalidPattern {
			t.Errorf("CompilePattern(%q) = %v, want ErrInvalidPattern", glob, err)
		}
	}
}

// mustCompilePattern is like CompilePattern but panics on an invalid glob.
func mustCompilePattern(glob string) *Pattern {
	p, err := CompilePattern(glob)
	if err != nil {
		panic(err)
	}
	return p
}
