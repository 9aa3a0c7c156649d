package pathmatch

import "testing"

func TestMatchRecursive(t *testing.T) {
	cases := []struct {
		value, pattern string
		want           bool
	}{
		{"/home/u/.ssh/id_rsa", "**/.ssh/**", true},
		{"/home/u/.ssh", "**/.ssh/**", false},
		{"/etc/passwd", "/etc/**", true},
		{"/opt/passwd", "/etc/**", false},
		{"project/.env", "**/.env", true},
		{"project/.env.local", "**/.env", false},
		{"project/.env.local", "**/.env.*", true},
	}

	for _, c := range cases {
		if got := Match(c.value, c.pattern); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.value, c.pattern, got, c.want)
		}
	}
}

func TestIsProtectedExcludeWins(t *testing.T) {
	include := []string{"**/*.env"}
	exclude := []string{"**/test.env"}

	if IsProtected("a/test.env", include, exclude) {
		t.Error("expected exclude to win over include")
	}
	if !IsProtected("a/prod.env", include, exclude) {
		t.Error("expected prod.env to be protected")
	}
}

func TestCollectProtectedAndExcluded(t *testing.T) {
	paths := []string{"a/prod.env", "a/test.env", "a/readme.md"}
	include := []string{"**/*.env"}
	exclude := []string{"**/test.env"}

	protected := CollectProtected(paths, include, exclude)
	if len(protected) != 1 || protected[0] != "a/prod.env" {
		t.Errorf("CollectProtected = %v", protected)
	}

	excluded := CollectExcluded(paths, include, exclude)
	if len(excluded) != 1 || excluded[0] != "a/test.env" {
		t.Errorf("CollectExcluded = %v", excluded)
	}
}
