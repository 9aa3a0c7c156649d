package cmdmatch

import "testing"

func TestMatchesRawGlob(t *testing.T) {
	if !Matches("git push --force origin main", []string{"git push --force*"}) {
		t.Fatal("expected raw glob match")
	}
	if Matches("git push origin main", []string{"git push --force*"}) {
		t.Fatal("expected no match without --force")
	}
}

func TestMatchesFlagAlias(t *testing.T) {
	if !Matches("rm -fr /tmp/x", []string{"rm -rf*"}) {
		t.Fatal("expected -fr to canonicalize the same as -rf")
	}
	if !Matches("rm --force --recursive /tmp/x", []string{"rm -rf*"}) {
		t.Fatal("expected long flags to canonicalize the same as short ones")
	}
}

func TestParseFallbackNeverErrors(t *testing.T) {
	p := Parse("")
	if p == nil {
		t.Fatal("Parse must never return nil")
	}
}

func TestMatchesSuffixAnchor(t *testing.T) {
	if !Matches("git push origin main", []string{"git push*main"}) {
		t.Fatal("expected suffix-anchored glob to match")
	}
	if Matches("git push origin develop", []string{"git push*main"}) {
		t.Fatal("expected no match on a different branch")
	}
}
