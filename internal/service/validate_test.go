package service

import "testing"

func TestValidEmail(t *testing.T) {
	valid := []string{"alice@example.com", "a.b+c@sub.domain.io", "x_1%2@host-name.fr"}
	for _, email := range valid {
		if !validEmail(email) {
			t.Fatalf("expected %q valid", email)
		}
	}

	invalid := []string{"", "plain", "@example.com", "alice@", "alice@host", "alice @example.com"}
	for _, email := range invalid {
		if validEmail(email) {
			t.Fatalf("expected %q invalid", email)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("expected lowercased trimmed email, got %q", got)
	}
}

func TestPasswordPolicy(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"Str0ng!Pass", true},
		{"short1!", false},
		{"alllower1!a", false},
		{"ALLUPPER1!A", false},
		{"NoDigits!Ab", false},
		{"NoSpecial1Ab", false},
	}

	for _, tc := range cases {
		verr := &ValidationError{}
		checkPasswordPolicy(verr, tc.password)
		if got := len(verr.Fields) == 0; got != tc.ok {
			t.Fatalf("password %q: expected ok=%v, got fields %+v", tc.password, tc.ok, verr.Fields)
		}
	}
}
