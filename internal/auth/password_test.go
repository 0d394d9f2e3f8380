package auth

import (
	"errors"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword(strongPassword)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Errorf("hash = %q, want PHC argon2id prefix", hash)
	}

	ok, err := VerifyPassword(strongPassword, hash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyPassword("Str0ng!Pas", hash)
	if err != nil || ok {
		t.Errorf("VerifyPassword(wrong) = %v, %v", ok, err)
	}

	other, _ := HashPassword(strongPassword) //nolint:errcheck // compared below
	if other == hash {
		t.Error("hashes of the same password should differ by salt")
	}
}

func TestVerifyPassword_InvalidHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$aGFzaA",
	} {
		if _, err := VerifyPassword("x", bad); err == nil {
			t.Errorf("VerifyPassword(%q) should fail", bad)
		}
	}

	for _, corrupt := range []string{
		"$argon2id$v=19$m=65536,t=0,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo",
		"$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo",
	} {
		if _, err := VerifyPassword("x", corrupt); !errors.Is(err, errInvalidPHC) {
			t.Errorf("VerifyPassword(%q) error = %v, want errInvalidPHC", corrupt, err)
		}
	}
}

func TestVerifyCredentials(t *testing.T) {
	hash, err := HashPassword("Holder#Pass1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	u := &User{ID: "u1", PasswordHash: hash}

	if ok, err := VerifyCredentials(u, "Holder#Pass1"); err != nil || !ok {
		t.Errorf("VerifyCredentials() = %v, %v", ok, err)
	}
}

func TestPasswordPolicy_Check(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		want     []string
	}{
		{"strong", strongPassword, nil},
		{"too short", "Ab1!", []string{
			"Passwords must be at least 8 characters.",
			"Passwords must use at least 8 different characters.",
		}},
		{"no symbol", "Abcdefg12", []string{
			"Passwords must have at least one non alphanumeric character.",
		}},
		{"no upper or digit", "abcdefgh!", []string{
			"Passwords must have at least one digit ('0'-'9').",
			"Passwords must have at least one uppercase ('A'-'Z').",
		}},
		{"no lower", "ABCDEFG1!", []string{
			"Passwords must have at least one lowercase ('a'-'z').",
		}},
		{"repeated characters", "Aa1!Aa1!Aa1!", []string{
			"Passwords must use at least 8 different characters.",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Check(tt.password); !slices.Equal(got, tt.want) {
				t.Errorf("Check(%q) = %q, want %q", tt.password, got, tt.want)
			}
		})
	}
}

func TestLockoutPolicy(t *testing.T) {
	p := DefaultLockoutPolicy()
	if p.MaxFailedAttempts != 5 || p.Window != 5*time.Minute {
		t.Fatalf("DefaultLockoutPolicy() = %+v", p)
	}

	for count, want := range map[int]int{0: 5, 1: 4, 4: 1, 5: 0, 9: 0} {
		if got := p.Remaining(count); got != want {
			t.Errorf("Remaining(%d) = %d, want %d", count, got, want)
		}
	}

	for _, tt := range []struct {
		now, want time.Time
	}{
		{time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)},
		{time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC), time.Date(2026, 3, 1, 12, 5, 1, 0, time.UTC)},
		{time.Date(2026, 3, 1, 13, 0, 0, 999_999_999, time.FixedZone("X", 3600)), time.Date(2026, 3, 1, 12, 5, 1, 0, time.UTC)},
	} {
		got := p.LockedUntil(tt.now)
		if !got.Equal(tt.want) {
			t.Errorf("LockedUntil(%v) = %v, want %v", tt.now, got, tt.want)
		}
		if got.Sub(tt.now) < p.Window {
			t.Errorf("LockedUntil(%v) locks for %v, less than %v", tt.now, got.Sub(tt.now), p.Window)
		}
	}
}

func TestIsLockedOut(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	tests := []struct {
		name string
		user User
		want bool
	}{
		{"never locked", User{LockoutEnabled: true}, false},
		{"locked", User{LockoutEnabled: true, LockoutEnd: &future}, true},
		{"lock elapsed", User{LockoutEnabled: true, LockoutEnd: &past}, false},
		{"lock ends now", User{LockoutEnabled: true, LockoutEnd: &now}, false},
		{"lockout disabled", User{LockoutEnabled: false, LockoutEnd: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLockedOut(&tt.user, now); got != tt.want {
				t.Errorf("IsLockedOut() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContentRules(t *testing.T) {
	if !IsCommonPassword("QWERTY") {
		t.Error("IsCommonPassword should ignore case")
	}
	if IsCommonPassword(strongPassword) {
		t.Error("strong password flagged as common")
	}

	if !HasRestrictedDomain("a@b@TempMail.com") {
		t.Error("HasRestrictedDomain should use the text after the last @")
	}
	if HasRestrictedDomain("a@example.com") || HasRestrictedDomain("no-at-sign") {
		t.Error("HasRestrictedDomain false positive")
	}

	if ContainsPersonalInfo("Str0ng!Pass", "A", "B", "a@b.com") {
		t.Error("single-character fragments must be ignored")
	}
	if !ContainsPersonalInfo("Li#9xQwert", "Li", "B") {
		t.Error("two-character names are personal information")
	}
	if !ContainsPersonalInfo("xxALICExx", "alice") {
		t.Error("ContainsPersonalInfo should ignore case")
	}
}
