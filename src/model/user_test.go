package model

import (
	"testing"
	"time"
)

func TestIsPremiumActive(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		user User
		now  time.Time
		want bool
	}{
		{"flag unset", User{IsPremium: false}, expiry.Add(-time.Hour), false},
		{"flag unset with future expiry", User{IsPremium: false, PremiumExpiresAt: expiry}, expiry.Add(-time.Hour), false},
		{"no expiry", User{IsPremium: true}, expiry.Add(24 * 365 * time.Hour), true},
		{"before expiry", User{IsPremium: true, PremiumExpiresAt: expiry}, expiry.Add(-time.Nanosecond), true},
		{"exactly at expiry", User{IsPremium: true, PremiumExpiresAt: expiry}, expiry, false},
		{"after expiry", User{IsPremium: true, PremiumExpiresAt: expiry}, expiry.Add(time.Nanosecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.IsPremiumActive(tt.now); got != tt.want {
				t.Errorf("IsPremiumActive(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestProfileCompletion(t *testing.T) {
	empty := User{}
	if got := empty.ProfileCompletion(); got.String() != "0" {
		t.Errorf("empty profile = %s, want 0", got)
	}

	full := User{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		PhoneNumber: "+2348012345678",
		AvatarPath:  "avatars/1.png",
		DateOfBirth: "1990-12-10",
		Bio:         "Numbers person.",
	}
	if got := full.ProfileCompletion(); got.String() != "100" {
		t.Errorf("full profile = %s, want 100", got)
	}

	// 3 of 7 fields filled: 3/7*100 rounded to 2 decimal places.
	partial := User{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	if got := partial.ProfileCompletion(); got.String() != "42.86" {
		t.Errorf("3/7 profile = %s, want 42.86", got)
	}

	// Whitespace-only values do not count as filled.
	partial.PhoneNumber = "   "
	if got := partial.ProfileCompletion(); got.String() != "42.86" {
		t.Errorf("whitespace phone should not count: got %s, want 42.86", got)
	}

	// Filling one more field never lowers the score.
	prev := partial.ProfileCompletion()
	partial.PhoneNumber = "+2348012345678"
	next := partial.ProfileCompletion()
	if next.LessThan(prev) {
		t.Errorf("completion dropped from %s to %s after filling a field", prev, next)
	}

	// API responses render the score with two fixed decimal places.
	if got := empty.ProfileCompletion().StringFixed(2); got != "0.00" {
		t.Errorf("empty profile renders as %s, want 0.00", got)
	}
	if got := full.ProfileCompletion().StringFixed(2); got != "100.00" {
		t.Errorf("full profile renders as %s, want 100.00", got)
	}
}

func TestFullName(t *testing.T) {
	u := User{Username: "ada42"}
	if got := u.FullName(); got != "ada42" {
		t.Errorf("FullName with no names = %q, want username", got)
	}

	u.FirstName = "Ada"
	if got := u.FullName(); got != "Ada" {
		t.Errorf("FullName = %q, want Ada", got)
	}

	u.LastName = "Lovelace"
	if got := u.FullName(); got != "Ada Lovelace" {
		t.Errorf("FullName = %q, want Ada Lovelace", got)
	}
}

func TestPasswordHashing(t *testing.T) {
	var u User
	if err := u.HashPassword("s3cret-pass"); err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if u.Password == "s3cret-pass" {
		t.Fatal("password stored in plain text")
	}
	if err := u.CheckPassword("s3cret-pass"); err != nil {
		t.Errorf("CheckPassword with correct password: %v", err)
	}
	if err := u.CheckPassword("wrong"); err == nil {
		t.Error("CheckPassword with wrong password should fail")
	}
}
