package service

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "str0ngpass", true},
		{"minimum length", "abcdefg1", true},
		{"too short", "abc1", false},
		{"letters only", "onlyletters", false},
		{"digits only", "12345678", false},
		{"exactly 72 bytes", strings.Repeat("a", 71) + "1", true},
		{"73 bytes", strings.Repeat("a", 72) + "1", false},
		{"unicode letters count as letters", "pässwörd1", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.ok && err != nil {
				t.Errorf("want ok, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrWeakPassword) {
				t.Errorf("want ErrWeakPassword, got %v", err)
			}
		})
	}
}
