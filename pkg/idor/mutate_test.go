package idor

import "testing"

func TestMutateQueryID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://example.com/profile?id=42", "https://example.com/profile?id=43", true},
		{"https://example.com/p?page=2&user_id=9", "https://example.com/p?page=2&user_id=10", true},
		{"https://example.com/p?account_id=99&id=1", "https://example.com/p?account_id=100&id=1", true},
		{"https://example.com/p?id=abc&user_id=5", "https://example.com/p?id=abc&user_id=6", true},
		{"https://example.com/p?id=42#frag", "https://example.com/p?id=43", true},
		{"https://example.com/profile?id=abc", "", false},
		{"https://example.com/profile?id=", "", false},
		{"https://example.com/profile?order_id=5", "", false},
		{"https://example.com/profile", "", false},
		{"https://example.com/p?id=99999999999999999999999", "", false},
		{"https://example.com/p?id=18446744073709551615", "", false},
		{"https://example.com/p?id=18446744073709551614", "https://example.com/p?id=18446744073709551615", true},
	}
	for _, tt := range tests {
		got, ok := MutateQueryID(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("MutateQueryID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMutateRawID(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://api.test/o?id=42", "https://api.test/o?id=43", true},
		{"https://api.test/o?user_id=7&id=1", "https://api.test/o?user_id=8&id=1", true},
		{"https://api.test/o?id=9", "https://api.test/o?id=10", true},
		{"https://api.test/o?account_id=3", "https://api.test/o?account_id=4", true},
		{"https://api.test/o?valid=1&id=5", "https://api.test/o?valid=1&id=6", true},
		{"https://api.test/o?order_id=5", "", false},
		{"https://api.test/o;id=5", "https://api.test/o;id=6", true},
		{"id=5&x=1", "id=6&x=1", true},
		{"https://api.test/o?id=18446744073709551615", "", false},
		{"https://api.test/o?id=x", "", false},
		{"https://api.test/o", "", false},
	}
	for _, tt := range tests {
		got, ok := MutateRawID(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("MutateRawID(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
