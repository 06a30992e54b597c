package idor

import (
	"reflect"
	"testing"
)

func TestExtractIDLinks(t *testing.T) {
	body := []byte(`<html><body>
		<a href="/profile?id=1">one</a>
		<a href="https://other.test/x?user_id=2">two</a>
		<a href="/profile?id=1">dup</a>
		<a href="/about">about</a>
		<a href="orders?id=abc">nonnumeric</a>
		<link href="/style?id=3">
		<a href="edit?account_id=4"/>
	</body></html>`)

	got := ExtractIDLinks("https://app.test/users/", body)
	want := []string{
		"https://app.test/profile?id=1",
		"https://other.test/x?user_id=2",
		"https://app.test/users/edit?account_id=4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractIDLinks = %v, want %v", got, want)
	}
}

func TestExtractIDLinks_BadBase(t *testing.T) {
	if got := ExtractIDLinks("://bad", []byte(`<a href="?id=1">`)); got != nil {
		t.Errorf("expected nil for bad base, got %v", got)
	}
}
