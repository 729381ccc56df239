package names

import (
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Book", "My Book"},
		{"Fred's Book", "Freds Book"},
		{"What? A *Book*: Volume|1", "What A *Book* Volume1"},
		{"  spaced   out  ", "spaced out"},
		{"Héllo Wörld", "Héllo Wörld"},
		{"漫画の本", "漫画の本"},
		{`a/b\c%d`, "abcd"},
	}
	for _, tc := range tests {
		if got := ForFile(tc.in); got != tc.want {
			t.Errorf("ForFile(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestForSearch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Book", "my-book"},
		{"Fred's Book", "fred-s-book"},
		{"  Hello --- World!! ", "hello-world"},
		{"Book 2020", "book-2020"},
	}
	for _, tc := range tests {
		if got := ForSearch(tc.in); got != tc.want {
			t.Errorf("ForSearch(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestForURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"my book", "MyBook"},
		{"Fred's Book", "FredsBook"},
		{"the quick-brown fox", "TheQuickBrownFox"},
		{"Jane Doe", "JaneDoe"},
	}
	for _, tc := range tests {
		if got := ForURL(tc.in); got != tc.want {
			t.Errorf("ForURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	// The URL form must never contain whitespace or reserved path characters.
	for _, in := range []string{"a b/c", `x\y?z`, "p%q*r:s|t", `u"v<w>x`} {
		got := ForURL(in)
		if strings.ContainsAny(got, " \t/\\?%*:|\"<>") {
			t.Errorf("ForURL(%q) = %q contains reserved characters", in, got)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		bookType string
		number   int
		ofNumber int
		want     string
	}{
		{"one-shot", 1, 0, ""},
		{"ongoing", 5, 0, "005"},
		{"ongoing", 123, 0, "123"},
		{"mini-series", 2, 4, "02 (of 04)"},
	}
	for _, tc := range tests {
		if got := FormatNumber(tc.bookType, tc.number, tc.ofNumber); got != tc.want {
			t.Errorf("FormatNumber(%q, %d, %d) = %q, want %q", tc.bookType, tc.number, tc.ofNumber, got, tc.want)
		}
	}
}

func TestBookTitle(t *testing.T) {
	title := NewBookTitle("My Book", "ongoing", 5, 0)
	if got := title.ForFile(); got != "My Book 005" {
		t.Errorf("ForFile() = %q", got)
	}
	if got := title.ForSearch(); got != "my-book-005" {
		t.Errorf("ForSearch() = %q", got)
	}
	if got := title.ForURL(); got != "MyBook-005" {
		t.Errorf("ForURL() = %q", got)
	}

	oneShot := NewBookTitle("My Book", "one-shot", 1, 0)
	if got := oneShot.ForFile(); got != "My Book" {
		t.Errorf("one-shot ForFile() = %q", got)
	}
	if got := oneShot.ForURL(); got != "MyBook" {
		t.Errorf("one-shot ForURL() = %q", got)
	}

	mini := NewBookTitle("Saga", "mini-series", 2, 4)
	if got := mini.ForFile(); got != "Saga 02 (of 04)" {
		t.Errorf("mini-series ForFile() = %q", got)
	}
	if got := mini.ForURL(); got != "Saga-02Of04" {
		t.Errorf("mini-series ForURL() = %q", got)
	}
}

func TestPageFilename(t *testing.T) {
	tests := []struct {
		pageNo    int
		pageCount int
		ext       string
		want      string
	}{
		{1, 3, "jpg", "001.jpg"},
		{12, 150, ".PNG", "012.png"},
		{1000, 1200, "jpg", "1000.jpg"},
		{7, 1200, "jpg", "0007.jpg"},
	}
	for _, tc := range tests {
		if got := PageFilename(tc.pageNo, tc.pageCount, tc.ext); got != tc.want {
			t.Errorf("PageFilename(%d, %d, %q) = %q, want %q", tc.pageNo, tc.pageCount, tc.ext, got, tc.want)
		}
	}
}
