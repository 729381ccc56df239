// Package names derives the filesystem, search and URL forms of book and
// creator names. All functions are pure; the store persists the derived
// forms beside the raw name.
package names

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// reserved path characters stripped from the file form.
const reservedChars = `/\?%*:|"<>`

// ForFile returns a human readable name safe for a filename.
// Apostrophes are dropped (Fred's -> Freds), reserved path characters
// removed, whitespace squeezed. Unicode letters are preserved.
func ForFile(name string) string {
	name = norm.NFC.String(name)
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == '\'' || r == '’':
			// drop
		case strings.ContainsRune(reservedChars, r):
			// drop
		case unicode.IsControl(r):
			// drop
		default:
			sb.WriteRune(r)
		}
	}
	return squeezeWhitespace(sb.String())
}

// ForSearch returns a lowercased hyphenated form suitable for
// case-insensitive substring matching.
func ForSearch(name string) string {
	name = strings.ToLower(norm.NFC.String(name))
	var sb strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('-')
		}
	}
	out := sb.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

// ForURL returns the CamelCase form used as a canonical URL path segment.
func ForURL(name string) string {
	name = norm.NFC.String(name)
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == '\'' || r == '’':
			// drop, so Fred's -> Freds
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}

	words := strings.Fields(sb.String())
	var out strings.Builder
	for _, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		out.WriteString(string(runes))
	}
	return out.String()
}

// FormatNumber renders the issue number per book type:
// one-shot -> "", ongoing -> "NNN", mini-series -> "NN (of MM)".
func FormatNumber(bookType string, number, ofNumber int) string {
	switch bookType {
	case "ongoing":
		return fmt.Sprintf("%03d", number)
	case "mini-series":
		return fmt.Sprintf("%02d (of %02d)", number, ofNumber)
	default:
		return ""
	}
}

// BookTitle is the (name, formatted number) pair of a book.
type BookTitle struct {
	Name   string
	Number string
}

func NewBookTitle(name, bookType string, number, ofNumber int) BookTitle {
	return BookTitle{Name: name, Number: FormatNumber(bookType, number, ofNumber)}
}

func (t BookTitle) ForFile() string {
	return join(ForFile(t.Name), ForFile(t.Number), " ")
}

func (t BookTitle) ForSearch() string {
	return join(ForSearch(t.Name), ForSearch(t.Number), "-")
}

func (t BookTitle) ForURL() string {
	return join(ForURL(t.Name), ForURL(t.Number), "-")
}

func join(name, number, sep string) string {
	if number == "" {
		return strings.TrimRight(name, sep)
	}
	return name + sep + number
}

// PageFilenameWidth is the zero-padding width of packaged page filenames:
// at least 3, wider once a book reaches 1000 pages.
func PageFilenameWidth(pageCount int) int {
	width := len(strconv.Itoa(pageCount))
	if width < 3 {
		return 3
	}
	return width
}

// PageFilename returns the archive member name of a page, e.g. 001.jpg.
func PageFilename(pageNo, pageCount int, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return fmt.Sprintf("%0*d.%s", PageFilenameWidth(pageCount), pageNo, ext)
}

func squeezeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
