// Package naming owns every string fix-up applied to identifiers, so the
// resolver never has to look inside a name.
package naming

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UpperCamel joins the alphanumeric words of s, upper-casing the first letter
// of each word and keeping the rest as written ("fooBar_baz" -> "FooBarBaz").
func UpperCamel(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	caser := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(caser.String(w))
	}
	return b.String()
}

// LowerCamel is UpperCamel with the first rune lowered.
func LowerCamel(s string) string {
	u := UpperCamel(s)
	if u == "" {
		return ""
	}
	r := []rune(u)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// Snake lower-cases the words of s and joins them with underscores, splitting
// camel-case humps ("petId" -> "pet_id").
func Snake(s string) string {
	var words []string
	for _, w := range splitWords(s) {
		words = append(words, splitHumps(w)...)
	}
	lower := cases.Lower(language.Und)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return strings.Join(words, "_")
}

// Identifier sanitizes s into an exported identifier that is valid in every
// target language the emitters support.
func Identifier(s string) string {
	id := UpperCamel(s)
	if id == "" {
		return "Empty"
	}
	if unicode.IsDigit([]rune(id)[0]) {
		return "V" + id
	}
	return id
}

// Join builds a synthesized name from an enclosing name, a property key and
// a disambiguating suffix.
func Join(owner, key, suffix string) string {
	return owner + UpperCamel(key) + suffix
}

// Indexed appends a 1-based option index to name.
func Indexed(name string, index int) string {
	return name + strconv.Itoa(index+1)
}

// Allocator hands out synthesized names that are not taken yet. It is a pure
// function of its input and the Taken predicate.
type Allocator struct {
	Taken func(name string) bool
}

// Allocate returns base when free, otherwise base2, base3, ...
func (a Allocator) Allocate(base string) string {
	if a.Taken == nil || !a.Taken(base) {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !a.Taken(candidate) {
			return candidate
		}
	}
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func splitHumps(w string) []string {
	var out []string
	runes := []rune(w)
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
			out = append(out, string(runes[start:i]))
			start = i
		}
	}
	return append(out, string(runes[start:]))
}
