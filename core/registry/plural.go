package registry

import "strings"

// Pluralize returns the plural form of a word.
// Uses simple English pluralization rules.
func Pluralize(word string) string {
	if word == "" {
		return ""
	}

	if plural, ok := irregularPlurals[strings.ToLower(word)]; ok {
		if word[0] >= 'A' && word[0] <= 'Z' {
			return strings.ToUpper(plural[:1]) + plural[1:]
		}
		return plural
	}

	lower := strings.ToLower(word)

	// Sibilant endings take "es".
	for _, suffix := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(lower, suffix) {
			return word + "es"
		}
	}

	// Consonant + y becomes "ies".
	if strings.HasSuffix(lower, "y") && len(word) > 1 && !isVowel(rune(lower[len(lower)-2])) {
		return word[:len(word)-1] + "ies"
	}

	if strings.HasSuffix(lower, "fe") {
		return word[:len(word)-2] + "ves"
	}
	if strings.HasSuffix(lower, "f") {
		return word[:len(word)-1] + "ves"
	}

	return word + "s"
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

var irregularPlurals = map[string]string{
	"person": "people",
	"child":  "children",
	"mouse":  "mice",
	"index":  "indices",
	"datum":  "data",
	"medium": "media",
	"schema": "schemas",
	"status": "statuses",
}
