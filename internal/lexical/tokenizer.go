package lexical

import (
	"strings"
	"unicode"
)

// particles is the fixed 조사 (grammatical particle) suffix table stripped
// from the tail of a Hangul token so that common Korean inflections of a
// stem collapse to overlapping postings (spec.md §9's tokenizer contract).
// Ordered longest-first so a longer particle is matched before a shorter
// one that happens to be its suffix.
var particles = []string{
	"으로", "에서", "한테", "에게", "까지", "부터", "처럼",
	"를", "을", "는", "은", "로", "의", "와", "과", "도", "만", "에",
	"가", "이",
}

// tokenize yields a stable, lowercased token stream for text: Latin/digit
// runs are collected as whole words (as the teacher's bm25.go does), Han
// runs are emitted rune-by-rune (same as the teacher), and Hangul runs are
// emitted as whole syllable blocks plus, when a known particle suffix is
// stripped, the bare stem as an additional token.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	tokens := make([]string, 0, len(text)/3)
	var current strings.Builder
	var currentIsHangul bool

	flush := func() {
		if current.Len() == 0 {
			return
		}
		tok := current.String()
		if currentIsHangul {
			tokens = append(tokens, hangulVariants(tok)...)
		} else if _, stop := stopWords[tok]; !stop {
			tokens = append(tokens, tok)
		}
		current.Reset()
		currentIsHangul = false
	}

	for _, r := range text {
		switch {
		case isHangul(r):
			if current.Len() > 0 && !currentIsHangul {
				flush()
			}
			currentIsHangul = true
			current.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if current.Len() > 0 && currentIsHangul {
				flush()
			}
			currentIsHangul = false
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

func isHangul(r rune) bool {
	return unicode.Is(unicode.Hangul, r)
}

// hangulVariants returns the surface token plus, if a known particle
// suffix is present and stripping it leaves a non-empty stem, the stem as
// a second token.
func hangulVariants(tok string) []string {
	runes := []rune(tok)
	for _, p := range particles {
		pr := []rune(p)
		if len(runes) <= len(pr) {
			continue
		}
		if string(runes[len(runes)-len(pr):]) == p {
			stem := string(runes[:len(runes)-len(pr)])
			if stem != "" {
				return []string{tok, stem}
			}
		}
	}
	return []string{tok}
}

var stopWords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "shall", "can", "to", "of", "in", "for",
		"on", "with", "at", "by", "from", "as", "into", "through", "and",
		"but", "or", "nor", "not", "so", "yet", "this", "that", "these",
		"those", "it", "its",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
