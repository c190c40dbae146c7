package parser

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopwords break capitalized runs so question words, calendar names and
// league names are never taken as entities.
var stopwords = toSet(
	// question and auxiliary words
	"who", "what", "when", "where", "which", "why", "how", "whose",
	"did", "does", "do", "was", "were", "is", "are", "will", "would",
	"could", "can", "should", "has", "have", "had",
	"tell", "me", "show", "give", "check", "verify", "confirm", "please", "i",
	// articles, prepositions and glue
	"the", "a", "an", "on", "in", "at", "of", "for", "to", "from", "and", "or",
	"vs", "versus", "against", "last", "night", "it", "their", "his", "her",
	// game vocabulary
	"game", "games", "match", "score", "scores", "final", "result", "results",
	"won", "win", "wins", "lose", "lost", "beat", "beats", "play", "played", "plays",
	// calendar
	"today", "tonight", "yesterday", "tomorrow",
	"january", "february", "march", "april", "may", "june", "july",
	"august", "september", "october", "november", "december",
	"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	// leagues
	"nba", "nfl", "basketball", "football", "league", "season", "playoffs",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}'.&-]*`)

// span is an entity candidate and its byte offset in the source text.
type span struct {
	text  string
	start int
}

// entities returns runs of capitalized words in first-seen order, without
// duplicates. Runs are broken by stopwords and by any punctuation between words.
func entities(text string) []span {
	var (
		out  []span
		seen = map[string]bool{}
		run  []string
		from int
		prev = -1
	)

	flush := func() {
		if len(run) == 0 {
			return
		}
		name := strings.Join(run, " ")
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			out = append(out, span{text: name, start: from})
		}
		run = nil
	}

	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		word := cleanWord(text[loc[0]:loc[1]])

		if prev >= 0 && strings.TrimSpace(text[prev:loc[0]]) != "" {
			flush()
		}
		prev = loc[1]

		if word == "" || stopwords[strings.ToLower(word)] || !capitalized(word) {
			flush()
			continue
		}
		if len(run) == 0 {
			from = loc[0]
		}
		run = append(run, word)
	}
	flush()
	return out
}

// cleanWord strips trailing punctuation and possessives.
func cleanWord(w string) string {
	w = strings.TrimRight(w, ".'-&")
	lower := strings.ToLower(w)
	if strings.HasSuffix(lower, "'s") {
		w = w[:len(w)-2]
	}
	return strings.TrimRight(w, ".'-&")
}

// capitalized reports whether w starts with an upper-case letter or is a
// digit-led name such as "76ers".
func capitalized(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	if unicode.IsUpper(r) {
		return true
	}
	if unicode.IsDigit(r) {
		for _, c := range w {
			if unicode.IsLetter(c) {
				return true
			}
		}
	}
	return false
}
