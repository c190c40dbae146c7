package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/fact-oracle/internal/model"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthDateRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	daysAgoRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+days?\s+ago\b`)
	relativeRe  = regexp.MustCompile(`(?i)\b(today|tonight|yesterday|last\s+night)\b`)
)

var monthByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// extractDate finds the first date phrase in text. It returns the canonical
// date and the text with the phrase removed; date is empty when none matched.
func (p *Parser) extractDate(text string) (string, string) {
	today := p.now().In(p.loc)

	if m := isoDateRe.FindStringSubmatchIndex(text); m != nil {
		if d, ok := buildDate(atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])); ok {
			return d, cut(text, m[0], m[1])
		}
	}

	if m := slashDateRe.FindStringSubmatchIndex(text); m != nil {
		if d, ok := buildDate(atoi(text[m[6]:m[7]]), atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]])); ok {
			return d, cut(text, m[0], m[1])
		}
	}

	if m := monthDateRe.FindStringSubmatchIndex(text); m != nil {
		month := monthByPrefix[strings.ToLower(text[m[2] : m[2]+3])]
		year := today.Year()
		if m[6] >= 0 {
			year = atoi(text[m[6]:m[7]])
		}
		if d, ok := buildDate(year, int(month), atoi(text[m[4]:m[5]])); ok {
			return d, cut(text, m[0], m[1])
		}
	}

	if m := relativeRe.FindStringSubmatchIndex(text); m != nil {
		word := strings.Join(strings.Fields(strings.ToLower(text[m[2]:m[3]])), " ")
		day := today
		if word == "yesterday" || word == "last night" {
			day = today.AddDate(0, 0, -1)
		}
		return day.Format(model.DateLayout), cut(text, m[0], m[1])
	}

	if m := daysAgoRe.FindStringSubmatchIndex(text); m != nil {
		day := today.AddDate(0, 0, -atoi(text[m[2]:m[3]]))
		return day.Format(model.DateLayout), cut(text, m[0], m[1])
	}

	return "", text
}

// buildDate validates a calendar date and formats it canonically.
func buildDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return "", false
	}
	return t.Format(model.DateLayout), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
