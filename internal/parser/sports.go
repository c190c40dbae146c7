package parser

import (
	"regexp"
	"strings"

	"github.com/sells-group/fact-oracle/internal/model"
)

const defaultLeague = "nba"

var (
	gameIDRe      = regexp.MustCompile(`(?i)\b(?:game|event|match)\s*(?:id\s*)?[#:]?\s*(\d{6,12})\b`)
	leagueRe      = regexp.MustCompile(`(?i)\b(nba|nfl|basketball|football)\b`)
	opponentCueRe = regexp.MustCompile(`(?i)\b(?:vs\.?|versus|against|beat|beats|play|played|plays)(?:\s|$)`)
)

// ParseSports extracts a game-outcome query.
func (p *Parser) ParseSports(text string) *model.SportsQuery {
	q := &model.SportsQuery{}
	rest := normalize(text)

	// (a) explicit identifiers
	if m := gameIDRe.FindStringSubmatchIndex(rest); m != nil {
		q.GameID = rest[m[2]:m[3]]
		rest = cut(rest, m[0], m[1])
	}

	// (b) dates
	q.Date, rest = p.extractDate(rest)

	if m := leagueRe.FindStringSubmatch(rest); m != nil {
		switch strings.ToLower(m[1]) {
		case "nba", "basketball":
			q.League = "nba"
		case "nfl", "football":
			q.League = "nfl"
		}
	}

	// (c) capitalized entities
	subject, opponent := pickTeams(rest, entities(rest))
	if subject != "" {
		q.Team = p.aliases.Canonical(subject)
	}
	if opponent != "" {
		q.Opponent = p.aliases.Canonical(opponent)
	}

	if q.League == "" {
		q.League = p.aliases.LeagueOf(q.Team)
	}
	if q.League == "" {
		q.League = defaultLeague
	}
	return q
}

// pickTeams chooses the subject and opponent from entity candidates. An
// explicit cue ("vs", "beat", "against") marks the entity after it as the
// opponent; otherwise the second candidate is.
func pickTeams(text string, ents []span) (string, string) {
	if len(ents) == 0 {
		return "", ""
	}

	opp := -1
	if loc := opponentCueRe.FindStringIndex(text); loc != nil {
		for i, e := range ents {
			if e.start >= loc[1]-1 {
				opp = i
				break
			}
		}
	}

	var subject, opponent string
	for i, e := range ents {
		if i == opp {
			continue
		}
		if subject == "" {
			subject = e.text
		} else if opp < 0 && opponent == "" {
			opponent = e.text
		}
	}
	if opp >= 0 {
		opponent = ents[opp].text
	}
	return subject, opponent
}
