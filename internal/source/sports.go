package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/pkg/espn"
)

// Sports answers game-outcome queries from ESPN scoreboards.
type Sports struct {
	client espn.Client
}

// NewSports creates the sports adapter.
func NewSports(client espn.Client) *Sports {
	return &Sports{client: client}
}

func (s *Sports) Domain() model.Domain { return model.DomainSports }

func (s *Sports) Source() string { return "espn" }

func (s *Sports) Query(ctx context.Context, sq model.StructuredQuery) (model.Payload, error) {
	q, ok := sq.(*model.SportsQuery)
	if !ok {
		return nil, model.Errorf(model.KindInternal, "sports adapter got %T", sq)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if !espn.SupportsLeague(q.League) {
		return nil, model.Errorf(model.KindParse, "league %q is not covered", q.League)
	}

	if q.GameID != "" {
		ev, err := s.client.Summary(ctx, q.League, q.GameID)
		if err != nil {
			return nil, classify("espn", err, fmt.Sprintf("game %s not found", q.GameID))
		}
		return buildGame(ev, q)
	}

	date, err := time.Parse(model.DateLayout, q.Date)
	if err != nil {
		return nil, model.Errorf(model.KindParse, "invalid date %q", q.Date)
	}

	sb, err := s.client.Scoreboard(ctx, q.League, date)
	if err != nil {
		return nil, classify("espn", err, fmt.Sprintf("no %s scoreboard for %s", q.League, q.Date))
	}

	ev := findGame(sb.Events, q)
	if ev == nil {
		return nil, model.Errorf(model.KindNotFound, "no %s game found on %s", q.Team, q.Date)
	}
	return buildGame(ev, q)
}

// findGame picks the event featuring the subject team, preferring one where
// the other side is the named opponent.
func findGame(events []espn.Event, q *model.SportsQuery) *espn.Event {
	var first *espn.Event
	for i := range events {
		ev := &events[i]
		if len(ev.Competitions) == 0 {
			continue
		}
		subj, other := sides(ev.Competitions[0].Competitors, q.Team)
		if subj == nil {
			continue
		}
		if q.Opponent == "" || (other != nil && teamMatches(other.Team, q.Opponent)) {
			return ev
		}
		if first == nil {
			first = ev
		}
	}
	return first
}

// sides returns the competitor matching team and the other competitor.
func sides(cs []espn.Competitor, team string) (subject, other *espn.Competitor) {
	if team == "" {
		return nil, nil
	}
	for i := range cs {
		if teamMatches(cs[i].Team, team) {
			subject = &cs[i]
			break
		}
	}
	if subject == nil {
		return nil, nil
	}
	for i := range cs {
		if &cs[i] != subject {
			return subject, &cs[i]
		}
	}
	return subject, nil
}

// teamMatches reports whether name is a caseless substring of one of the
// provider's team names, or equals the abbreviation.
func teamMatches(t espn.Team, name string) bool {
	if name == "" {
		return false
	}
	for _, field := range []string{t.DisplayName, t.ShortDisplayName, t.Name} {
		if containsFold(field, name) {
			return true
		}
	}
	return t.Abbreviation != "" && fold(t.Abbreviation) == fold(name)
}

func buildGame(ev *espn.Event, q *model.SportsQuery) (*GamePayload, error) {
	if len(ev.Competitions) == 0 || len(ev.Competitions[0].Competitors) < 2 {
		return nil, model.Errorf(model.KindMalformedResponse, "game %s has no competitors", ev.ID)
	}
	comp := ev.Competitions[0]

	p := &GamePayload{
		GameID:    ev.ID,
		Name:      ev.Name,
		League:    q.League,
		Date:      q.Date,
		Status:    firstNonEmpty(ev.Status.Type.Description, ev.Status.Type.Detail, ev.Status.Type.Name),
		Completed: ev.Status.Type.Completed,
	}
	if p.Date == "" && len(ev.Date) >= len(model.DateLayout) {
		p.Date = ev.Date[:len(model.DateLayout)]
	}

	for _, c := range comp.Competitors {
		ts := TeamScore{
			Name:         c.Team.DisplayName,
			Abbreviation: c.Team.Abbreviation,
			Score:        atoi(c.Score),
			Winner:       c.Winner,
		}
		if c.HomeAway == "home" {
			p.Home = ts
		} else {
			p.Away = ts
		}
		if c.Winner {
			p.Winner = c.Team.DisplayName
		}
	}
	if p.Name == "" {
		p.Name = fmt.Sprintf("%s at %s", p.Away.Name, p.Home.Name)
	}

	subj, other := sides(comp.Competitors, q.Team)
	if subj != nil {
		p.Subject = subj.Team.DisplayName
		if p.Completed {
			won := subj.Winner
			p.SubjectWon = &won
		}
		p.OpponentCorroborated = q.Opponent != "" && other != nil && teamMatches(other.Team, q.Opponent)
	}

	p.Summary = summarizeGame(p)
	return p, nil
}

func summarizeGame(p *GamePayload) string {
	score := fmt.Sprintf("%s %d, %s %d", p.Away.Name, p.Away.Score, p.Home.Name, p.Home.Score)
	if !p.Completed {
		return fmt.Sprintf("%s (%s)", score, p.Status)
	}
	if p.Winner == "" {
		return fmt.Sprintf("%s (%s, no winner)", score, p.Status)
	}
	return fmt.Sprintf("%s won: %s (%s)", p.Winner, score, p.Status)
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
