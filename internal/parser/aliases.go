package parser

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Team is a canonical franchise and the short names it is known by.
type Team struct {
	Name    string   `yaml:"name"`
	League  string   `yaml:"league"`
	Aliases []string `yaml:"aliases"`
}

// AliasTable maps lower-cased short names to canonical franchise names.
type AliasTable struct {
	canonical map[string]string
	leagues   map[string]string
}

// NewAliasTable builds a table from teams. Every canonical name is also an
// alias of itself.
func NewAliasTable(teams []Team) *AliasTable {
	t := &AliasTable{
		canonical: make(map[string]string),
		leagues:   make(map[string]string),
	}
	t.add(teams)
	return t
}

func (t *AliasTable) add(teams []Team) {
	for _, team := range teams {
		name := strings.TrimSpace(team.Name)
		if name == "" {
			continue
		}
		t.canonical[aliasKey(name)] = name
		if team.League != "" {
			t.leagues[aliasKey(name)] = strings.ToLower(team.League)
		}
		for _, a := range team.Aliases {
			if k := aliasKey(a); k != "" {
				t.canonical[k] = name
			}
		}
	}
}

// Canonical returns the canonical name for s, or s unchanged when the table
// has no entry for it.
func (t *AliasTable) Canonical(s string) string {
	if name, ok := t.canonical[aliasKey(s)]; ok {
		return name
	}
	return s
}

// LeagueOf returns the league of a canonical team name, or "".
func (t *AliasTable) LeagueOf(name string) string {
	return t.leagues[aliasKey(name)]
}

// Len returns the number of distinct aliases.
func (t *AliasTable) Len() int { return len(t.canonical) }

func aliasKey(s string) string {
	k := strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimPrefix(k, "the ")
}

type aliasFile struct {
	Teams []Team `yaml:"teams"`
}

// LoadAliases reads a YAML overrides file and merges it over the built-in
// table. Entries in the file win over built-in aliases.
func LoadAliases(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parser: read aliases %s", path)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "parser: decode aliases %s", path)
	}
	t := DefaultAliases()
	t.add(f.Teams)
	return t, nil
}

// DefaultAliases returns the built-in NBA and NFL table.
func DefaultAliases() *AliasTable {
	return NewAliasTable(builtinTeams)
}

var builtinTeams = []Team{
	// NBA
	{"Atlanta Hawks", "nba", []string{"hawks"}},
	{"Boston Celtics", "nba", []string{"celtics", "celts"}},
	{"Brooklyn Nets", "nba", []string{"nets"}},
	{"Charlotte Hornets", "nba", []string{"hornets"}},
	{"Chicago Bulls", "nba", []string{"bulls"}},
	{"Cleveland Cavaliers", "nba", []string{"cavaliers", "cavs"}},
	{"Dallas Mavericks", "nba", []string{"mavericks", "mavs"}},
	{"Denver Nuggets", "nba", []string{"nuggets"}},
	{"Detroit Pistons", "nba", []string{"pistons"}},
	{"Golden State Warriors", "nba", []string{"warriors", "dubs", "golden state"}},
	{"Houston Rockets", "nba", []string{"rockets"}},
	{"Indiana Pacers", "nba", []string{"pacers"}},
	{"LA Clippers", "nba", []string{"clippers", "los angeles clippers"}},
	{"Los Angeles Lakers", "nba", []string{"lakers", "la lakers"}},
	{"Memphis Grizzlies", "nba", []string{"grizzlies", "grizz"}},
	{"Miami Heat", "nba", []string{"heat"}},
	{"Milwaukee Bucks", "nba", []string{"bucks"}},
	{"Minnesota Timberwolves", "nba", []string{"timberwolves", "wolves"}},
	{"New Orleans Pelicans", "nba", []string{"pelicans", "pels"}},
	{"New York Knicks", "nba", []string{"knicks"}},
	{"Oklahoma City Thunder", "nba", []string{"thunder", "okc"}},
	{"Orlando Magic", "nba", []string{"magic"}},
	{"Philadelphia 76ers", "nba", []string{"76ers", "sixers"}},
	{"Phoenix Suns", "nba", []string{"suns"}},
	{"Portland Trail Blazers", "nba", []string{"trail blazers", "blazers"}},
	{"Sacramento Kings", "nba", []string{"kings"}},
	{"San Antonio Spurs", "nba", []string{"spurs"}},
	{"Toronto Raptors", "nba", []string{"raptors"}},
	{"Utah Jazz", "nba", []string{"jazz"}},
	{"Washington Wizards", "nba", []string{"wizards"}},

	// NFL
	{"Arizona Cardinals", "nfl", []string{"cardinals"}},
	{"Atlanta Falcons", "nfl", []string{"falcons"}},
	{"Baltimore Ravens", "nfl", []string{"ravens"}},
	{"Buffalo Bills", "nfl", []string{"bills"}},
	{"Carolina Panthers", "nfl", []string{"panthers"}},
	{"Chicago Bears", "nfl", []string{"bears"}},
	{"Cincinnati Bengals", "nfl", []string{"bengals"}},
	{"Cleveland Browns", "nfl", []string{"browns"}},
	{"Dallas Cowboys", "nfl", []string{"cowboys"}},
	{"Denver Broncos", "nfl", []string{"broncos"}},
	{"Detroit Lions", "nfl", []string{"lions"}},
	{"Green Bay Packers", "nfl", []string{"packers"}},
	{"Houston Texans", "nfl", []string{"texans"}},
	{"Indianapolis Colts", "nfl", []string{"colts"}},
	{"Jacksonville Jaguars", "nfl", []string{"jaguars", "jags"}},
	{"Kansas City Chiefs", "nfl", []string{"chiefs"}},
	{"Las Vegas Raiders", "nfl", []string{"raiders"}},
	{"Los Angeles Chargers", "nfl", []string{"chargers"}},
	{"Los Angeles Rams", "nfl", []string{"rams"}},
	{"Miami Dolphins", "nfl", []string{"dolphins", "fins"}},
	{"Minnesota Vikings", "nfl", []string{"vikings"}},
	{"New England Patriots", "nfl", []string{"patriots", "pats"}},
	{"New Orleans Saints", "nfl", []string{"saints"}},
	{"New York Giants", "nfl", []string{"giants"}},
	{"New York Jets", "nfl", []string{"jets"}},
	{"Philadelphia Eagles", "nfl", []string{"eagles"}},
	{"Pittsburgh Steelers", "nfl", []string{"steelers"}},
	{"San Francisco 49ers", "nfl", []string{"49ers", "niners"}},
	{"Seattle Seahawks", "nfl", []string{"seahawks"}},
	{"Tampa Bay Buccaneers", "nfl", []string{"buccaneers", "bucs"}},
	{"Tennessee Titans", "nfl", []string{"titans"}},
	{"Washington Commanders", "nfl", []string{"commanders"}},
}
