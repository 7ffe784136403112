package storage

// Fact is a stored factoid. Index is the lookup key (a user ID or the
// lowercased text); Key is what gets rendered.
type Fact struct {
	Index string   `json:"index"`
	Key   string   `json:"key"`
	Be    string   `json:"be"`
	Reply bool     `json:"reply"`
	Value []string `json:"value"`
}

// KarmaEntry is one leaderboard row.
type KarmaEntry struct {
	Key   string
	Score int
}

// karmaDocument and factoidDocument are the persisted shapes, one document
// per team.
type karmaDocument struct {
	ID   string         `json:"id"`
	Data map[string]int `json:"data"`
}

type factoidDocument struct {
	ID   string          `json:"id"`
	Data map[string]Fact `json:"data"`
}

// KarmaKey returns the document key holding a team's karma.
func KarmaKey(team string) string {
	return team + "_karma"
}

// FactoidKey returns the document key holding a team's factoids.
func FactoidKey(team string) string {
	return team + "_factoids"
}
