package match

// TeamStats holds the per-team counters derived from the ledger.
type TeamStats struct {
	Goals         int `json:"goals"`
	Assists       int `json:"assists"`
	Shots         int `json:"shots"`
	ShotsOnTarget int `json:"shotsOnTarget"`
	Corners       int `json:"corners"`
	Fouls         int `json:"fouls"`
	YellowCards   int `json:"yellowCards"`
	RedCards      int `json:"redCards"`
	Offsides      int `json:"offsides"`
	Possession    int `json:"possession"`
	PenaltyGoals  int `json:"penaltyGoals"`
	Substitutions int `json:"substitutions"`
	Injuries      int `json:"injuries"`
}

// Split is a home/away pair.
type Split struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// CardSummary splits yellow and red cards by side.
type CardSummary struct {
	Yellow Split `json:"yellow"`
	Red    Split `json:"red"`
}

// Stats is the match-level aggregate. The summaries are projections of the
// two team blocks and are recomputed whenever the team blocks change.
type Stats struct {
	HomeTeam   TeamStats   `json:"homeTeam"`
	AwayTeam   TeamStats   `json:"awayTeam"`
	Possession Split       `json:"possession"`
	Shots      Split       `json:"shots"`
	Corners    Split       `json:"corners"`
	Fouls      Split       `json:"fouls"`
	Cards      CardSummary `json:"cards"`
}
