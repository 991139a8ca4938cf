package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// AutomatonSnapshot is the persisted form of one learning transducer.
type AutomatonSnapshot struct {
	VersionedRecord
	ID             string             `json:"id"`
	RunID          string             `json:"run_id,omitempty"`
	InputAlphabet  []string           `json:"input_alphabet"`
	OutputAlphabet []string           `json:"output_alphabet"`
	Params         map[string]float64 `json:"params"`
	States         []StateRecord      `json:"states"`
	Transitions    []TransitionRecord `json:"transitions"`
	Expectancies   []ExpectancyRecord `json:"expectancies"`
	Reward         []int              `json:"reward"`
	Punishment     []int              `json:"punishment"`
	Current        int                `json:"current"`
	Last           int                `json:"last"`
	Anchor         int                `json:"anchor"`
	LastTime       float64            `json:"last_time"`
}

type StateRecord struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type TransitionRecord struct {
	ID           int                `json:"id"`
	From         int                `json:"from"`
	To           int                `json:"to"`
	Symbol       string             `json:"symbol"`
	Distribution map[string]float64 `json:"distribution"`
	Confidence   float64            `json:"confidence"`
	Temporary    bool               `json:"temporary"`
}

type ExpectancyRecord struct {
	A        int     `json:"a"`
	B        int     `json:"b"`
	Strength float64 `json:"strength"`
}

// RunRecord summarizes one colony run.
type RunRecord struct {
	VersionedRecord
	ID           string  `json:"id"`
	Scape        string  `json:"scape"`
	Agents       int     `json:"agents"`
	Episodes     int     `json:"episodes"`
	Seed         int64   `json:"seed"`
	CreatedAtUTC string  `json:"created_at_utc"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
}

// EpisodeRecord is the outcome of one agent living through one episode.
type EpisodeRecord struct {
	AgentID     string  `json:"agent_id"`
	Episode     int     `json:"episode"`
	Steps       int     `json:"steps"`
	Rewards     int     `json:"rewards"`
	Punishments int     `json:"punishments"`
	States      int     `json:"states"`
	Fitness     float64 `json:"fitness"`
	Outcome     string  `json:"outcome,omitempty"`
}
