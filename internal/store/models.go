package store

import (
	"strings"
	"time"
)

// ShowType mirrors the media format reported by the metadata service.
type ShowType string

const (
	TypeUnknown ShowType = "UNKNOWN"
	TypeTV      ShowType = "TV"
	TypeTVShort ShowType = "TV_SHORT"
	TypeMovie   ShowType = "MOVIE"
	TypeSpecial ShowType = "SPECIAL"
	TypeOVA     ShowType = "OVA"
	TypeONA     ShowType = "ONA"
	TypeMusic   ShowType = "MUSIC"
)

// ParseShowType converts a string into a known ShowType.
func ParseShowType(value string) ShowType {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "TV":
		return TypeTV
	case "TV_SHORT":
		return TypeTVShort
	case "MOVIE":
		return TypeMovie
	case "SPECIAL":
		return TypeSpecial
	case "OVA":
		return TypeOVA
	case "ONA":
		return TypeONA
	case "MUSIC":
		return TypeMusic
	default:
		return TypeUnknown
	}
}

// AiringStatus mirrors the airing status reported by the metadata service.
type AiringStatus string

const (
	AiringReleasing AiringStatus = "RELEASING"
	AiringUpcoming  AiringStatus = "NOT_YET_RELEASED"
	AiringFinished  AiringStatus = "FINISHED"
	AiringCancelled AiringStatus = "CANCELLED"
	AiringHiatus    AiringStatus = "HIATUS"
)

// Ended reports whether the status means no further episodes will air.
func (s AiringStatus) Ended() bool {
	return s == AiringFinished || s == AiringCancelled
}

// EpisodeState represents the lifecycle of a tracked episode.
type EpisodeState string

const (
	EpisodeUpcoming EpisodeState = "upcoming"
	EpisodeDue      EpisodeState = "due"
	EpisodePosted   EpisodeState = "posted"
	EpisodeExpired  EpisodeState = "expired"
)

var allEpisodeStates = []EpisodeState{
	EpisodeUpcoming,
	EpisodeDue,
	EpisodePosted,
	EpisodeExpired,
}

// AllEpisodeStates returns the ordered list of known episode states.
func AllEpisodeStates() []EpisodeState {
	cp := make([]EpisodeState, len(allEpisodeStates))
	copy(cp, allEpisodeStates)
	return cp
}

// ThreadKind distinguishes standalone posts from megathread comments.
type ThreadKind string

const (
	ThreadStandalone        ThreadKind = "standalone"
	ThreadMegathreadComment ThreadKind = "megathread_comment"
)

// Show is a tracked media entry persisted in SQLite. The ID is the external
// media identifier and doubles as the primary key.
type Show struct {
	ID        int64
	MALID     int64
	Name      string
	NameEN    string
	Type      ShowType
	Country   string
	HasSource bool
	NSFW      bool
	Airing    AiringStatus
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsMovie reports whether the show uses the movie post templates.
func (s Show) IsMovie() bool {
	return s.Type == TypeMovie
}

// Episode is one scheduled episode of a tracked show.
type Episode struct {
	ID        int64
	ShowID    int64
	Number    int
	AirTime   time.Time
	State     EpisodeState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Thread records the discussion created for a posted episode together with
// the last observed engagement snapshot.
type Thread struct {
	ID        int64
	EpisodeID int64
	ShowID    int64
	Episode   int
	Kind      ThreadKind
	URL       string
	Votes     int
	Comments  int
	Stale     bool
	CheckedAt *time.Time
	CreatedAt time.Time
}

// Megathread is one rolling discussion post for a show. At most one per show
// is open at a time; a closed megathread is never reopened.
type Megathread struct {
	ShowID       int64
	Seq          int
	URL          string
	EpisodeCount int
	Open         bool
	CreatedAt    time.Time
}

// Stats aggregates episode counts per lifecycle state.
type Stats struct {
	Shows    int
	Enabled  int
	Episodes map[EpisodeState]int
}
