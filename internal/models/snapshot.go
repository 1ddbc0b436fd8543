package models

import (
	"fmt"
	"time"
)

// SnapshotKind names one of the published documents
type SnapshotKind string

const (
	KindSessions   SnapshotKind = "sessions"
	KindExhibitors SnapshotKind = "exhibitors"
	KindExperts    SnapshotKind = "experts"
	KindStandplan  SnapshotKind = "standplan"
)

// ParseKind accepts the English kind names and the legacy German file stems
func ParseKind(s string) (SnapshotKind, error) {
	switch s {
	case "sessions", "workshops":
		return KindSessions, nil
	case "exhibitors", "aussteller":
		return KindExhibitors, nil
	case "experts", "experten":
		return KindExperts, nil
	case "standplan":
		return KindStandplan, nil
	}
	return "", fmt.Errorf("unknown snapshot kind: %s (must be: sessions, exhibitors, experts)", s)
}

// Timestamp formats the generation time in the given zone (ISO-8601 with offset)
func Timestamp(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

type SessionsDocument struct {
	Generated string    `json:"generated"`
	Count     int       `json:"count"`
	Workshops []Session `json:"workshops"`
}

type ExhibitorsDocument struct {
	Generated  string      `json:"generated"`
	Count      int         `json:"count"`
	Aussteller []Exhibitor `json:"aussteller"`
}

type ExpertsDocument struct {
	Generated string   `json:"generated"`
	Count     int      `json:"count"`
	Experten  []Expert `json:"experten"`
}

// HallInfo is one floor-plan image reference
type HallInfo struct {
	Bild  string `json:"bild"`
	Label string `json:"label"`
}

// StandCoordinates places a booth marker; W/H are absent for point markers
type StandCoordinates struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	W *float64 `json:"w,omitempty"`
	H *float64 `json:"h,omitempty"`
}

// StandplanDocument is the floor-plan index derived from the exhibitors snapshot
type StandplanDocument struct {
	Generated string                      `json:"generated"`
	Hallen    map[string]HallInfo         `json:"hallen"`
	Staende   map[string]StandCoordinates `json:"staende"`
}

// NewSessionsDocument wraps sessions with a generation stamp
func NewSessionsDocument(generated string, sessions []Session) SessionsDocument {
	return SessionsDocument{Generated: generated, Count: len(sessions), Workshops: NonNil(sessions)}
}

func NewExhibitorsDocument(generated string, exhibitors []Exhibitor) ExhibitorsDocument {
	return ExhibitorsDocument{Generated: generated, Count: len(exhibitors), Aussteller: NonNil(exhibitors)}
}

func NewExpertsDocument(generated string, experts []Expert) ExpertsDocument {
	return ExpertsDocument{Generated: generated, Count: len(experts), Experten: NonNil(experts)}
}

// BuildStandplan projects exhibitors with a booth and both coordinates into
// the floor-plan index. It never consults any other source.
func BuildStandplan(generated string, halls map[string]HallInfo, exhibitors []Exhibitor) StandplanDocument {
	staende := make(map[string]StandCoordinates)
	for _, e := range exhibitors {
		if !e.HasCoordinates() {
			continue
		}
		staende[e.Stand] = StandCoordinates{X: *e.StandX, Y: *e.StandY, W: e.StandW, H: e.StandH}
	}
	if halls == nil {
		halls = map[string]HallInfo{}
	}
	return StandplanDocument{Generated: generated, Hallen: halls, Staende: staende}
}
