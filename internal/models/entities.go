package models

// Person is a speaker record. Relation ids are kept for resolution but not published.
type Person struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Vorname   string `json:"vorname"`
	Nachname  string `json:"nachname"`
	Funktion  string `json:"funktion"`
	Bio       string `json:"bio"`
	Website   string `json:"website"`
	Kategorie string `json:"kategorie"`
	Foto      string `json:"foto"`

	FotoURL     string   `json:"-"`
	FirmaIDs    []string `json:"-"`
	WorkshopIDs []string `json:"-"`
}

// ExhibitorRef is the denormalized exhibitor embedded in a session
type ExhibitorRef struct {
	ID      string `json:"id"`
	Firma   string `json:"firma"`
	Stand   string `json:"stand"`
	Logo    string `json:"logo"`
	Website string `json:"website"`
}

// Session is one workshop or talk
type Session struct {
	ID           string         `json:"id"`
	PageID       string         `json:"page_id"`
	Title        string         `json:"title"`
	Typ          string         `json:"typ"`
	Tag          string         `json:"tag"`
	Zeit         string         `json:"zeit"`
	Ort          string         `json:"ort"`
	Beschreibung string         `json:"beschreibung"`
	DatumStart   *string        `json:"datum_start"`
	DatumEnd     *string        `json:"datum_end"`
	Kategorien   []string       `json:"kategorien"`
	Status       string         `json:"status"`
	Referenten   []Person       `json:"referenten"`
	Firmen       []string       `json:"firmen"`
	Aussteller   []ExhibitorRef `json:"aussteller"`
	ContentHTML  string         `json:"content_html"`
	HasContent   bool           `json:"has_content"`

	PersonIDs    []string `json:"-"`
	CompanyIDs   []string `json:"-"`
	ExhibitorIDs []string `json:"-"`
}

// Exhibitor is a company with a booth. Coordinates are percentages on the hall
// plan; W and H are only set for rectangular markers.
type Exhibitor struct {
	ID           string   `json:"id"`
	PageID       string   `json:"page_id"`
	Firma        string   `json:"firma"`
	Stand        string   `json:"stand"`
	Beschreibung string   `json:"beschreibung"`
	Kategorie    string   `json:"kategorie"`
	Kategorien   []string `json:"kategorien"`
	Website      string   `json:"website"`
	Instagram    string   `json:"instagram"`
	Logo         string   `json:"logo"`
	StandX       *float64 `json:"stand_x"`
	StandY       *float64 `json:"stand_y"`
	StandW       *float64 `json:"stand_w"`
	StandH       *float64 `json:"stand_h"`

	LogoURL string `json:"-"`
}

// Ref projects the exhibitor into its embedded form
func (e Exhibitor) Ref() ExhibitorRef {
	return ExhibitorRef{
		ID:      e.ID,
		Firma:   e.Firma,
		Stand:   e.Stand,
		Logo:    e.Logo,
		Website: e.Website,
	}
}

// HasCoordinates reports whether the exhibitor can be placed on the floor plan
func (e Exhibitor) HasCoordinates() bool {
	return e.Stand != "" && e.StandX != nil && e.StandY != nil
}

// SessionSummary is the short session form attached to an expert
type SessionSummary struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Typ        string         `json:"typ"`
	Tag        string         `json:"tag"`
	Zeit       string         `json:"zeit"`
	Ort        string         `json:"ort"`
	Kategorien []string       `json:"kategorien"`
	Status     string         `json:"status"`
	Aussteller []ExhibitorRef `json:"aussteller"`
}

// Summary projects a session into the form attached to experts
func (s Session) Summary() SessionSummary {
	return SessionSummary{
		ID:         s.ID,
		Title:      s.Title,
		Typ:        s.Typ,
		Tag:        s.Tag,
		Zeit:       s.Zeit,
		Ort:        s.Ort,
		Kategorien: NonNil(s.Kategorien),
		Status:     s.Status,
		Aussteller: NonNil(s.Aussteller),
	}
}

// Expert is a speaker with at least one confirmed session
type Expert struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Vorname    string           `json:"vorname"`
	Nachname   string           `json:"nachname"`
	Foto       string           `json:"foto"`
	Bio        string           `json:"bio"`
	Funktion   string           `json:"funktion"`
	Kategorie  string           `json:"kategorie"`
	Website    string           `json:"website"`
	Firma      string           `json:"firma"`
	Kategorien []string         `json:"kategorien"`
	Workshops  []SessionSummary `json:"workshops"`
}

// NonNil turns a nil slice into an empty one so it encodes as []
func NonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
