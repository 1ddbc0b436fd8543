package generate

// Session properties in the workshop database
const (
	PropTitel        = "Titel"
	PropTyp          = "Typ"
	PropTag          = "Tag"
	PropDatum        = "Datum"
	PropOrt          = "Bühne/Ort"
	PropBeschreibung = "Beschreibung"
	PropKategorien   = "Kategorien"
	PropStatus       = "Status"
	PropFirmen       = "Referenten (Firma)"
	PropPersonen     = "Referent (Person)"
	PropAussteller   = "Aussteller (AS26)"
)

// Exhibitor properties in the exhibitor database
const (
	PropFirma     = "Aussteller"
	PropStand     = "Stand"
	PropKategorie = "Kategorie"
	PropWebsite   = "Website"
	PropInstagram = "Instagram"
	PropLogo      = "Logo"
	PropStandX    = "Stand_X"
	PropStandY    = "Stand_Y"
	PropStandW    = "Stand_W"
	PropStandH    = "Stand_H"
)
