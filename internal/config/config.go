package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config is the immutable runtime configuration, built once at start-up
type Config struct {
	Notion     Notion     `mapstructure:"notion" toml:"notion"`
	Output     Output     `mapstructure:"output" toml:"output"`
	Assets     Assets     `mapstructure:"assets" toml:"assets"`
	Sessions   Sessions   `mapstructure:"sessions" toml:"sessions"`
	Experts    Experts    `mapstructure:"experts" toml:"experts"`
	Standplan  Standplan  `mapstructure:"standplan" toml:"standplan"`
	Redundancy Redundancy `mapstructure:"redundancy" toml:"redundancy"`
	Lock       Lock       `mapstructure:"lock" toml:"lock"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Timezone   string     `mapstructure:"timezone" toml:"timezone"`

	location *time.Location
}

// Notion holds the remote store credentials and database ids.
// Key names follow the legacy NOTION_* environment variables.
type Notion struct {
	Token           string        `mapstructure:"token" toml:"token"`
	Version         string        `mapstructure:"version" toml:"version"`
	BaseURL         string        `mapstructure:"base_url" toml:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout" toml:"timeout"`
	RequestInterval time.Duration `mapstructure:"request_interval" toml:"request_interval"`
	PageSize        int           `mapstructure:"page_size" toml:"page_size"`
	WorkshopDB      string        `mapstructure:"workshop_db" toml:"workshop_db"`
	AusstellerDB    string        `mapstructure:"aussteller_db" toml:"aussteller_db"`
	ReferentenDB    string        `mapstructure:"referenten_db" toml:"referenten_db"`
}

type Output struct {
	Dir            string `mapstructure:"dir" toml:"dir"`
	SessionsFile   string `mapstructure:"sessions_file" toml:"sessions_file"`
	ExhibitorsFile string `mapstructure:"exhibitors_file" toml:"exhibitors_file"`
	ExpertsFile    string `mapstructure:"experts_file" toml:"experts_file"`
	StandplanFile  string `mapstructure:"standplan_file" toml:"standplan_file"`
}

func (o Output) SessionsPath() string   { return filepath.Join(o.Dir, o.SessionsFile) }
func (o Output) ExhibitorsPath() string { return filepath.Join(o.Dir, o.ExhibitorsFile) }
func (o Output) ExpertsPath() string    { return filepath.Join(o.Dir, o.ExpertsFile) }
func (o Output) StandplanPath() string  { return filepath.Join(o.Dir, o.StandplanFile) }

// Assets configures image materialization
type Assets struct {
	Dir             string        `mapstructure:"dir" toml:"dir"`
	URLPrefix       string        `mapstructure:"url_prefix" toml:"url_prefix"`
	Timeout         time.Duration `mapstructure:"timeout" toml:"timeout"`
	MinBytes        int           `mapstructure:"min_bytes" toml:"min_bytes"`
	Quality         float32       `mapstructure:"quality" toml:"quality"`
	PersonMaxWidth  int           `mapstructure:"person_max_width" toml:"person_max_width"`
	LogoMaxWidth    int           `mapstructure:"logo_max_width" toml:"logo_max_width"`
	ContentMaxWidth int           `mapstructure:"content_max_width" toml:"content_max_width"`
}

type Sessions struct {
	Days []string `mapstructure:"days" toml:"days"`
}

type Experts struct {
	ConfirmedStatus string `mapstructure:"confirmed_status" toml:"confirmed_status"`
}

// Hall describes one floor-plan image. Halls are a list rather than a map
// because viper lower-cases map keys and hall codes are case-sensitive.
type Hall struct {
	Code  string `mapstructure:"code" toml:"code"`
	Bild  string `mapstructure:"bild" toml:"bild"`
	Label string `mapstructure:"label" toml:"label"`
}

type Standplan struct {
	Halls []Hall `mapstructure:"halls" toml:"halls"`
}

type Rule struct {
	Name    string `mapstructure:"name" toml:"name"`
	Pattern string `mapstructure:"pattern" toml:"pattern"`
	Action  string `mapstructure:"action" toml:"action"`
}

type Redundancy struct {
	Rules []Rule `mapstructure:"rules" toml:"rules"`
}

type Lock struct {
	Path       string        `mapstructure:"path" toml:"path"`
	StaleAfter time.Duration `mapstructure:"stale_after" toml:"stale_after"`
}

type Log struct {
	Mode string `mapstructure:"mode" toml:"mode"`
}

// SetDefaults registers every known key so AutomaticEnv can override it
func SetDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.version", "2022-06-28")
	v.SetDefault("notion.base_url", "https://api.notion.com/v1")
	v.SetDefault("notion.timeout", 10*time.Second)
	v.SetDefault("notion.request_interval", 350*time.Millisecond)
	v.SetDefault("notion.page_size", 100)
	v.SetDefault("notion.workshop_db", "")
	v.SetDefault("notion.aussteller_db", "")
	v.SetDefault("notion.referenten_db", "")

	v.SetDefault("output.dir", filepath.Join("public", "api"))
	v.SetDefault("output.sessions_file", "workshops.json")
	v.SetDefault("output.exhibitors_file", "aussteller.json")
	v.SetDefault("output.experts_file", "experten.json")
	v.SetDefault("output.standplan_file", "standplan.json")

	v.SetDefault("assets.dir", filepath.Join("public", "img"))
	v.SetDefault("assets.url_prefix", "/img")
	v.SetDefault("assets.timeout", 15*time.Second)
	v.SetDefault("assets.min_bytes", 100)
	v.SetDefault("assets.quality", 82)
	v.SetDefault("assets.person_max_width", 400)
	v.SetDefault("assets.logo_max_width", 200)
	v.SetDefault("assets.content_max_width", 800)

	v.SetDefault("sessions.days", []string{"Freitag", "Samstag", "Sonntag"})
	v.SetDefault("experts.confirmed_status", "Referent bestätigt")
	v.SetDefault("standplan.halls", DefaultHalls())
	v.SetDefault("redundancy.rules", []Rule{})

	v.SetDefault("lock.path", filepath.Join("storage", "generate-json.lock"))
	v.SetDefault("lock.stale_after", 2*time.Hour)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("timezone", "Europe/Berlin")
}

// DefaultHalls returns the floor-plan hall table of the venue
func DefaultHalls() []Hall {
	return []Hall{
		{Code: "FW", Bild: "/img/plan/FW.jpg", Label: "Foyer West"},
		{Code: "AT", Bild: "/img/plan/FW.jpg", Label: "Foyer West (Atrium)"},
		{Code: "FG", Bild: "/img/plan/FG.jpg", Label: "Freigelände West"},
		{Code: "FGO", Bild: "/img/plan/FG.jpg", Label: "Freigelände Ost"},
		{Code: "A3", Bild: "/img/plan/A3.jpg", Label: "Halle A3"},
		{Code: "A4", Bild: "/img/plan/A4.jpg", Label: "Halle A4"},
		{Code: "A5", Bild: "/img/plan/A5.jpg", Label: "Halle A5"},
		{Code: "A6", Bild: "/img/plan/A6.jpg", Label: "Halle A6"},
	}
}

// Load unmarshals the viper state into a Config and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.Notion.PageSize <= 0 || cfg.Notion.PageSize > 100 {
		cfg.Notion.PageSize = 100
	}
	if cfg.Assets.Quality <= 0 || cfg.Assets.Quality > 100 {
		return nil, fmt.Errorf("assets.quality must be in (0, 100], got %v", cfg.Assets.Quality)
	}
	for _, r := range cfg.Redundancy.Rules {
		if r.Action != "" && r.Action != "drop" && r.Action != "keep" {
			return nil, fmt.Errorf("redundancy rule %q: unknown action %q", r.Name, r.Action)
		}
	}

	return &cfg, nil
}

// Location returns the timezone used for snapshot timestamps and time slots
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DatabaseID resolves a short database key (workshops, aussteller, referenten)
// to its configured id; unknown keys are returned unchanged.
func (c *Config) DatabaseID(key string) string {
	switch strings.ToLower(key) {
	case "workshops", "workshop", "sessions":
		return c.Notion.WorkshopDB
	case "aussteller", "exhibitors":
		return c.Notion.AusstellerDB
	case "referenten", "experten", "experts", "speakers":
		return c.Notion.ReferentenDB
	default:
		return key
	}
}
