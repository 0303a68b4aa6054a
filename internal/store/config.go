package store

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"

	ProfileDefault = "default"
	ProfileMock    = "mock"
)

type Config struct {
	Mode                string             `yaml:"mode" validate:"oneof=DRY_RUN LIVE"`
	Exchange            string             `yaml:"exchange" validate:"required"`
	Symbols             []string           `yaml:"symbols" validate:"min=1,dive,required"`
	Timeframe           string             `yaml:"timeframe" validate:"oneof=M1 M3 M5 M10 M15 M30 H1 D1"`
	Bars                int                `yaml:"bars" validate:"gte=5"`
	PollSeconds         int                `yaml:"poll_seconds" validate:"gt=0"`
	RetryPauseSeconds   int                `yaml:"retry_pause_seconds" validate:"gte=0"`
	CycleTimeoutSeconds int                `yaml:"cycle_timeout_seconds" validate:"gt=0"`
	Parallelism         int                `yaml:"parallelism" validate:"gt=0"`
	Profile             string             `yaml:"profile" validate:"required"`
	Profiles            map[string]Profile `yaml:"profiles" validate:"dive"`
	Paper               PaperConfig        `yaml:"paper"`
	Kite                KiteConfig         `yaml:"kite"`
	Calendar            CalendarConfig     `yaml:"calendar"`
	Journal             JournalConfig      `yaml:"journal"`
}

// Profile is one named set of guard and trend parameters. Historical
// threshold variants are kept as separate profiles.
type Profile struct {
	Guard GuardConfig `yaml:"guard"`
	Trend TrendConfig `yaml:"trend"`
}

type GuardConfig struct {
	MaxPositions              int     `yaml:"max_positions" validate:"gt=0"`
	AllowHedging              bool    `yaml:"allow_hedging"`
	MinZoneDistancePoints     float64 `yaml:"min_zone_distance_points" validate:"gte=0"`
	RiskPercent               float64 `yaml:"risk_percent" validate:"gte=0,lte=100"`
	MinLot                    float64 `yaml:"min_lot" validate:"gt=0"`
	LotStep                   float64 `yaml:"lot_step" validate:"gt=0"`
	SLBasePoints              int     `yaml:"sl_base_points" validate:"gt=0"`
	TPRatio                   float64 `yaml:"tp_ratio" validate:"gt=0"`
	VolatilityThresholdPoints float64 `yaml:"volatility_threshold_points" validate:"gt=0"`
	VolatilityMeasure         string  `yaml:"volatility_measure" validate:"oneof=range body"`
	TrendStrengthThreshold    float64 `yaml:"trend_strength_threshold" validate:"gte=0"`
	EntryTolerancePercent     float64 `yaml:"entry_tolerance_percent" validate:"gte=0,lt=100"`
	Deviation                 int     `yaml:"deviation" validate:"gte=0"`
	Magic                     int     `yaml:"magic" validate:"gte=0"`
}

type TrendConfig struct {
	FastSpan   int     `yaml:"fast_span" validate:"gt=0"`
	SlowSpan   int     `yaml:"slow_span" validate:"gtfield=FastSpan"`
	RSIPeriod  int     `yaml:"rsi_period" validate:"gt=1"`
	Lookback   int     `yaml:"lookback" validate:"gtfield=RSIPeriod"`
	Overbought float64 `yaml:"overbought" validate:"gt=50,lte=100"`
	Oversold   float64 `yaml:"oversold" validate:"gte=0,lt=50"`
	Dampening  float64 `yaml:"dampening" validate:"gte=0,lte=1"`
}

type PaperConfig struct {
	Balance      float64 `yaml:"balance" validate:"gte=0"`
	Leverage     float64 `yaml:"leverage" validate:"gt=0"`
	ContractSize float64 `yaml:"contract_size" validate:"gt=0"`
	SpreadPoints float64 `yaml:"spread_points" validate:"gte=0"`
	Point        float64 `yaml:"point" validate:"gt=0"`
	TickValue    float64 `yaml:"tick_value" validate:"gt=0"`
	LotStep      float64 `yaml:"lot_step" validate:"gt=0"`
	MinLot       float64 `yaml:"min_lot" validate:"gt=0"`
	BasePrice    float64 `yaml:"base_price" validate:"gt=0"`
	Amplitude    float64 `yaml:"amplitude" validate:"gte=0"`
	// BarsDir holds optional <SYMBOL>.csv files replayed instead of the synthetic series.
	BarsDir string `yaml:"bars_dir"`
}

type KiteConfig struct {
	APIKeyEnv      string `yaml:"api_key_env" validate:"required"`
	AccessTokenEnv string `yaml:"access_token_env" validate:"required"`
	Product        string `yaml:"product" validate:"oneof=MIS CNC NRML"`
	HistoryDays    int    `yaml:"history_days" validate:"gt=0"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gt=0"`
}

type CalendarConfig struct {
	Enabled             bool                `yaml:"enabled"`
	URL                 string              `yaml:"url" validate:"omitempty,url"`
	RowSelector         string              `yaml:"row_selector"`
	TimeSelector        string              `yaml:"time_selector"`
	TimeAttr            string              `yaml:"time_attr"`
	TimeLayout          string              `yaml:"time_layout"`
	CurrencySelector    string              `yaml:"currency_selector"`
	ImpactSelector      string              `yaml:"impact_selector"`
	ImpactAttr          string              `yaml:"impact_attr"`
	TitleSelector       string              `yaml:"title_selector"`
	ImpactLevels        []string            `yaml:"impact_levels"`
	WindowBeforeMinutes int                 `yaml:"window_before_minutes" validate:"gte=0"`
	WindowAfterMinutes  int                 `yaml:"window_after_minutes" validate:"gte=0"`
	RefreshMinutes      int                 `yaml:"refresh_minutes" validate:"gt=0"`
	TimeoutSeconds      int                 `yaml:"timeout_seconds" validate:"gt=0"`
	Currencies          map[string][]string `yaml:"currencies"`
}

type JournalConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days" validate:"gte=0"`
	// SummaryTime is the local journal time after which the daily report is written.
	SummaryTime string `yaml:"summary_time" validate:"datetime=15:04"`
}

// DefaultProfile is the canonical threshold set.
func DefaultProfile() Profile {
	return Profile{
		Guard: GuardConfig{
			MaxPositions:              5,
			RiskPercent:               1.0,
			MinLot:                    0.01,
			LotStep:                   0.01,
			SLBasePoints:              100,
			TPRatio:                   1.5,
			VolatilityThresholdPoints: 50,
			VolatilityMeasure:         "range",
			TrendStrengthThreshold:    0.5,
			EntryTolerancePercent:     0.3,
			Deviation:                 10,
			Magic:                     234000,
		},
		Trend: TrendConfig{
			FastSpan:   20,
			SlowSpan:   50,
			RSIPeriod:  14,
			Lookback:   34,
			Overbought: 70,
			Oversold:   30,
			Dampening:  0.5,
		},
	}
}

// MockProfile trades a fixed 0.1 lot with symmetric 50 point exits and
// measures volatility on the candle body.
func MockProfile() Profile {
	p := DefaultProfile()
	p.Guard.RiskPercent = 0
	p.Guard.MinLot = 0.1
	p.Guard.SLBasePoints = 50
	p.Guard.TPRatio = 1.0
	p.Guard.VolatilityMeasure = "body"
	p.Guard.EntryTolerancePercent = 0
	return p
}

// UnmarshalYAML fills fields missing from a profile with the canonical defaults.
func (p *Profile) UnmarshalYAML(node *yaml.Node) error {
	type plain Profile
	raw := plain(DefaultProfile())
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = Profile(raw)
	return nil
}

// ActiveProfile returns the profile selected by Profile.
func (c *Config) ActiveProfile() Profile {
	if p, ok := c.Profiles[c.Profile]; ok {
		return p
	}
	return DefaultProfile()
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = multierr.Append(errs, fmt.Errorf("%s: failed '%s' check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = multierr.Append(errs, err)
		}
	}

	if _, ok := c.Profiles[c.Profile]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("unknown profile '%s'", c.Profile))
	} else if lb := c.ActiveProfile().Trend.Lookback; c.Bars < lb {
		errs = multierr.Append(errs, fmt.Errorf("bars (%d) must cover the trend lookback (%d)", c.Bars, lb))
	}

	if c.Calendar.Enabled && c.Calendar.URL == "" {
		errs = multierr.Append(errs, errors.New("calendar.url is required when the calendar is enabled"))
	}

	if c.Mode == ModeLive {
		if os.Getenv(c.Kite.APIKeyEnv) == "" || os.Getenv(c.Kite.AccessTokenEnv) == "" {
			errs = multierr.Append(errs, fmt.Errorf("LIVE mode requires %s and %s", c.Kite.APIKeyEnv, c.Kite.AccessTokenEnv))
		}
	}

	return errs
}

// Default returns a configuration with every default applied and no symbols.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDryRun
	}
	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.Timeframe == "" {
		c.Timeframe = "M15"
	}
	if c.Bars == 0 {
		c.Bars = 200
	}
	if c.PollSeconds == 0 {
		c.PollSeconds = 10
	}
	if c.RetryPauseSeconds == 0 {
		c.RetryPauseSeconds = 300
	}
	if c.CycleTimeoutSeconds == 0 {
		c.CycleTimeoutSeconds = 30
	}
	if c.Parallelism == 0 {
		c.Parallelism = 4
	}
	if c.Profile == "" {
		c.Profile = ProfileDefault
	}
	if c.Profiles == nil {
		c.Profiles = map[string]Profile{}
	}
	if _, ok := c.Profiles[ProfileDefault]; !ok {
		c.Profiles[ProfileDefault] = DefaultProfile()
	}
	if _, ok := c.Profiles[ProfileMock]; !ok {
		c.Profiles[ProfileMock] = MockProfile()
	}

	p := &c.Paper
	if p.Balance == 0 {
		p.Balance = 10000
	}
	if p.Leverage == 0 {
		p.Leverage = 100
	}
	if p.ContractSize == 0 {
		p.ContractSize = 100000
	}
	if p.SpreadPoints == 0 {
		p.SpreadPoints = 2
	}
	if p.Point == 0 {
		p.Point = 0.0001
	}
	if p.TickValue == 0 {
		p.TickValue = 10
	}
	if p.LotStep == 0 {
		p.LotStep = 0.01
	}
	if p.MinLot == 0 {
		p.MinLot = 0.01
	}
	if p.BasePrice == 0 {
		p.BasePrice = 1.1
	}
	if p.Amplitude == 0 {
		p.Amplitude = 0.002
	}

	k := &c.Kite
	if k.APIKeyEnv == "" {
		k.APIKeyEnv = "KITE_API_KEY"
	}
	if k.AccessTokenEnv == "" {
		k.AccessTokenEnv = "KITE_ACCESS_TOKEN"
	}
	if k.Product == "" {
		k.Product = "MIS"
	}
	if k.HistoryDays == 0 {
		k.HistoryDays = 30
	}
	if k.TimeoutSeconds == 0 {
		k.TimeoutSeconds = 10
	}

	cal := &c.Calendar
	if cal.RowSelector == "" {
		cal.RowSelector = "tr.calendar-row"
	}
	if cal.TimeSelector == "" {
		cal.TimeSelector = "td.time"
	}
	if cal.TimeAttr == "" {
		cal.TimeAttr = "data-timestamp"
	}
	if cal.CurrencySelector == "" {
		cal.CurrencySelector = "td.currency"
	}
	if cal.ImpactSelector == "" {
		cal.ImpactSelector = "td.impact"
	}
	if cal.TitleSelector == "" {
		cal.TitleSelector = "td.event"
	}
	if len(cal.ImpactLevels) == 0 {
		cal.ImpactLevels = []string{"High"}
	}
	if cal.WindowBeforeMinutes == 0 {
		cal.WindowBeforeMinutes = 30
	}
	if cal.WindowAfterMinutes == 0 {
		cal.WindowAfterMinutes = 30
	}
	if cal.RefreshMinutes == 0 {
		cal.RefreshMinutes = 60
	}
	if cal.TimeoutSeconds == 0 {
		cal.TimeoutSeconds = 10
	}

	if c.Journal.Dir == "" {
		c.Journal.Dir = "logs"
	}
	if c.Journal.SummaryTime == "" {
		c.Journal.SummaryTime = "15:40"
	}
}

// applyEnv lets the deployment environment override a handful of fields.
func (c *Config) applyEnv() error {
	var errs error

	if v := os.Getenv("BOT_MODE"); v != "" {
		c.Mode = strings.ToUpper(v)
	}
	if v := os.Getenv("BOT_PROFILE"); v != "" {
		c.Profile = v
	}
	if v := os.Getenv("BOT_SYMBOLS"); v != "" {
		c.Symbols = c.Symbols[:0]
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Symbols = append(c.Symbols, s)
			}
		}
	}
	if v := os.Getenv("BOT_POLL_SECONDS"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("BOT_POLL_SECONDS: %w", err))
		} else {
			c.PollSeconds = n
		}
	}
	if v := os.Getenv("BOT_CALENDAR_ENABLED"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("BOT_CALENDAR_ENABLED: %w", err))
		} else {
			c.Calendar.Enabled = b
		}
	}
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		c.Journal.Dir = v
	}
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("TRADER_LOG_RETENTION_DAYS: %w", err))
		} else {
			c.Journal.RetentionDays = n
		}
	}

	p, ok := c.Profiles[c.Profile]
	if !ok {
		return errs
	}
	if v := os.Getenv("BOT_RISK_PERCENT"); v != "" {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("BOT_RISK_PERCENT: %w", err))
		} else {
			p.Guard.RiskPercent = f
		}
	}
	if v := os.Getenv("BOT_MAX_POSITIONS"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("BOT_MAX_POSITIONS: %w", err))
		} else {
			p.Guard.MaxPositions = n
		}
	}
	c.Profiles[c.Profile] = p

	return errs
}

// Parse decodes yaml, applies defaults and environment overrides, then validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.applyEnv(); err != nil {
		return nil, fmt.Errorf("config environment overrides: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
