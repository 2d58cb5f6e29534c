package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"main/internal/schema"
	"main/internal/strategy"
	"main/pkg/conn"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry   RegistryConfig   `json:"registry"`
	Journal    JournalConfig    `json:"journal"`
	Feed       FeedConfig       `json:"feed"`
	Postgres   PostgresConfig   `json:"postgres"`
	Strategies []StrategyConfig `json:"strategies"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues"`
	Instruments []InstrumentConfig `json:"instruments"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// InstrumentConfig describes a tradable instrument entry.
type InstrumentConfig struct {
	Token  uint32           `json:"token"`
	Symbol string           `json:"symbol"`
	Venue  string           `json:"venue"`
	Scale  schema.ScaleSpec `json:"scale"`
}

// JournalConfig locates the execution journal.
type JournalConfig struct {
	Dir string `json:"dir"`
}

// FeedConfig points at the market data stream.
type FeedConfig struct {
	URL string `json:"url"`
}

// PostgresConfig describes the optional audit/state database.
type PostgresConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslMode"`
}

// StrategyConfig describes one strategy to deploy at boot.
type StrategyConfig struct {
	Type              string      `json:"type"`
	Name              string      `json:"name"`
	Underlying        string      `json:"underlying"`
	Legs              []LegConfig `json:"legs"`
	QtyPerLeg         string      `json:"qtyPerLeg"`
	StopBps           int64       `json:"stopBps"`
	AdjustCooldownSec int64       `json:"adjustCooldownSec"`
	EnterOnDeploy     bool        `json:"enterOnDeploy"`
	Product           string      `json:"product"`
	AutoArm           bool        `json:"autoArm"`
}

// LegConfig describes one option leg by symbol.
type LegConfig struct {
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
}

// StrategySpec is a resolved strategy deployment.
type StrategySpec struct {
	Type    strategy.Type
	Name    string
	Config  strategy.Config
	AutoArm bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry   *schema.Registry
	JournalDir string
	FeedURL    string
	Postgres   *conn.Option
	Strategies []StrategySpec
}

// Load reads a JSON config file and resolves every section against the
// instrument registry it defines.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	specs, err := resolveStrategies(cfg.Strategies, registry)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{
		Registry:   registry,
		JournalDir: cfg.Journal.Dir,
		FeedURL:    cfg.Feed.URL,
		Strategies: specs,
	}
	if loaded.JournalDir == "" {
		loaded.JournalDir = "testdata/journal"
	}
	if cfg.Postgres.Enabled {
		loaded.Postgres = &conn.Option{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}
	}
	return loaded, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, inst := range cfg.Instruments {
		venueID, ok := reg.VenueIDByName(inst.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", inst.Venue)
		}
		if err := validateScale(inst.Scale); err != nil {
			return nil, fmt.Errorf("invalid scale for %s: %w", inst.Symbol, err)
		}
		if err := reg.AddInstrument(schema.InstrumentToken(inst.Token), inst.Symbol, venueID, inst.Scale); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func resolveStrategies(cfgs []StrategyConfig, reg *schema.Registry) ([]StrategySpec, error) {
	specs := make([]StrategySpec, 0, len(cfgs))
	for i, cfg := range cfgs {
		spec, err := resolveStrategy(cfg, reg)
		if err != nil {
			return nil, fmt.Errorf("strategy[%d]: %w", i, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func resolveStrategy(cfg StrategyConfig, reg *schema.Registry) (StrategySpec, error) {
	typ, err := strategy.ParseType(cfg.Type)
	if err != nil {
		return StrategySpec{}, err
	}
	if cfg.Name == "" {
		return StrategySpec{}, fmt.Errorf("strategy name is empty")
	}
	underlying, ok := reg.TokenBySymbol(cfg.Underlying)
	if !ok {
		return StrategySpec{}, fmt.Errorf("underlying not found: %s", cfg.Underlying)
	}
	legs := make([]strategy.LegSpec, 0, len(cfg.Legs))
	var qtyScale schema.Scale
	for _, leg := range cfg.Legs {
		token, ok := reg.TokenBySymbol(leg.Symbol)
		if !ok {
			return StrategySpec{}, fmt.Errorf("leg instrument not found: %s", leg.Symbol)
		}
		inst, _ := reg.Instrument(token)
		venue, _ := reg.Venue(inst.VenueID)
		side, err := parseSide(leg.Side)
		if err != nil {
			return StrategySpec{}, err
		}
		legs = append(legs, strategy.LegSpec{
			Token:  token,
			Symbol: inst.Symbol,
			Venue:  venue.Name,
			Side:   side,
		})
		qtyScale = inst.Scale.QuantityScale
	}
	if cfg.QtyPerLeg == "" {
		return StrategySpec{}, fmt.Errorf("qtyPerLeg is empty")
	}
	qty, err := schema.ParseQuantity(cfg.QtyPerLeg, qtyScale)
	if err != nil {
		return StrategySpec{}, fmt.Errorf("invalid qtyPerLeg: %w", err)
	}
	product, err := parseProduct(cfg.Product)
	if err != nil {
		return StrategySpec{}, err
	}
	return StrategySpec{
		Type:    typ,
		Name:    cfg.Name,
		AutoArm: cfg.AutoArm,
		Config: strategy.Config{
			Underlying:        underlying,
			Legs:              legs,
			QtyPerLeg:         qty,
			StopBps:           cfg.StopBps,
			AdjustCooldownSec: cfg.AdjustCooldownSec,
			EnterOnDeploy:     cfg.EnterOnDeploy,
			Product:           product,
		},
	}, nil
}

func parseSide(tag string) (schema.OrderSide, error) {
	switch strings.ToUpper(tag) {
	case "BUY":
		return schema.OrderSideBuy, nil
	case "SELL":
		return schema.OrderSideSell, nil
	default:
		return schema.OrderSideUnknown, fmt.Errorf("unknown order side: %s", tag)
	}
}

func parseProduct(tag string) (schema.ProductType, error) {
	switch strings.ToUpper(tag) {
	case "", "INTRADAY":
		return schema.ProductIntraday, nil
	case "OVERNIGHT":
		return schema.ProductOvernight, nil
	default:
		return schema.ProductUnknown, fmt.Errorf("unknown product type: %s", tag)
	}
}
