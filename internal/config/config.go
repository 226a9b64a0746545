package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleOrder       Role = "order"
	RoleInventory   Role = "inventory"
	RolePayment     Role = "payment"
	RoleFulfillment Role = "fulfillment"
	RoleAll         Role = "all"
)

func (r Role) Runs(other Role) bool { return r == RoleAll || r == other }

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	BrokerMemory  = "memory"
	BrokerKafka   = "kafka"
	DedupeMemory  = "memory"
	DedupeRedis   = "redis"
)

type Config struct {
	Role        Role
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string

	// HTTPAddr is used by single-role processes; RoleAddrs by the "all" role.
	HTTPAddr  string
	RoleAddrs map[Role]string

	InventoryURL      string
	PaymentURL        string
	OrderURL          string
	DependencyTimeout time.Duration

	UnitPrice          decimal.Decimal
	PaymentDeclineRate float64

	Store       string
	DatabaseURL string
	SeedData    bool

	Broker           string
	KafkaBrokers     []string
	OrdersTopic      string
	FulfillmentQueue string

	FulfillmentStore string
	RedisAddr        string

	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Load reads an optional dotenv file, then the environment, then command-line flags.
// Variables already present in the environment win over the dotenv file.
func Load(args []string) (Config, error) {
	fsFlags := flag.NewFlagSet("minishop", flag.ContinueOnError)
	role := fsFlags.String("role", "", "process role: order, inventory, payment, fulfillment or all")
	envFile := fsFlags.String("env-file", ".env", "optional dotenv file")
	if err := fsFlags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", *envFile, err)
	}

	cfg, err := Parse(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	if *role != "" {
		cfg.Role = Role(*role)
		if err := cfg.validate(); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Parse builds a Config from lookup, applying defaults for unset keys.
func Parse(lookup func(string) (string, bool)) (Config, error) {
	p := parser{lookup: lookup}

	cfg := Config{
		Role:        Role(p.str("ROLE", string(RoleAll))),
		ServiceName: p.str("SERVICE_NAME", "minishop"),
		Env:         p.str("ENV", "dev"),
		LogLevel:    p.str("LOG_LEVEL", "info"),
		LogFile:     p.str("LOG_FILE", ""),
		HTTPAddr:    p.str("HTTP_ADDR", ":8080"),
		RoleAddrs: map[Role]string{
			RoleOrder:       p.str("ORDER_ADDR", ":8080"),
			RoleInventory:   p.str("INVENTORY_ADDR", ":8081"),
			RolePayment:     p.str("PAYMENT_ADDR", ":8082"),
			RoleFulfillment: p.str("FULFILLMENT_ADDR", ":8083"),
		},
		InventoryURL:       p.str("INVENTORY_URL", "http://localhost:8081"),
		PaymentURL:         p.str("PAYMENT_URL", "http://localhost:8082"),
		OrderURL:           p.str("ORDER_URL", "http://localhost:8080"),
		DependencyTimeout:  p.duration("DEPENDENCY_TIMEOUT", 5*time.Second),
		UnitPrice:          p.decimal("UNIT_PRICE", decimal.NewFromInt(10)),
		PaymentDeclineRate: p.float("PAYMENT_DECLINE_RATE", 0),
		Store:              p.str("STORE", StoreMemory),
		DatabaseURL:        p.str("DATABASE_URL", ""),
		SeedData:           p.bool("SEED_DATA", true),
		Broker:             p.str("BROKER", BrokerMemory),
		KafkaBrokers:       p.list("KAFKA_BROKERS", []string{"localhost:9092"}),
		OrdersTopic:        p.str("ORDERS_TOPIC", "orders"),
		FulfillmentQueue:   p.str("FULFILLMENT_QUEUE", "fulfillment-queue"),
		FulfillmentStore:   p.str("FULFILLMENT_STORE", DedupeMemory),
		RedisAddr:          p.str("REDIS_ADDR", "localhost:6379"),
		CORSOrigins:        p.list("CORS_ORIGINS", []string{"*"}),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Role {
	case RoleOrder, RoleInventory, RolePayment, RoleFulfillment, RoleAll:
	default:
		return fmt.Errorf("config: unknown role %q", c.Role)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when STORE=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	switch c.Broker {
	case BrokerMemory:
		if c.Role == RoleOrder || c.Role == RoleFulfillment {
			return errors.New("config: BROKER=memory only works when ROLE=all")
		}
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("config: KAFKA_BROKERS is required when BROKER=kafka")
		}
	default:
		return fmt.Errorf("config: unknown BROKER %q", c.Broker)
	}
	switch c.FulfillmentStore {
	case DedupeMemory, DedupeRedis:
	default:
		return fmt.Errorf("config: unknown FULFILLMENT_STORE %q", c.FulfillmentStore)
	}
	if c.DependencyTimeout <= 0 {
		return errors.New("config: DEPENDENCY_TIMEOUT must be positive")
	}
	if !c.UnitPrice.IsPositive() {
		return errors.New("config: UNIT_PRICE must be positive")
	}
	if c.PaymentDeclineRate < 0 || c.PaymentDeclineRate > 1 {
		return errors.New("config: PAYMENT_DECLINE_RATE must be within [0, 1]")
	}
	return nil
}

type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) raw(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *parser) str(key, def string) string {
	if v, ok := p.raw(key); ok {
		return v
	}
	return def
}

func (p *parser) fail(key, v string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *parser) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
