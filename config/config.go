package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Abhinavmohindersingh/bigslick-admin/logging"
)

const (
	BackendTables = "tables"
	BackendMemory = "memory"

	BoardRedis  = "redis"
	BoardSQLite = "sqlite"
)

// Auth selects how the session gate verifies tokens.
type Auth struct {
	Domain   string
	Audience string
	// LocalMode accepts HS256 tokens signed with SharedSecret instead of
	// fetching JWKS from the identity provider.
	LocalMode    bool
	SharedSecret string
	JWKSCacheTTL time.Duration
}

// Issuer is the expected iss claim, empty in local mode.
func (a Auth) Issuer() string {
	if a.LocalMode || a.Domain == "" {
		return ""
	}
	return "https://" + a.Domain + "/"
}

// JWKSURL is where the identity provider publishes its signing keys.
func (a Auth) JWKSURL() string {
	return fmt.Sprintf("https://%s/.well-known/jwks.json", a.Domain)
}

// Enqueue sizes the activity worker pool.
type Enqueue struct {
	Workers        int
	Buffer         int
	Timeout        time.Duration
	HandoffTimeout time.Duration
}

type Config struct {
	Port string

	StorageBackend   string
	StorageConnStr   string
	TablesPartition  string
	TableCacheTTL    time.Duration
	ActivityQueue    string
	RedisConnStr     string
	BoardStore       string
	BoardSQLitePath  string
	DeduperTTL       time.Duration
	PresenceTTL      time.Duration
	PresenceChannels []string
	Location         *time.Location

	Auth    Auth
	Enqueue Enqueue
	Log     logging.Options
}

var defaults = map[string]any{
	"functions_customhandler_port": "8080",
	"storage_backend":              BackendTables,
	"tables_partition":             "admin",
	"table_cache_ttl":              "0s",
	"activity_queue":               "admin-activity",
	"board_store":                  BoardRedis,
	"board_sqlite_path":            "board.db",
	"deduper_ttl":                  "24h",
	"presence_ttl":                 "2m",
	"presence_channels":            "game-racing-suits,game-space-crash,game-stack-em,game-poker-opoly",
	"timezone":                     "UTC",
	"jwks_cache_ttl":               "15m",
	"enqueue_workers":              "4",
	"enqueue_buffer":               "64",
	"enqueue_timeout":              "30s",
	"enqueue_handoff_timeout":      "50ms",
	"log_format":                   "text",
	"log_max_size_mb":              "100",
	"log_max_backups":              "5",
	"log_max_age_days":             "28",
	"audit_channel":                "admin-activity",
	"audit_idle":                   "1s",
}

// New returns a viper instance reading environment variables and, when
// file is set, a config file whose keys are the lower-cased variable names.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load validates the settings needed by the serve command.
func Load(v *viper.Viper) (Config, error) {
	var errs []error
	p := parser{v: v, errs: &errs}

	c := Config{
		Port:             v.GetString("functions_customhandler_port"),
		StorageBackend:   strings.ToLower(v.GetString("storage_backend")),
		StorageConnStr:   v.GetString("storage_connection_string"),
		TablesPartition:  v.GetString("tables_partition"),
		TableCacheTTL:    p.duration("table_cache_ttl", true),
		ActivityQueue:    v.GetString("activity_queue"),
		RedisConnStr:     v.GetString("redis_connection_string"),
		BoardStore:       strings.ToLower(v.GetString("board_store")),
		BoardSQLitePath:  v.GetString("board_sqlite_path"),
		DeduperTTL:       p.duration("deduper_ttl", false),
		PresenceTTL:      p.duration("presence_ttl", false),
		PresenceChannels: p.list("presence_channels"),
		Auth: Auth{
			Domain:       v.GetString("auth0_domain"),
			Audience:     v.GetString("auth0_audience"),
			LocalMode:    v.GetBool("local_auth_mode") || v.GetString("auth0_test_mode") == "1",
			SharedSecret: firstNonEmpty(v.GetString("local_auth_shared_secret"), v.GetString("test_jwt_secret")),
			JWKSCacheTTL: p.duration("jwks_cache_ttl", false),
		},
		Enqueue: Enqueue{
			Workers:        p.positive("enqueue_workers"),
			Buffer:         p.nonNegative("enqueue_buffer"),
			Timeout:        p.duration("enqueue_timeout", false),
			HandoffTimeout: p.duration("enqueue_handoff_timeout", true),
		},
		Log: logging.Options{
			Debug:      v.GetBool("debug"),
			Format:     v.GetString("log_format"),
			File:       v.GetString("log_file"),
			MaxSizeMB:  p.nonNegative("log_max_size_mb"),
			MaxBackups: p.nonNegative("log_max_backups"),
			MaxAgeDays: p.nonNegative("log_max_age_days"),
		},
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE: %w", err))
	}
	c.Location = loc

	switch c.StorageBackend {
	case BackendTables:
		if c.StorageConnStr == "" {
			errs = append(errs, errors.New("missing storage config"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE_BACKEND %q", c.StorageBackend))
	}
	switch c.BoardStore {
	case BoardRedis, BoardSQLite:
	default:
		errs = append(errs, fmt.Errorf("invalid BOARD_STORE %q", c.BoardStore))
	}
	if c.RedisConnStr == "" {
		errs = append(errs, errors.New("missing redis config"))
	}
	if c.Auth.LocalMode {
		if c.Auth.SharedSecret == "" {
			errs = append(errs, errors.New("missing local auth secret"))
		}
	} else if c.Auth.Domain == "" || c.Auth.Audience == "" {
		errs = append(errs, errors.New("missing Auth0 config"))
	}
	if len(c.PresenceChannels) == 0 {
		errs = append(errs, errors.New("no presence channels"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Provision holds what the provision command creates.
type Provision struct {
	StorageConnStr string
	Queues         []string
}

func LoadProvision(v *viper.Viper) (Provision, error) {
	p := Provision{StorageConnStr: v.GetString("storage_connection_string")}
	if p.StorageConnStr == "" {
		return Provision{}, errors.New("missing storage config")
	}
	if q := v.GetString("activity_queue"); q != "" {
		p.Queues = []string{q}
	}
	return p, nil
}

// Audit holds what the audit consumer needs.
type Audit struct {
	StorageConnStr  string
	TablesPartition string
	Queue           string
	RedisConnStr    string
	Channel         string
	Idle            time.Duration
	Log             logging.Options
}

func LoadAudit(v *viper.Viper) (Audit, error) {
	var errs []error
	p := parser{v: v, errs: &errs}
	a := Audit{
		StorageConnStr:  v.GetString("storage_connection_string"),
		TablesPartition: v.GetString("tables_partition"),
		Queue:           v.GetString("activity_queue"),
		RedisConnStr:    v.GetString("redis_connection_string"),
		Channel:         v.GetString("audit_channel"),
		Idle:            p.duration("audit_idle", false),
		Log: logging.Options{
			Debug:      v.GetBool("debug"),
			Format:     v.GetString("log_format"),
			File:       v.GetString("log_file"),
			MaxSizeMB:  p.nonNegative("log_max_size_mb"),
			MaxBackups: p.nonNegative("log_max_backups"),
			MaxAgeDays: p.nonNegative("log_max_age_days"),
		},
	}
	if a.StorageConnStr == "" || a.Queue == "" {
		errs = append(errs, errors.New("missing storage config"))
	}
	if err := errors.Join(errs...); err != nil {
		return Audit{}, err
	}
	return a, nil
}

type parser struct {
	v    *viper.Viper
	errs *[]error
}

func (p parser) fail(key string, err error) {
	*p.errs = append(*p.errs, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err))
}

func (p parser) duration(key string, allowZero bool) time.Duration {
	raw := strings.TrimSpace(p.v.GetString(key))
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		p.fail(key, err)
	case d < 0 || (d == 0 && !allowZero):
		p.fail(key, errors.New("must be greater than zero"))
	}
	return d
}

func (p parser) integer(key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(p.v.GetString(key)))
	if err != nil {
		p.fail(key, err)
		return 0, false
	}
	return n, true
}

func (p parser) positive(key string) int {
	n, ok := p.integer(key)
	if ok && n <= 0 {
		p.fail(key, errors.New("must be greater than zero"))
	}
	return n
}

func (p parser) nonNegative(key string) int {
	n, ok := p.integer(key)
	if ok && n < 0 {
		p.fail(key, errors.New("must not be negative"))
	}
	return n
}

// list accepts a comma separated string or a config file list.
func (p parser) list(key string) []string {
	var raw []string
	switch val := p.v.Get(key).(type) {
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = p.v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s != "" {
			return s
		}
	}
	return ""
}
