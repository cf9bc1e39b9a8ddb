package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
)

// Setting keys, shared between the settings file and the environment.
const (
	KeyURL           = "PEERTUBE_URL"
	KeyUser          = "PEERTUBE_USER"
	KeyPass          = "PEERTUBE_PASS"
	KeySnapshot      = "PEERTUBE_VIDEOS_JSON"
	KeyDateFields    = "PEERTUBE_DATE_FIELDS"
	KeyUpdateField   = "PEERTUBE_UPDATE_FIELD"
	KeyDownloadDir   = "YT_DOWNLOAD_DIR"
	KeyMapFile       = "MAP_FILE"
	KeyPGHost        = "PGHOST"
	KeyPGPort        = "PGPORT"
	KeyPGDatabase    = "PGDATABASE"
	KeyPGUser        = "PGUSER"
	KeyPGPassword    = "PGPASSWORD"
	KeyPGDateColumns = "PG_DATE_COLUMNS"
	KeyThreshold     = "MATCH_THRESHOLD"
	KeyMetric        = "MATCH_METRIC"
	KeyTimeout       = "REQUEST_TIMEOUT"
	KeyRateLimit     = "RATE_LIMIT"
)

var knownKeys = []string{
	KeyURL, KeyUser, KeyPass, KeySnapshot, KeyDateFields, KeyUpdateField,
	KeyDownloadDir, KeyMapFile, KeyPGHost, KeyPGPort, KeyPGDatabase,
	KeyPGUser, KeyPGPassword, KeyPGDateColumns, KeyThreshold, KeyMetric,
	KeyTimeout, KeyRateLimit,
}

// Settings is built once at startup and handed to every component.
type Settings struct {
	BaseURL  string
	Username string
	Password string

	DownloadDir  string
	MapFile      string
	SnapshotFile string

	// DateFields are the remote JSON spellings accepted for the
	// publication timestamp, in lookup order.
	DateFields  []string
	UpdateField string

	Postgres Postgres

	Threshold      float64
	Metric         string
	RequestTimeout time.Duration
	RateLimit      int
}

type Postgres struct {
	Host        string
	Port        string
	Database    string
	User        string
	Password    string
	DateColumns []string
}

// DSN renders a lib/pq key/value connection string.
func (p Postgres) DSN() string {
	parts := []string{
		"host=" + quoteDSN(p.Host),
		"port=" + quoteDSN(p.Port),
		"dbname=" + quoteDSN(p.Database),
		"sslmode=disable",
	}
	if p.User != "" {
		parts = append(parts, "user="+quoteDSN(p.User))
	}
	if p.Password != "" {
		parts = append(parts, "password="+quoteDSN(p.Password))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// HasCredentials reports whether authenticated API calls are possible.
func (s Settings) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

func Defaults() Settings {
	return Settings{
		DownloadDir:  "./yt_downloads",
		MapFile:      "./uploaded-map.txt",
		SnapshotFile: "./peertube_videos.json",
		DateFields:   []string{"originallyPublishedAt", "publishedAt"},
		UpdateField:  "originallyPublishedAt",
		Postgres: Postgres{
			Host:        "localhost",
			Port:        "5432",
			Database:    "peertube",
			DateColumns: []string{"published_at", "publishedAt", "originallyPublishedAt"},
		},
		Threshold:      0.9,
		Metric:         "ratio",
		RequestTimeout: 30 * time.Second,
		RateLimit:      5,
	}
}

// Load reads the settings file at path and overlays the process
// environment. A missing file is not an error.
func Load(path string) (Settings, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Settings, error) {
	values, err := readFile(path)
	if err != nil {
		return Settings{}, err
	}
	if lookup != nil {
		for _, k := range knownKeys {
			if v, ok := lookup(k); ok {
				values[k] = v
			}
		}
	}
	s := Defaults()
	if err := s.apply(values); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func readFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return values, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings %s: %w", path, err)
		}
		raw := make(map[string]any)
		if err := toml.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
		for k, v := range raw {
			switch tv := v.(type) {
			case []any:
				parts := make([]string, len(tv))
				for i, p := range tv {
					parts[i] = fmt.Sprint(p)
				}
				values[strings.ToUpper(k)] = strings.Join(parts, ",")
			default:
				values[strings.ToUpper(k)] = fmt.Sprint(tv)
			}
		}
	default:
		cfg, err := ini.LoadSources(ini.LoadOptions{
			Loose:               true,
			IgnoreInlineComment: true,
		}, path)
		if err != nil {
			return nil, fmt.Errorf("load settings %s: %w", path, err)
		}
		for _, key := range cfg.Section(ini.DefaultSection).Keys() {
			name := strings.TrimSpace(strings.TrimPrefix(key.Name(), "export "))
			values[name] = strings.Trim(strings.TrimSpace(key.String()), `'"`)
		}
	}
	return values, nil
}

func (s *Settings) apply(v map[string]string) error {
	str := func(key string, dst *string) {
		if val, ok := v[key]; ok && val != "" {
			*dst = val
		}
	}
	// opt keys have no default, so a present empty value clears an earlier one.
	opt := func(key string, dst *string) {
		if val, ok := v[key]; ok {
			*dst = val
		}
	}
	list := func(key string, dst *[]string) {
		if val, ok := v[key]; ok && val != "" {
			*dst = splitList(val)
		}
	}

	opt(KeyURL, &s.BaseURL)
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	opt(KeyUser, &s.Username)
	opt(KeyPass, &s.Password)
	str(KeyDownloadDir, &s.DownloadDir)
	str(KeyMapFile, &s.MapFile)
	str(KeySnapshot, &s.SnapshotFile)
	list(KeyDateFields, &s.DateFields)
	str(KeyUpdateField, &s.UpdateField)
	str(KeyPGHost, &s.Postgres.Host)
	str(KeyPGPort, &s.Postgres.Port)
	str(KeyPGDatabase, &s.Postgres.Database)
	opt(KeyPGUser, &s.Postgres.User)
	opt(KeyPGPassword, &s.Postgres.Password)
	list(KeyPGDateColumns, &s.Postgres.DateColumns)
	str(KeyMetric, &s.Metric)

	if val := v[KeyThreshold]; val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyThreshold, err)
		}
		s.Threshold = f
	}
	if val := v[KeyTimeout]; val != "" {
		d, err := parseDuration(val)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyTimeout, err)
		}
		s.RequestTimeout = d
	}
	if val := v[KeyRateLimit]; val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyRateLimit, err)
		}
		s.RateLimit = n
	}
	return s.Validate()
}

// Validate checks the values that components cannot work around.
func (s Settings) Validate() error {
	if s.Threshold <= 0 || s.Threshold > 1 {
		return fmt.Errorf("match threshold %v out of range (0, 1]", s.Threshold)
	}
	switch s.Metric {
	case "ratio", "levenshtein":
	default:
		return fmt.Errorf("unknown match metric %q (ratio, levenshtein)", s.Metric)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if s.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if len(s.DateFields) == 0 || s.UpdateField == "" {
		return fmt.Errorf("remote date field names must not be empty")
	}
	if len(s.Postgres.DateColumns) == 0 {
		return fmt.Errorf("database date columns must not be empty")
	}
	return nil
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
