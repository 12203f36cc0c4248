package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	CronSchedule   string `envconfig:"CRON_SCHEDULE" default:"0 * * * *"`
	EnabledSources string `envconfig:"ENABLED_SOURCES" default:"shelterluv,airtable"`

	// Store-Backend: dynamodb, postgres oder memory
	StoreBackend  string `envconfig:"STORE_BACKEND" default:"dynamodb"`
	AWSRegion     string `envconfig:"AWS_REGION" default:"us-east-2"`
	AWSEndpoint   string `envconfig:"AWS_ENDPOINT"`
	PetsTable     string `envconfig:"PETS_TABLE" default:"Pets"`
	SyncIndex     string `envconfig:"SYNC_INDEX" default:"SyncIndex"`
	SpeciesIndex  string `envconfig:"SPECIES_INDEX" default:"SpeciesIndex"`
	LeaseTable    string `envconfig:"LEASE_TABLE" default:"PetSyncLeases"`
	StorePageSize int32  `envconfig:"STORE_PAGE_SIZE" default:"100"`

	DBHost     string `envconfig:"DB_HOST"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"pets"`

	// Secrets: aws (Secrets Manager) oder env
	SecretsBackend          string `envconfig:"SECRETS_BACKEND" default:"aws"`
	ShelterluvSecretName    string `envconfig:"SHELTERLUV_SECRET_NAME" default:"shelterluv_api_key"`
	AirtableTokenSecretName string `envconfig:"AIRTABLE_TOKEN_SECRET_NAME" default:"airtable_personal_access_token"`
	AirtableBaseSecretName  string `envconfig:"AIRTABLE_BASE_SECRET_NAME" default:"airtable_base"`

	ShelterluvBaseURL  string `envconfig:"SHELTERLUV_BASE_URL" default:"https://www.shelterluv.com/api/v1"`
	ShelterluvAdoptURL string `envconfig:"SHELTERLUV_ADOPT_URL" default:"https://www.shelterluv.com/matchme/adopt/DPA-A-"`
	ShelterluvPageSize int    `envconfig:"SHELTERLUV_PAGE_SIZE" default:"100"`
	ShelterluvMaxPages int    `envconfig:"SHELTERLUV_MAX_PAGES" default:"200"`

	AirtableBaseURL           string  `envconfig:"AIRTABLE_BASE_URL" default:"https://api.airtable.com/v0"`
	AirtableTable             string  `envconfig:"AIRTABLE_TABLE" default:"Pets"`
	AirtableFormURL           string  `envconfig:"AIRTABLE_FORM_URL" default:"https://airtable.com/shrJ4gbiSeSsgJyd8"`
	AirtablePhotoBaseURL      string  `envconfig:"AIRTABLE_PHOTO_BASE_URL" default:"https://dpa-media.s3.us-east-2.amazonaws.com/new-digs-photos/"`
	AirtableMaxPages          int     `envconfig:"AIRTABLE_MAX_PAGES" default:"200"`
	AirtableRequestsPerSecond float64 `envconfig:"AIRTABLE_REQUESTS_PER_SECOND" default:"5"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s"`

	SchemaVersion    int           `envconfig:"SCHEMA_VERSION" default:"1"`
	StrictSourceTags bool          `envconfig:"STRICT_SOURCE_TAGS" default:"true"`
	SkipUnchanged    bool          `envconfig:"SKIP_UNCHANGED" default:"false"`
	LeaseEnabled     bool          `envconfig:"LEASE_ENABLED" default:"true"`
	LeaseTTL         time.Duration `envconfig:"LEASE_TTL" default:"15m"`

	// Snapshot-Export nach S3 (cmd/backup)
	SnapshotBucket   string `envconfig:"SNAPSHOT_BUCKET"`
	SnapshotPrefix   string `envconfig:"SNAPSHOT_PREFIX" default:"pets/"`
	SnapshotS3URL    string `envconfig:"SNAPSHOT_S3_URL"`
	SnapshotS3Key    string `envconfig:"SNAPSHOT_S3_KEY"`
	SnapshotS3Secret string `envconfig:"SNAPSHOT_S3_SECRET"`
	KeepSnapshots    int    `envconfig:"KEEP_SNAPSHOTS" default:"14"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Sources liefert die aktivierten Quellen in der konfigurierten Reihenfolge.
func (c *Config) Sources() []string {
	var out []string
	for _, name := range strings.Split(c.EnabledSources, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Validate prüft Kombinationen, die envconfig allein nicht abdecken kann.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "dynamodb", "memory":
	case "postgres":
		if c.DBHost == "" || c.DBUser == "" {
			return fmt.Errorf("postgres backend requires DB_HOST and DB_USER")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.SecretsBackend {
	case "aws", "env":
	default:
		return fmt.Errorf("unknown SECRETS_BACKEND %q", c.SecretsBackend)
	}
	if c.SchemaVersion != 1 && c.SchemaVersion != 2 {
		return fmt.Errorf("unsupported SCHEMA_VERSION %d", c.SchemaVersion)
	}
	if c.ShelterluvMaxPages <= 0 || c.AirtableMaxPages <= 0 {
		return fmt.Errorf("max page limits must be positive")
	}
	if c.KeepSnapshots < 1 {
		return fmt.Errorf("KEEP_SNAPSHOTS must be at least 1, got %d", c.KeepSnapshots)
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
