package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	cloudsqlmysql "cloud.google.com/go/cloudsqlconn/mysql/mysql"
	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// MySQL driver for direct connections.
	_ "github.com/go-sql-driver/mysql"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Database drivers accepted in Config.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverCloudSQL = "cloudsql"
)

const cloudSQLDriverName = "cloudsql-mysql"

// Config selects and addresses the database.
type Config struct {
	// Driver is one of DriverSQLite, DriverMySQL or DriverCloudSQL.
	Driver string

	// Path is the SQLite database file.
	Path string

	// DSN is a go-sql-driver/mysql data source name.
	DSN string

	// Cloud SQL settings. Instance is "project:region:instance".
	Instance  string
	Database  string
	User      string
	Password  string
	PrivateIP bool

	// SkipMigrate disables table creation on Open.
	SkipMigrate bool
}

// ConfigFromEnv reads database settings from the environment. A Cloud SQL
// instance connection name selects the cloudsql driver unless LUNA_DB_DRIVER
// says otherwise.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver:    strings.ToLower(os.Getenv("LUNA_DB_DRIVER")),
		Path:      os.Getenv("LUNA_DB"),
		DSN:       os.Getenv("LUNA_MYSQL_DSN"),
		Instance:  os.Getenv("CLOUDSQL_INSTANCE_CONNECTION_NAME"),
		Database:  os.Getenv("CLOUDSQL_DATABASE"),
		User:      os.Getenv("CLOUDSQL_USER"),
		Password:  os.Getenv("CLOUDSQL_PASSWORD"),
		PrivateIP: os.Getenv("CLOUDSQL_PRIVATE_IP") == "true",
	}
	if cfg.Database == "" {
		cfg.Database = "lunareading"
	}
	if cfg.Driver == "" {
		switch {
		case cfg.Instance != "":
			cfg.Driver = DriverCloudSQL
		case cfg.DSN != "":
			cfg.Driver = DriverMySQL
		default:
			cfg.Driver = DriverSQLite
		}
	}
	return cfg
}

// Validate checks that the selected driver has what it needs to connect.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, "":
		if c.Path == "" {
			return fmt.Errorf("sqlite: database path not set")
		}
	case DriverMySQL:
		if c.DSN == "" {
			return fmt.Errorf("mysql: LUNA_MYSQL_DSN not set")
		}
	case DriverCloudSQL:
		var missing []string
		if c.Instance == "" {
			missing = append(missing, "CLOUDSQL_INSTANCE_CONNECTION_NAME")
		}
		if c.User == "" {
			missing = append(missing, "CLOUDSQL_USER")
		}
		if c.Password == "" {
			missing = append(missing, "CLOUDSQL_PASSWORD")
		}
		if len(missing) > 0 {
			return fmt.Errorf("cloudsql: missing %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Driver)
	}
	return nil
}

// Describe returns a short human-readable location of the database.
func (c Config) Describe() string {
	switch c.Driver {
	case DriverMySQL:
		return "mysql"
	case DriverCloudSQL:
		return fmt.Sprintf("Cloud SQL (MySQL) %s/%s", orNotSet(c.Instance), orNotSet(c.Database))
	default:
		return "sqlite " + c.Path
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

// Store owns the database handle and hands out repositories.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
	cfg     Config
}

// Open connects to the configured database and, unless cfg.SkipMigrate is
// set, creates any missing tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, dia, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		db:      db,
		drv:     entsql.OpenDB(dia, db),
		dialect: dia,
		cfg:     cfg,
	}

	if !cfg.SkipMigrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return s, nil
}

// OpenDB wraps an existing handle without migrating. Tests use it with
// go-sqlmock.
func OpenDB(db *sql.DB, dia string) *Store {
	return &Store{db: db, drv: entsql.OpenDB(dia, db), dialect: dia}
}

func openDB(cfg Config) (*sql.DB, string, error) {
	switch cfg.Driver {
	case DriverMySQL:
		db, err := sql.Open("mysql", withParseTime(cfg.DSN))
		if err != nil {
			return nil, "", err
		}
		db.SetConnMaxLifetime(30 * time.Minute)
		return db, dialect.MySQL, nil

	case DriverCloudSQL:
		if err := registerCloudSQL(cfg.PrivateIP); err != nil {
			return nil, "", fmt.Errorf("register Cloud SQL dialer: %w", err)
		}
		dsn := fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true",
			cfg.User, cfg.Password, cloudSQLDriverName, cfg.Instance, cfg.Database)
		db, err := sql.Open(cloudSQLDriverName, dsn)
		if err != nil {
			return nil, "", err
		}
		db.SetConnMaxLifetime(30 * time.Minute)
		return db, dialect.MySQL, nil

	default:
		db, err := sql.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, "", err
		}
		return db, dialect.SQLite, nil
	}
}

var (
	cloudSQLOnce sync.Once
	cloudSQLErr  error
)

// registerCloudSQL registers the Cloud SQL MySQL driver once per process.
// The dialer lives for the process lifetime.
func registerCloudSQL(privateIP bool) error {
	cloudSQLOnce.Do(func() {
		var opts []cloudsqlconn.Option
		if privateIP {
			opts = append(opts, cloudsqlconn.WithDefaultDialOptions(cloudsqlconn.WithPrivateIP()))
		}
		_, cloudSQLErr = cloudsqlmysql.RegisterDriver(cloudSQLDriverName, opts...)
	})
	return cloudSQLErr
}

// sqliteDSN builds a modernc DSN for path with per-connection pragmas.
func sqliteDSN(path string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_time_format=sqlite",
	}
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name in use.
func (s *Store) Dialect() string {
	return s.dialect
}

// Config returns the configuration the store was opened with.
func (s *Store) Config() Config {
	return s.cfg
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// Users returns a UserRepo backed by this store.
func (s *Store) Users() UserRepo { return &userRepo{s.conn()} }

// Sessions returns a SessionRepo backed by this store.
func (s *Store) Sessions() SessionRepo { return &sessionRepo{s.conn()} }

// Questions returns a QuestionRepo backed by this store.
func (s *Store) Questions() QuestionRepo { return &questionRepo{s.conn()} }

// Answers returns an AnswerRepo backed by this store.
func (s *Store) Answers() AnswerRepo { return &answerRepo{s.conn()} }

// Stats returns a StatsRepo backed by this store.
func (s *Store) Stats() StatsRepo { return &statsRepo{s.conn()} }

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo { return &eventRepo{s.conn()} }

func (s *Store) conn() conn {
	return conn{db: s.db, dialect: s.dialect}
}

// DefaultDBPath resolves the SQLite database file path in priority order:
// 1. LUNA_DB environment variable
// 2. $XDG_DATA_HOME/lunareading/lunareading.db
// 3. ~/.local/share/lunareading/lunareading.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("LUNA_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "lunareading", "lunareading.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
