package pgutil

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

// Params are the postgres connection settings. The `envconfig` tags let them
// be embedded in a larger configuration struct.
type Params struct {
	Host     string `yaml:"host" envconfig:"PG_HOST"`
	Port     string `yaml:"port" envconfig:"PG_PORT"`
	User     string `yaml:"user" envconfig:"PG_USER"`
	Password string `yaml:"password" envconfig:"PG_PASS"`
	DBName   string `yaml:"dbName" envconfig:"PG_DB_NAME"`
	SSLMode  string `yaml:"sslMode" envconfig:"PG_SSL_MODE"`
}

// ParamsFromEnv reads the `PG_*` environment variables, defaulting to a
// local unauthenticated server.
func ParamsFromEnv() Params {
	return Params{
		Host:     getEnv("PG_HOST", ""),
		Port:     getEnv("PG_PORT", ""),
		User:     getEnv("PG_USER", ""),
		Password: getEnv("PG_PASS", ""),
		DBName:   getEnv("PG_DB_NAME", ""),
		SSLMode:  getEnv("PG_SSL_MODE", ""),
	}.WithDefaults()
}

func (params Params) WithDefaults() Params {
	params.Host = orDefault(params.Host, "localhost")
	params.Port = orDefault(params.Port, "5432")
	params.User = orDefault(params.User, "postgres")
	params.DBName = orDefault(params.DBName, "postgres")
	params.SSLMode = orDefault(params.SSLMode, "disable")
	return params
}

func (params Params) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host,
		params.Port,
		params.User,
		params.Password,
		params.DBName,
		params.SSLMode,
	)
}

// Open connects to the database described by `params` and pings it.
func Open(params Params) (*sql.DB, error) {
	db, err := sql.Open("postgres", params.WithDefaults().DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres database: %w", err)
	}

	return db, nil
}

func getEnv(env, def string) string {
	return orDefault(os.Getenv(env), def)
}

func orDefault(x, def string) string {
	if x == "" {
		return def
	}
	return x
}
