package config

import (
	"fmt"
	"os"
)

type DbConfig interface {
	GetConnectionString() string
}

// PostgresConfig represents the configuration needed to connect to a PostgreSQL database
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	// DSN, если задан, используется как есть вместо отдельных полей.
	DSN string `yaml:"dsn"`
}

func (pc *PostgresConfig) GetConnectionString() string {
	if pc.DSN != "" {
		return pc.DSN
	}
	sslMode := pc.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, sslMode)
}

// Enabled сообщает, настроена ли база. Без базы команды работают без журнала выгрузок.
func (pc *PostgresConfig) Enabled() bool {
	return pc.DSN != "" || pc.Host != ""
}

// GetConfig собирает конфигурацию Postgres из переменных окружения.
func GetConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnv("POSTGRES_PORT", "5432"),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: getEnv("POSTGRES_PASSWORD", "postgres"),
		DBName:   getEnv("POSTGRES_NAME", "postgres"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		DSN:      getEnv("DATABASE_URL", ""),
	}
}

// applyEnv перекрывает значения из файла переменными окружения, если они заданы.
func (pc *PostgresConfig) applyEnv() {
	pc.Host = getEnv("POSTGRES_HOST", pc.Host)
	pc.Port = getEnv("POSTGRES_PORT", pc.Port)
	pc.User = getEnv("POSTGRES_USER", pc.User)
	pc.Password = getEnv("POSTGRES_PASSWORD", pc.Password)
	pc.DBName = getEnv("POSTGRES_NAME", pc.DBName)
	pc.SSLMode = getEnv("POSTGRES_SSLMODE", pc.SSLMode)
	pc.DSN = getEnv("DATABASE_URL", pc.DSN)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
