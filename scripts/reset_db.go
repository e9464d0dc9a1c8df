package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/nereus-fi/levengine/internal/logger"
	"github.com/nereus-fi/levengine/internal/state"
)

// Drops and recreates the levengine schema. Destructive; intended for local
// development only.
func main() {
	logger.Initialize(os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if os.Getenv("DB_USER") == "" || os.Getenv("DB_NAME") == "" {
		log.Fatal().Msg("DB_USER and DB_NAME environment variables must be set.")
	}

	port := 5432
	if p, err := strconv.Atoi(os.Getenv("DB_PORT")); err == nil {
		port = p
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}

	dbCfg := state.DBConfig{
		Host:     host,
		Port:     port,
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  sslMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	if err := state.ResetSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to reset database schema")
	}
	log.Info().Str("dbname", dbCfg.DBName).Msg("Database reset complete!")
}
