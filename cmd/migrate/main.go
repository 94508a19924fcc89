package main

import (
	"fmt"
	"log"
	"os"

	"signal-trackers/internal/entity"
	"signal-trackers/internal/pipeline/config"
	"signal-trackers/pkg/postgres"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var configPath string

func openDB() *gorm.DB {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := postgres.NewDB(postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db.DB
}

func runMigrations() {
	db := openDB()

	err := db.AutoMigrate(
		&entity.Indicator{},
		&entity.IndicatorSample{},
		&entity.RegimeRecord{},
		&entity.AISummary{},
		&entity.User{},
		&entity.AlertPreference{},
		&entity.Alert{},
		&entity.PortfolioAllocation{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	seedAllocations(db)
	fmt.Println("Applied migrations successfully.")
}

// seedAllocations installs the default model allocation per regime. Existing
// rows are left untouched so operators can tune them.
func seedAllocations(db *gorm.DB) {
	defaults := []entity.PortfolioAllocation{
		{Regime: entity.RegimeBull, Equities: 70, Bonds: 20, Commodities: 5, Cash: 5},
		{Regime: entity.RegimeNeutral, Equities: 55, Bonds: 30, Commodities: 5, Cash: 10},
		{Regime: entity.RegimeBear, Equities: 35, Bonds: 40, Commodities: 10, Cash: 15},
		{Regime: entity.RegimeRecessionWatch, Equities: 20, Bonds: 45, Commodities: 10, Cash: 25},
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "regime"}},
		DoNothing: true,
	}).Create(&defaults).Error
	if err != nil {
		log.Fatalf("Failed to seed portfolio allocations: %v", err)
	}
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply the database schema and seed data",
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations()
	},
}

func main() {
	rootCmd := &cobra.Command{Use: "migrate"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config-pipeline.yaml", "Path to the configuration file")

	rootCmd.AddCommand(upCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing migrate CLI: %s\n", err)
		os.Exit(1)
	}
}
