// Command seed provisions a fresh deployment: starter detection rules and a
// first reviewer account.
package main

import (
	"flag"
	"log"

	"github.com/promptshield/promptshield/backend/internal/config"
	"github.com/promptshield/promptshield/backend/internal/database"
	"github.com/promptshield/promptshield/backend/internal/models"
	"github.com/promptshield/promptshield/backend/internal/policy"
	"github.com/promptshield/promptshield/backend/internal/services"
	"github.com/promptshield/promptshield/backend/internal/store"
)

func main() {
	email := flag.String("email", "admin@example.com", "reviewer account email")
	password := flag.String("password", "", "reviewer account password (required)")
	name := flag.String("name", "Administrator", "reviewer display name")
	flag.Parse()

	if *password == "" {
		log.Fatal("-password is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		log.Printf("WARNING: policy file invalid, using defaults: %v", err)
	}

	rules := store.NewRuleStore(cfg.RulesPath)
	if err := rules.Seed(pol.StarterPatterns); err != nil {
		log.Fatalf("seed rules: %v", err)
	}
	log.Printf("rule store ready at %s", cfg.RulesPath)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("migrate users: %v", err)
	}

	auth := services.NewAuthService(db, cfg)
	user, err := auth.Register(*email, *password, *name)
	if err != nil {
		log.Fatalf("create account: %v", err)
	}

	log.Printf("created %s account for %s", user.Role, user.Email)
}
