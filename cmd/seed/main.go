// Seed provisions a development environment: an admin account, a starter
// plan catalog, and a couple of SIM resources.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"vtu/internal/domain"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	seedAdmin(ctx, db)
	seedPlans(ctx, db)
	seedSims(ctx, db)
	log.Println("Seed complete")
}

func seedAdmin(ctx context.Context, db *sqlx.DB) {
	email := getEnv("SEED_ADMIN_EMAIL", "admin@vtu.local")
	password := getEnv("SEED_ADMIN_PASSWORD", "ChangeMe123!")

	var exists bool
	if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email); err != nil {
		log.Fatalf("Failed to check admin: %v", err)
	}
	if exists {
		log.Println("Admin already exists, skipping")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	now := time.Now()
	_, err = db.NamedExecContext(ctx, `
		INSERT INTO users (
			id, full_name, email, phone, password_hash, role, balance, kyc_status,
			referral_code, is_active, created_at, updated_at
		) VALUES (
			:id, :full_name, :email, :phone, :password_hash, :role, :balance, :kyc_status,
			:referral_code, :is_active, :created_at, :updated_at
		)
	`, &domain.User{
		ID:           uuid.New(),
		FullName:     "Platform Admin",
		Email:        email,
		Phone:        "08010000000",
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Balance:      decimal.Zero,
		KYCStatus:    domain.KYCStatusVerified,
		ReferralCode: "ADMIN001",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	log.Printf("Seeded admin %s", email)
}

func seedPlans(ctx context.Context, db *sqlx.DB) {
	type planSeed struct {
		network  domain.Network
		category string
		name     string
		price    string
		sizeMB   int
		validity int
		external string
	}
	seeds := []planSeed{
		{domain.NetworkMTN, "sme", "MTN SME 1GB", "280.00", 1024, 30, "mtn-sme-1"},
		{domain.NetworkMTN, "sme", "MTN SME 2GB", "560.00", 2048, 30, "mtn-sme-2"},
		{domain.NetworkMTN, "gifting", "MTN Gifting 5GB", "1350.00", 5120, 30, "mtn-gift-5"},
		{domain.NetworkGlo, "corporate", "Glo CG 1GB", "260.00", 1024, 30, "glo-cg-1"},
		{domain.NetworkGlo, "corporate", "Glo CG 3GB", "760.00", 3072, 30, "glo-cg-3"},
		{domain.NetworkAirtel, "corporate", "Airtel CG 1.5GB", "410.00", 1536, 30, "airtel-cg-15"},
		{domain.Network9Mobile, "sme", "9mobile SME 1GB", "240.00", 1024, 30, "9mob-sme-1"},
	}

	now := time.Now()
	for _, s := range seeds {
		price, _ := decimal.NewFromString(s.price)
		_, err := db.ExecContext(ctx, `
			INSERT INTO data_plans (id, network, category, name, price, size_mb, validity_days, external_plan_id, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
			ON CONFLICT DO NOTHING
		`, uuid.New(), s.network, s.category, s.name, price, s.sizeMB, s.validity, s.external, now)
		if err != nil {
			log.Fatalf("Failed to seed plan %s: %v", s.name, err)
		}
	}
	log.Printf("Seeded %d plans", len(seeds))
}

func seedSims(ctx context.Context, db *sqlx.DB) {
	type simSeed struct {
		label   string
		network domain.Network
		phone   string
		balance string
	}
	seeds := []simSeed{
		{"MTN-01", domain.NetworkMTN, "08031000001", "50000.00"},
		{"MTN-02", domain.NetworkMTN, "08031000002", "50000.00"},
		{"GLO-01", domain.NetworkGlo, "08051000001", "30000.00"},
		{"AIRTEL-01", domain.NetworkAirtel, "08021000001", "30000.00"},
		{"9MOB-01", domain.Network9Mobile, "08091000001", "20000.00"},
	}

	now := time.Now()
	for _, s := range seeds {
		balance, _ := decimal.NewFromString(s.balance)
		_, err := db.ExecContext(ctx, `
			INSERT INTO sim_resources (id, label, network, phone, status, balance, assigned_count, consecutive_failures, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'active', $5, 0, 0, $6, $6)
			ON CONFLICT DO NOTHING
		`, uuid.New(), s.label, s.network, s.phone, balance, now)
		if err != nil {
			log.Fatalf("Failed to seed sim %s: %v", s.label, err)
		}
	}
	log.Printf("Seeded %d sim resources", len(seeds))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
