package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// Resets the development environment: truncates the users table, wipes the
// scheduling collections from the record store and seeds a default admin.
func main() {
	fmt.Println("========================================")
	fmt.Println("   Reset Environment for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL DATA!")
	fmt.Println()
	fmt.Println("This will:")
	fmt.Println("  - Delete all users")
	fmt.Println("  - Delete the active schedule (programacoes)")
	fmt.Println("  - Delete the history archive (historico)")
	fmt.Println("  - Seed a default admin user")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)

	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	godotenv.Load()

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "fieldops_db")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		dbUser, dbPassword, dbHost, dbPort, dbName)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	fmt.Println()
	fmt.Println("Resetting database...")

	if _, err := pool.Exec(ctx, "TRUNCATE TABLE users CASCADE"); err != nil {
		log.Fatalf("Failed to truncate users: %v\n", err)
	}
	fmt.Println("  - Cleared users")

	if _, err := pool.Exec(ctx, "ALTER SEQUENCE users_id_seq RESTART WITH 1"); err != nil {
		log.Printf("Warning: failed to reset users sequence: %v\n", err)
	}

	// Default admin, password: admin123
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), 8)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v\n", err)
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO users (email, password_hash, name, role, access_levels, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)`,
		"admin@fieldops.com",
		string(hash),
		"Administrator",
		"admin",
		`{"operacao":3,"lavagem":3,"compostagem":3,"contatos":3}`,
	)
	if err != nil {
		log.Fatalf("Failed to create admin user: %v\n", err)
	}
	fmt.Println("  - Created admin user")

	fmt.Println("Resetting record store...")

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer rdb.Close()

	for _, pattern := range []string{
		"fieldops:rec:programacoes:*",
		"fieldops:rec:historico:*",
		"fieldops:idx:programacoes",
		"fieldops:idx:historico",
	} {
		iter := rdb.Scan(ctx, 0, pattern, 0).Iterator()
		cleared := 0
		for iter.Next(ctx) {
			if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
				log.Fatalf("Failed to delete %s: %v\n", iter.Val(), err)
			}
			cleared++
		}
		if err := iter.Err(); err != nil {
			log.Fatalf("Scan failed for %s: %v\n", pattern, err)
		}
		fmt.Printf("  - Cleared %s (%d keys)\n", pattern, cleared)
	}

	fmt.Println()
	fmt.Println("Environment reset successful!")
	fmt.Println()
	fmt.Println("Default credentials:")
	fmt.Println("  Email:    admin@fieldops.com")
	fmt.Println("  Password: admin123")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
