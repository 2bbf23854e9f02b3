package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"devfolio/internal/auth"
	"devfolio/internal/config"
	"devfolio/internal/database"
)

// 创建初始账号的运维工具：生成随机口令并打印到标准输出。
func main() {
	var (
		username = flag.String("username", "", "初始账号用户名（必填）")
		display  = flag.String("display-name", "", "展示名（可选）")
		dbHost   = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort   = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName   = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser   = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass   = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode  = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	u := strings.TrimSpace(*username)
	if u == "" {
		log.Fatal("missing required flag: --username")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := db.AutoMigrate(&database.User{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	var existing database.User
	switch err := db.Where("username = ?", u).First(&existing).Error; {
	case err == nil:
		log.Fatalf("user %q already exists (id=%d)", u, existing.ID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// continue
	default:
		log.Fatalf("query user: %v", err)
	}

	password, err := generatePassword()
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	user := database.User{
		Username:     u,
		PasswordHash: hashed,
		DisplayName:  strings.TrimSpace(*display),
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("created user %q (id=%d)\npassword: %s\n", user.Username, user.ID, password)
}

func generatePassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// loadDatabaseConfig 优先使用命令行覆盖项，缺省回落到环境变量。
func loadDatabaseConfig(host string, port int, name, user, pass, sslMode string) (config.DatabaseConfig, error) {
	cfg := config.DatabaseConfig{
		Host:     strings.TrimSpace(host),
		Port:     port,
		Name:     strings.TrimSpace(name),
		User:     strings.TrimSpace(user),
		Password: pass,
		SSLMode:  strings.TrimSpace(sslMode),
	}

	if cfg.Host == "" {
		cfg.Host = envOr("DATABASE_HOST", "localhost")
	}
	if cfg.Port == 0 {
		parsed, err := strconv.Atoi(envOr("DATABASE_PORT", "5432"))
		if err != nil {
			return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
		}
		cfg.Port = parsed
	}
	if cfg.Name == "" {
		cfg.Name = envOr("POSTGRES_DB", "devfolio")
	}
	if cfg.User == "" {
		cfg.User = envOr("POSTGRES_USER", "devfolio")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("POSTGRES_PASSWORD")
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = envOr("DATABASE_SSLMODE", "disable")
	}

	if cfg.Password == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (flag or POSTGRES_PASSWORD)")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
