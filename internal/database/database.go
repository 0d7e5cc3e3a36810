package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/config"
	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Connect 连接数据库
// 根据配置选择 SQLite 或 PostgreSQL
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case "sqlite", "":
		// 确保数据库文件所在目录存在
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
		if err == nil {
			// SQLite 默认关闭外键约束,级联删除依赖它
			err = db.Exec("PRAGMA foreign_keys = ON").Error
		}
	case "postgres":
		db, err = gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 从配置中读取连接池参数,如果没有配置则使用默认值
	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	// 检测数据库类型
	dialector := db.Dialector.Name()

	// SQLite 不支持 jsonb,需要手动创建表
	// GORM SQLite dialector 的名称可能是 "sqlite" 或 "sqlite3"
	if dialector == "sqlite" || dialector == "sqlite3" {
		// 手动创建 SQLite 表（使用 TEXT 替代 jsonb）
		if err := createSQLiteTables(db); err != nil {
			return fmt.Errorf("failed to create SQLite tables: %w", err)
		}
	} else {
		// PostgreSQL 等其他数据库使用 AutoMigrate
		if err := db.AutoMigrate(
			&model.TaskModel{},
			&model.FacebookDataModel{},
			&model.ExportJobModel{},
		); err != nil {
			return fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createSQLiteTables 为 SQLite 手动创建表（使用 TEXT 替代 jsonb）
func createSQLiteTables(db *gorm.DB) error {
	// 创建 scraping_tasks 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scraping_tasks (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			url TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			config TEXT,
			items_processed INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create scraping_tasks table: %w", err)
	}

	// 创建 facebook_data 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS facebook_data (
			id VARCHAR(36) PRIMARY KEY,
			task_id VARCHAR(36) NOT NULL REFERENCES scraping_tasks(id) ON DELETE CASCADE,
			data_type VARCHAR(50) NOT NULL,
			content TEXT,
			metadata TEXT,
			source_url TEXT,
			extracted_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create facebook_data table: %w", err)
	}

	// 创建 export_jobs 表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS export_jobs (
			id VARCHAR(36) PRIMARY KEY,
			task_id VARCHAR(36) NOT NULL REFERENCES scraping_tasks(id) ON DELETE CASCADE,
			filename VARCHAR(255) NOT NULL,
			file_path VARCHAR(500) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			file_size INTEGER,
			created_at DATETIME NOT NULL,
			completed_at DATETIME
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create export_jobs table: %w", err)
	}

	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	// scraping_tasks 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_status ON scraping_tasks(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON scraping_tasks(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_created_at: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_tasks_url ON scraping_tasks(url)").Error; err != nil {
		return fmt.Errorf("failed to create idx_tasks_url: %w", err)
	}

	// facebook_data 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_data_task_id ON facebook_data(task_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_data_task_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_data_task_type ON facebook_data(task_id, data_type)").Error; err != nil {
		return fmt.Errorf("failed to create idx_data_task_type: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_data_extracted_at ON facebook_data(extracted_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_data_extracted_at: %w", err)
	}

	// export_jobs 表索引
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_exports_task_id ON export_jobs(task_id)").Error; err != nil {
		return fmt.Errorf("failed to create idx_exports_task_id: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_exports_status ON export_jobs(status)").Error; err != nil {
		return fmt.Errorf("failed to create idx_exports_status: %w", err)
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_exports_created_at ON export_jobs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create idx_exports_created_at: %w", err)
	}

	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试,等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return false
	}

	return true
}
