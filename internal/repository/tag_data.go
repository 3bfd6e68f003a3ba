package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/config"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/common/retry"
	"github.com/ShaunWilkinson/NRF5188-BLE-to-MQTT/internal/models"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrPersistence 写入 tag_data 失败
var ErrPersistence = errors.New("persistence error")

const tagDataColumns = "submitTime, gateway, tagMac, rssi, volt, tmr, xcnt"

// createTagDataSQL 各驱动的建表语句；BEA 列保留，不写入
var createTagDataSQL = map[string]string{
	config.DriverSQLite: `
		CREATE TABLE IF NOT EXISTS tag_data (
			submitTime int,
			gateway    varchar(25),
			tagMac     varchar(12),
			rssi       int(4),
			volt       long(4),
			tmr        int(4),
			xcnt       int(4),
			BEA        int(1)
		)`,
	config.DriverPostgres: `
		CREATE TABLE IF NOT EXISTS tag_data (
			submitTime bigint,
			gateway    varchar(25),
			tagMac     varchar(12),
			rssi       integer,
			volt       bigint,
			tmr        integer,
			xcnt       integer,
			BEA        smallint
		)`,
}

// TagDataRepository tag_data 表仓库
type TagDataRepository struct {
	db         *sql.DB
	driver     string
	insertStmt string
	logger     *zap.Logger
}

// NewTagDataRepository 创建 tag_data 仓库
func NewTagDataRepository(db *sql.DB, driver string, logger *zap.Logger) *TagDataRepository {
	return &TagDataRepository{
		db:         db,
		driver:     driver,
		insertStmt: buildInsert(driver),
		logger:     logger,
	}
}

// buildInsert 生成参数化 INSERT（postgres 使用 $n，sqlite 使用 ?）
func buildInsert(driver string) string {
	n := len(strings.Split(tagDataColumns, ","))
	placeholders := make([]string, n)
	for i := range placeholders {
		if driver == config.DriverPostgres {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO tag_data (%s) VALUES (%s)", tagDataColumns, strings.Join(placeholders, ", "))
}

// EnsureSchema 表不存在时创建
func (r *TagDataRepository) EnsureSchema(ctx context.Context) error {
	ddl, ok := createTagDataSQL[r.driver]
	if !ok {
		return fmt.Errorf("no tag_data schema for driver %s", r.driver)
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create tag_data table: %w", err)
	}
	return nil
}

// Insert 在独立事务中写入一条读数并提交
func (r *TagDataRepository) Insert(ctx context.Context, reading models.Reading) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrPersistence, err)
	}

	_, err = tx.ExecContext(ctx, r.insertStmt,
		reading.SubmitTime,
		reading.Gateway,
		reading.TagMAC,
		reading.RSSI,
		reading.Volt,
		reading.Timer,
		reading.TransmitCount,
	)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Warn("Failed to rollback tag_data insert", zap.Error(rbErr))
		}
		insertErr := fmt.Errorf("%w: insert tag_data: %v", ErrPersistence, err)
		if isPermanentDBError(err) {
			return retry.Permanent(insertErr)
		}
		return insertErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tag_data: %v", ErrPersistence, err)
	}

	r.logger.Debug("Inserted tag reading",
		zap.String("gateway", reading.Gateway),
		zap.String("tag_mac", reading.TagMAC),
		zap.Int64("submit_time", reading.SubmitTime),
	)

	return nil
}

// isPermanentDBError 数据本身被拒绝（越界、类型不符、约束冲突、SQL 错误），重试不会成功
func isPermanentDBError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23", "42":
			return true
		}
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint, sqlite3.ErrMismatch, sqlite3.ErrTooBig, sqlite3.ErrRange:
			return true
		}
	}
	return false
}

// CountByTag 统计某个标签的读数行数
func (r *TagDataRepository) CountByTag(ctx context.Context, gateway, tagMAC string) (int64, error) {
	query := "SELECT COUNT(*) FROM tag_data WHERE gateway = ? AND tagMac = ?"
	if r.driver == config.DriverPostgres {
		query = "SELECT COUNT(*) FROM tag_data WHERE gateway = $1 AND tagMac = $2"
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, gateway, tagMAC).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tag_data: %w", err)
	}
	return count, nil
}
