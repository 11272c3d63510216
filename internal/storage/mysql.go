package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"pulseboard/internal/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS keyed_metrics (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		category VARCHAR(255) NOT NULL,
		sub_category VARCHAR(255),
		value VARCHAR(255) NOT NULL,
		unit VARCHAR(50),
		trend_value VARCHAR(255),
		trend_unit VARCHAR(50),
		icon VARCHAR(255),
		color VARCHAR(50),
		display_order INT,
		status VARCHAR(50),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_keyed_category (category)
	)`,
	`CREATE TABLE IF NOT EXISTS named_metrics (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		type VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		value DECIMAL(14,4),
		display_value VARCHAR(255),
		trend_value DECIMAL(10,2),
		trend_status VARCHAR(50),
		color VARCHAR(50),
		icon VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_named_type (type)
	)`,
	`CREATE TABLE IF NOT EXISTS series_metrics (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		type VARCHAR(50) NOT NULL,
		subtype VARCHAR(50),
		name VARCHAR(100) NOT NULL,
		value DECIMAL(14,4),
		display_value VARCHAR(50),
		trend DECIMAL(5,2),
		color VARCHAR(20),
		date DATETIME,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_series_type (type)
	)`,
}

// MySQLStore is the production metric sink.
type MySQLStore struct {
	db     *sql.DB
	logger *logrus.Entry
}

// normalizeDSN forces parseTime=true so DATETIME columns scan into time.Time;
// without it the driver hands back []byte and every series read fails.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// OpenMySQL connects, configures the pool, and bootstraps the schema.
func OpenMySQL(ctx context.Context, dsn string, logger *logrus.Logger) (*MySQLStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{db: db, logger: logger.WithField("component", "storage")}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Begin(ctx context.Context) (Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &mysqlSession{ctx: ctx, tx: tx}, nil
}

type mysqlSession struct {
	ctx context.Context
	tx  *sql.Tx
}

func (s *mysqlSession) Add(rec models.Record) error {
	switch m := rec.(type) {
	case models.KeyedMetric:
		_, err := s.tx.ExecContext(s.ctx,
			`INSERT INTO keyed_metrics
			(category, sub_category, value, unit, trend_value, trend_unit, icon, color, display_order, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Category, m.SubCategory, m.Value, m.Unit, m.TrendValue, m.TrendUnit,
			m.Icon, m.Color, m.DisplayOrder, m.Status)
		return err
	case models.NamedMetric:
		_, err := s.tx.ExecContext(s.ctx,
			`INSERT INTO named_metrics
			(type, name, value, display_value, trend_value, trend_status, color, icon)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Type, m.Name, m.Value, m.DisplayValue, m.TrendValue, m.TrendStatus,
			m.Color, m.Icon)
		return err
	case models.TimestampedMetric:
		_, err := s.tx.ExecContext(s.ctx,
			`INSERT INTO series_metrics
			(type, subtype, name, value, display_value, trend, color, date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.Type, m.SubType, m.Name, m.Value, m.DisplayValue, m.Trend,
			m.Color, m.Date)
		return err
	default:
		return fmt.Errorf("unknown record type %T", rec)
	}
}

func (s *mysqlSession) Commit() error {
	return s.tx.Commit()
}

func (s *mysqlSession) Rollback() error {
	return s.tx.Rollback()
}

func (s *MySQLStore) KeyedMetrics(ctx context.Context, category string) ([]models.KeyedMetric, error) {
	query := `SELECT category, COALESCE(sub_category, ''), value, COALESCE(unit, ''),
		COALESCE(trend_value, ''), COALESCE(trend_unit, ''), COALESCE(icon, ''),
		COALESCE(color, ''), COALESCE(display_order, 0), COALESCE(status, '')
		FROM keyed_metrics`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY display_order, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KeyedMetric
	for rows.Next() {
		var m models.KeyedMetric
		if err := rows.Scan(&m.Category, &m.SubCategory, &m.Value, &m.Unit,
			&m.TrendValue, &m.TrendUnit, &m.Icon, &m.Color, &m.DisplayOrder, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MySQLStore) NamedMetrics(ctx context.Context, metricType string) ([]models.NamedMetric, error) {
	query := `SELECT type, name, COALESCE(value, 0), COALESCE(display_value, ''),
		trend_value, COALESCE(trend_status, ''), COALESCE(color, ''), COALESCE(icon, '')
		FROM named_metrics`
	args := []any{}
	if metricType != "" {
		query += ` WHERE type = ?`
		args = append(args, metricType)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NamedMetric
	for rows.Next() {
		var m models.NamedMetric
		if err := rows.Scan(&m.Type, &m.Name, &m.Value, &m.DisplayValue,
			&m.TrendValue, &m.TrendStatus, &m.Color, &m.Icon); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *MySQLStore) SeriesMetrics(ctx context.Context, metricType string) ([]models.TimestampedMetric, error) {
	query := `SELECT type, COALESCE(subtype, ''), name, COALESCE(value, 0),
		COALESCE(display_value, ''), trend, COALESCE(color, ''), COALESCE(date, created_at)
		FROM series_metrics`
	args := []any{}
	if metricType != "" {
		query += ` WHERE type = ?`
		args = append(args, metricType)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TimestampedMetric
	for rows.Next() {
		var m models.TimestampedMetric
		if err := rows.Scan(&m.Type, &m.SubType, &m.Name, &m.Value,
			&m.DisplayValue, &m.Trend, &m.Color, &m.Date); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
