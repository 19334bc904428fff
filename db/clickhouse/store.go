// Package clickhouse persists closed-deal history in ClickHouse.
// Columnar storage fits the access pattern: training and neighbor scoring
// read a customer's whole history at once, writes arrive in bursts from CRM
// imports.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool

	// CacheTTL bounds how stale a cached customer history may get. Writes to
	// a customer invalidate that customer's entry immediately.
	CacheTTL time.Duration
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "dealmargin",
		Username: "default",
		Password: "",
		Debug:    false,
		CacheTTL: 5 * time.Minute,
	}
}

// DealStore reads and writes closed-deal history.
type DealStore struct {
	conn clickhouse.Conn
	cfg  *Config

	mu    sync.RWMutex
	cache map[string]cachedHistory
	now   func() time.Time
}

type cachedHistory struct {
	deals     []deal.HistoricalDeal
	expiresAt time.Time
}

// NewDealStore connects to ClickHouse.
func NewDealStore(cfg *Config) (*DealStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &DealStore{
		conn:  conn,
		cfg:   cfg,
		cache: make(map[string]cachedHistory),
		now:   time.Now,
	}, nil
}

// Ping checks database connectivity.
func (s *DealStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *DealStore) Close() error {
	return s.conn.Close()
}

const dealColumns = `
	id, customer_id, oem_cost,
	industry, segment, product_category, relationship, registration,
	competitor_count, value_add, complexity, tech_sophistication, strategic_importance,
	price_sensitivity, loyalty, urgency, differentiation,
	new_logo, services_attached, quarter_end, displacement,
	competitors, vendor, bom_line_count, bom_avg_margin,
	achieved_margin, status, loss_reason, close_date, created_at
`

// ListClosedDeals returns a customer's full closed-deal history, newest
// first. Reads within the TTL are served from cache.
func (s *DealStore) ListClosedDeals(ctx context.Context, customerID string) ([]deal.HistoricalDeal, error) {
	s.mu.RLock()
	if cached, ok := s.cache[customerID]; ok && s.now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.deals, nil
	}
	s.mu.RUnlock()

	query := `SELECT ` + dealColumns + ` FROM deal_history WHERE customer_id = ? ORDER BY close_date DESC`
	rows, err := s.conn.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed deals: %w", err)
	}
	defer rows.Close()

	var deals []deal.HistoricalDeal
	for rows.Next() {
		h, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, h)
	}

	s.mu.Lock()
	s.cache[customerID] = cachedHistory{deals: deals, expiresAt: s.now().Add(s.cfg.CacheTTL)}
	s.mu.Unlock()
	return deals, nil
}

// InsertDeal writes one closed deal and invalidates the customer's cache.
func (s *DealStore) InsertDeal(ctx context.Context, customerID string, h deal.HistoricalDeal) error {
	row, err := toRow(customerID, h)
	if err != nil {
		return err
	}
	query := `INSERT INTO deal_history (` + dealColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.conn.Exec(ctx, query, row...); err != nil {
		return fmt.Errorf("failed to insert deal: %w", err)
	}
	s.invalidate(customerID)
	return nil
}

// BulkInsertDeals writes a batch of closed deals efficiently and invalidates
// the customer's cache once.
func (s *DealStore) BulkInsertDeals(ctx context.Context, customerID string, deals []deal.HistoricalDeal) error {
	if len(deals) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO deal_history (`+dealColumns+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, h := range deals {
		row, err := toRow(customerID, h)
		if err != nil {
			return err
		}
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	s.invalidate(customerID)
	return nil
}

// CountClosedDeals returns how many closed deals a customer has.
func (s *DealStore) CountClosedDeals(ctx context.Context, customerID string) (int, error) {
	row := s.conn.QueryRow(ctx, `SELECT count() FROM deal_history WHERE customer_id = ?`, customerID)
	var count uint64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count deals: %w", err)
	}
	return int(count), nil
}

func (s *DealStore) invalidate(customerID string) {
	s.mu.Lock()
	delete(s.cache, customerID)
	s.mu.Unlock()
}

func toRow(customerID string, h deal.HistoricalDeal) ([]interface{}, error) {
	competitorsJSON, err := json.Marshal(h.Competitors)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal competitors: %w", err)
	}
	vendorJSON := []byte("null")
	if h.Vendor != nil {
		vendorJSON, err = json.Marshal(h.Vendor)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal vendor: %w", err)
		}
	}

	return []interface{}{
		uuid.New(), customerID, h.OEMCost,
		string(h.Industry), string(h.Segment), string(h.ProductCategory), string(h.Relationship), string(h.Registration),
		int32(h.CompetitorCount), string(h.ValueAdd), string(h.Complexity), string(h.TechSophistication), string(h.StrategicImportance),
		int32(h.PriceSensitivity), int32(h.Loyalty), int32(h.Urgency), int32(h.Differentiation),
		boolToUInt8(h.NewLogo), boolToUInt8(h.ServicesAttached), boolToUInt8(h.QuarterEnd), boolToUInt8(h.Displacement),
		string(competitorsJSON), string(vendorJSON), int32(h.BOMLineCount), float64(h.BOMAvgMargin),
		float64(h.AchievedMargin), string(h.Status), h.LossReason, h.CloseDate, time.Now(),
	}, nil
}

// rowScanner covers both driver.Rows and driver.Row.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row rowScanner) (deal.HistoricalDeal, error) {
	var (
		h                                                                                                          deal.HistoricalDeal
		id                                                                                                         uuid.UUID
		customerID                                                                                                 string
		competitorCount, priceSensitivity, loyalty, urgency, differentiation, bomLineCount                         int32
		newLogo, servicesAttached, quarterEnd, displacement                                                        uint8
		competitorsJSON, vendorJSON                                                                                string
		bomAvgMargin, achievedMargin                                                                               float64
		industry, segment, category, relationship, registration, valueAdd, complexity, techSoph, strategic, status string
		createdAt                                                                                                  time.Time
	)
	err := row.Scan(
		&id, &customerID, &h.OEMCost,
		&industry, &segment, &category, &relationship, &registration,
		&competitorCount, &valueAdd, &complexity, &techSoph, &strategic,
		&priceSensitivity, &loyalty, &urgency, &differentiation,
		&newLogo, &servicesAttached, &quarterEnd, &displacement,
		&competitorsJSON, &vendorJSON, &bomLineCount, &bomAvgMargin,
		&achievedMargin, &status, &h.LossReason, &h.CloseDate, &createdAt,
	)
	if err != nil {
		return h, fmt.Errorf("failed to scan deal: %w", err)
	}

	h.Industry = deal.Industry(industry)
	h.Segment = deal.Segment(segment)
	h.ProductCategory = deal.ProductCategory(category)
	h.Relationship = deal.Relationship(relationship)
	h.Registration = deal.Registration(registration)
	h.CompetitorCount = int(competitorCount)
	h.ValueAdd = deal.ValueAdd(valueAdd)
	h.Complexity = deal.Complexity(complexity)
	h.TechSophistication = deal.Tier(techSoph)
	h.StrategicImportance = deal.Tier(strategic)
	h.PriceSensitivity = int(priceSensitivity)
	h.Loyalty = int(loyalty)
	h.Urgency = int(urgency)
	h.Differentiation = int(differentiation)
	h.NewLogo = newLogo == 1
	h.ServicesAttached = servicesAttached == 1
	h.QuarterEnd = quarterEnd == 1
	h.Displacement = displacement == 1
	h.BOMLineCount = int(bomLineCount)
	h.BOMAvgMargin = margins.Fraction(bomAvgMargin)
	h.AchievedMargin = margins.Fraction(achievedMargin)
	h.Status = deal.Status(status)

	if competitorsJSON != "" && competitorsJSON != "null" {
		if err := json.Unmarshal([]byte(competitorsJSON), &h.Competitors); err != nil {
			return h, fmt.Errorf("failed to unmarshal competitors: %w", err)
		}
	}
	if vendorJSON != "" && vendorJSON != "null" {
		var vendor deal.VendorProfile
		if err := json.Unmarshal([]byte(vendorJSON), &vendor); err != nil {
			return h, fmt.Errorf("failed to unmarshal vendor: %w", err)
		}
		h.Vendor = &vendor
	}
	return h, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
