package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/campus-card/backend/internal/storage/models"
	"github.com/campus-card/backend/pkg/logger"
	"github.com/campus-card/backend/pkg/utils"
)

const (
	// HotLocationWindow is how far back hot locations and owner lookups look.
	HotLocationWindow = 15 * 24 * time.Hour
	hotLocationLimit  = 10

	rawLocationPrefix = "[原始] "

	cardColumns = `id, card_number, student_id, status, found_location, found_time,
		handler_option, photo_url, contact, is_matched, select_loc`
)

var ErrCardNotFound = errors.New("card not found")

type Client struct {
	db  *sql.DB
	now func() time.Time
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: time.Now}, nil
}

// WithClock replaces the time source used for found times and the
// hot-location window.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS campus_cards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		card_number TEXT UNIQUE NOT NULL,
		student_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'normal',
		found_location TEXT,
		found_time INTEGER,
		handler_option INTEGER,
		photo_url TEXT,
		contact TEXT,
		is_matched INTEGER NOT NULL DEFAULT 0,
		select_loc TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cards_found_time ON campus_cards(found_time);
	CREATE INDEX IF NOT EXISTS idx_cards_student ON campus_cards(student_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// UpsertFoundCard records a found card. A card number seen before is
// overwritten and its resolved location cleared. It returns the card id.
func (c *Client) UpsertFoundCard(ctx context.Context, card *models.Card) (int64, error) {
	query := `
		INSERT INTO campus_cards (card_number, student_id, status, found_location, found_time,
			handler_option, photo_url, contact, is_matched, select_loc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(card_number) DO UPDATE SET
			student_id = excluded.student_id,
			status = excluded.status,
			found_location = excluded.found_location,
			found_time = excluded.found_time,
			handler_option = excluded.handler_option,
			photo_url = excluded.photo_url,
			contact = excluded.contact,
			is_matched = excluded.is_matched,
			select_loc = NULL
	`

	foundTime := c.now()
	if card.FoundTime != nil {
		foundTime = *card.FoundTime
	}

	_, err := c.db.ExecContext(ctx, query,
		card.CardNumber,
		card.StudentID,
		models.CardStatusFound,
		card.FoundLocation,
		foundTime.Unix(),
		card.HandlerOption,
		card.PhotoURL,
		card.Contact,
		boolToInt(card.IsMatched),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert card: %w", err)
	}

	var id int64
	if err := c.db.QueryRowContext(ctx,
		`SELECT id FROM campus_cards WHERE card_number = ?`, card.CardNumber,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read card id: %w", err)
	}

	logger.Debug("Card recorded",
		zap.Int64("card_id", id),
		zap.String("found_location", card.FoundLocation),
	)

	return id, nil
}

func (c *Client) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM campus_cards WHERE id = ?`

	card, err := scanCard(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// SetResolvedLocation stores the gazetteer name foundLocation resolved to.
// The write only lands while the card still carries foundLocation; it
// reports false when the card has since been re-reported elsewhere.
func (c *Client) SetResolvedLocation(ctx context.Context, id int64, foundLocation, name string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`UPDATE campus_cards SET select_loc = ? WHERE id = ? AND found_location = ?`,
		name, id, foundLocation,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update resolved location: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update resolved location: %w", err)
	}
	if n == 0 {
		var exists int
		err := c.db.QueryRowContext(ctx, `SELECT 1 FROM campus_cards WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrCardNotFound
		}
		if err != nil {
			return false, fmt.Errorf("failed to check card: %w", err)
		}
		return false, nil
	}

	logger.Info("Resolved location stored", zap.Int64("card_id", id), zap.String("select_loc", name))
	return true, nil
}

// FindRecentFoundCard returns the latest found card for studentID reported
// within HotLocationWindow.
func (c *Client) FindRecentFoundCard(ctx context.Context, studentID string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM campus_cards
		WHERE student_id = ? AND status = ? AND found_time >= ?
		ORDER BY found_time DESC, id DESC
		LIMIT 1
	`
	since := c.now().Add(-HotLocationWindow).Unix()

	card, err := scanCard(c.db.QueryRowContext(ctx, query, studentID, models.CardStatusFound, since))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// MarkMatched flags a card as claimed by its owner.
func (c *Client) MarkMatched(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `UPDATE campus_cards SET is_matched = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark card matched: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark card matched: %w", err)
	}
	if n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// UnmatchedCards lists found cards from the last window that no owner has
// claimed yet, oldest first.
func (c *Client) UnmatchedCards(ctx context.Context) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM campus_cards
		WHERE is_matched = 0 AND status = ? AND found_time >= ?
		ORDER BY found_time, id
	`
	since := c.now().Add(-HotLocationWindow).Unix()

	rows, err := c.db.QueryContext(ctx, query, models.CardStatusFound, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmatched cards: %w", err)
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unmatched cards: %w", err)
	}

	return cards, nil
}

// HotLocations counts where cards were found during the last window. Cards
// without a resolved location are counted under their raw text, prefixed.
// Equal counts keep first-seen order.
func (c *Client) HotLocations(ctx context.Context) (*models.HotLocations, error) {
	since := c.now().Add(-HotLocationWindow).Unix()

	rows, err := c.db.QueryContext(ctx, `
		SELECT found_location, select_loc
		FROM campus_cards
		WHERE found_time >= ?
		ORDER BY id
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query hot locations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	var order []string
	total, analysed := 0, 0

	for rows.Next() {
		var found, selected sql.NullString
		if err := rows.Scan(&found, &selected); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		total++

		var loc string
		switch {
		case strings.TrimSpace(selected.String) != "":
			loc = strings.TrimSpace(selected.String)
			analysed++
		case strings.TrimSpace(found.String) != "":
			loc = rawLocationPrefix + strings.TrimSpace(found.String)
		default:
			continue
		}

		if _, seen := counts[loc]; !seen {
			order = append(order, loc)
		}
		counts[loc]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hot locations: %w", err)
	}

	out := &models.HotLocations{Locations: []models.HotLocation{}}
	out.Statistics.TotalCards = total
	out.Statistics.CardsWithAnalysis = analysed
	if total == 0 {
		return out, nil
	}
	out.Statistics.AnalysisCoverage = utils.Round1(float64(analysed) / float64(total) * 100)

	for _, loc := range order {
		out.Locations = append(out.Locations, models.HotLocation{
			Location:   loc,
			Count:      counts[loc],
			Percentage: utils.Round1(float64(counts[loc]) / float64(total) * 100),
		})
	}
	sort.SliceStable(out.Locations, func(i, j int) bool {
		return out.Locations[i].Count > out.Locations[j].Count
	})
	if len(out.Locations) > hotLocationLimit {
		out.Locations = out.Locations[:hotLocationLimit]
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var (
		card                            models.Card
		found, photo, contact, selected sql.NullString
		foundTime, handler              sql.NullInt64
		matched                         int
	)

	err := row.Scan(
		&card.ID,
		&card.CardNumber,
		&card.StudentID,
		&card.Status,
		&found,
		&foundTime,
		&handler,
		&photo,
		&contact,
		&matched,
		&selected,
	)
	if err != nil {
		return nil, err
	}

	card.FoundLocation = found.String
	card.PhotoURL = photo.String
	card.Contact = contact.String
	card.SelectLoc = selected.String
	card.HandlerOption = int(handler.Int64)
	card.IsMatched = matched != 0
	if foundTime.Valid {
		t := time.Unix(foundTime.Int64, 0)
		card.FoundTime = &t
	}

	return &card, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
