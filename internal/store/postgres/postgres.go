// Package postgres persists draft sessions with gorm.
//
// A draft row and its pick rows are always written in one transaction. The
// partial unique index on (session_id, entity_id) from the migrations is the
// last line of defence against double-drafting; a violation surfaces as
// engine.ErrEntityAlreadyTaken.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
)

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres using dsn.
func Open(dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, crerr.New("database url is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, crerr.Wrap(err, "open postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, crerr.Wrap(err, "postgres pool")
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return crerr.Wrap(err, "postgres pool")
	}
	return sqlDB.Close()
}

func (s *Store) Load(ctx context.Context, id string) (engine.Session, error) {
	var row Draft
	err := s.db.WithContext(ctx).
		Preload("Picks", func(db *gorm.DB) *gorm.DB { return db.Order("pick_number") }).
		First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Session{}, fmt.Errorf("%w: %s", engine.ErrSessionNotFound, id)
	}
	if err != nil {
		return engine.Session{}, crerr.Wrapf(err, "load draft %s", id)
	}
	return toSession(row), nil
}

// Create inserts a new draft and its empty slots. An existing id is
// rejected rather than overwritten.
func (s *Store) Create(ctx context.Context, sess engine.Session) error {
	row, picks := fromSession(sess)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Picks").Create(&row).Error; err != nil {
			return err
		}
		if len(picks) == 0 {
			return nil
		}
		return tx.Create(&picks).Error
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: draft %s already exists", engine.ErrInvalidConfig, sess.ID)
	}
	if err != nil {
		return crerr.Wrapf(err, "create draft %s", sess.ID)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, sess engine.Session) error {
	row, picks := fromSession(sess)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Picks").Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if len(picks) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "pick_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"entity_id", "source", "filled_at"}),
		}).Create(&picks).Error
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: draft %s", engine.ErrEntityAlreadyTaken, sess.ID)
	}
	if err != nil {
		return crerr.Wrapf(err, "save draft %s", sess.ID)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]engine.Session, error) {
	return s.find(ctx, nil)
}

func (s *Store) ListActive(ctx context.Context) ([]engine.Session, error) {
	return s.find(ctx, []string{string(engine.StatusInProgress), string(engine.StatusStalled)})
}

// find loads drafts with their picks, restricted to statuses when non-empty.
func (s *Store) find(ctx context.Context, statuses []string) ([]engine.Session, error) {
	q := s.db.WithContext(ctx).
		Preload("Picks", func(db *gorm.DB) *gorm.DB { return db.Order("pick_number") })
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var rows []Draft
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, crerr.Wrap(err, "list drafts")
	}
	out := make([]engine.Session, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSession(row))
	}
	return out, nil
}

func fromSession(s engine.Session) (Draft, []DraftPick) {
	row := Draft{
		ID:             s.ID,
		TeamOrder:      datatypes.JSONSlice[string](s.TeamOrder),
		Rounds:         s.Rounds,
		PickDurationMS: s.PickDuration.Milliseconds(),
		Snake:          s.Snake,
		PositionCaps:   datatypes.NewJSONType(s.PositionCaps),
		Status:         string(s.Status),
		CurrentPick:    s.CurrentPick,
		Version:        s.Version,
		StallReason:    s.StallReason,
		DeadlineAt:     optTime(s.DeadlineAt),
		StartedAt:      optTime(s.StartedAt),
		EndedAt:        optTime(s.EndedAt),
		CreatedAt:      s.CreatedAt,
	}

	var slots []engine.PickSlot
	if s.Ledger != nil {
		slots = s.Ledger.Slots()
	}
	picks := make([]DraftPick, 0, len(slots))
	for _, slot := range slots {
		p := DraftPick{
			SessionID:  s.ID,
			PickNumber: slot.PickNumber,
			Round:      slot.Round,
			TeamID:     slot.TeamID,
		}
		if slot.Filled() {
			entity, source := slot.EntityID, string(slot.Source)
			p.EntityID = &entity
			p.Source = &source
			p.FilledAt = optTime(slot.FilledAt)
		}
		picks = append(picks, p)
	}
	return row, picks
}

func toSession(row Draft) engine.Session {
	slots := make([]engine.PickSlot, 0, len(row.Picks))
	for _, p := range row.Picks {
		slot := engine.PickSlot{PickNumber: p.PickNumber, Round: p.Round, TeamID: p.TeamID}
		if p.EntityID != nil {
			slot.EntityID = *p.EntityID
		}
		if p.Source != nil {
			slot.Source = engine.Source(*p.Source)
		}
		if p.FilledAt != nil {
			slot.FilledAt = *p.FilledAt
		}
		slots = append(slots, slot)
	}

	return engine.Session{
		ID:           row.ID,
		TeamOrder:    []string(row.TeamOrder),
		Rounds:       row.Rounds,
		PickDuration: time.Duration(row.PickDurationMS) * time.Millisecond,
		Snake:        row.Snake,
		PositionCaps: row.PositionCaps.Data(),
		Status:       engine.Status(row.Status),
		CurrentPick:  row.CurrentPick,
		Version:      row.Version,
		StallReason:  row.StallReason,
		DeadlineAt:   derefTime(row.DeadlineAt),
		StartedAt:    derefTime(row.StartedAt),
		EndedAt:      derefTime(row.EndedAt),
		CreatedAt:    row.CreatedAt,
		Ledger:       engine.NewLedger(slots),
	}
}

func optTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
