package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"quiz-proctor/internal/throttle"
)

// Open opens (or creates) the local SQLite database at path.
func Open(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

type recordRow struct {
	bun.BaseModel `bun:"table:throttle_records"`

	Fingerprint string    `bun:"fingerprint,pk"`
	Data        string    `bun:"data"`
	UpdatedAt   time.Time `bun:"updated_at"`
}

// RecordStore keeps throttle records in a local SQLite file, the durable
// variant of the JSON file store. Record payloads are stored as JSON text so
// the persisted shape matches the other stores; a corrupt row reads as absent.
type RecordStore struct {
	db *bun.DB
}

func NewRecordStore(db *bun.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) Load(ctx context.Context, fingerprint string) (throttle.Record, bool, error) {
	row := new(recordRow)
	err := s.db.NewSelect().Model(row).Where("fingerprint = ?", fingerprint).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return throttle.Record{}, false, nil
	}
	if err != nil {
		return throttle.Record{}, false, err
	}
	var rec throttle.Record
	if err := json.Unmarshal([]byte(row.Data), &rec); err != nil {
		return throttle.Record{}, false, nil
	}
	return rec, true, nil
}

func (s *RecordStore) Save(ctx context.Context, fingerprint string, rec throttle.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	row := &recordRow{
		Fingerprint: fingerprint,
		Data:        string(data),
		UpdatedAt:   time.Now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (fingerprint) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}
