package frontier

import (
	"context"
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// urlRow is the persisted form of a URLRecord. Key is a BLOB primary key
// holding the raw 10-byte composite key; SQLite compares BLOB columns
// byte-lexicographically by default, so ORDER BY key ASC and WHERE key > ?
// reproduce the composite ordering without any secondary index or
// application-side merge.
type urlRow struct {
	Key         []byte `gorm:"column:key;primaryKey"`
	Docid       uint64 `gorm:"column:docid;uniqueIndex"`
	SeedDocid   uint64 `gorm:"column:seed_docid;index"`
	ParentDocid uint64 `gorm:"column:parent_docid"`
	Priority    int8   `gorm:"column:priority"`
	Depth       uint16 `gorm:"column:depth"`
	URL         string `gorm:"column:url"`
	Host        string `gorm:"column:host;index"`
}

func (urlRow) TableName() string { return "urls" }

func (r urlRow) toRecord() URLRecord {
	return URLRecord{
		Docid:       r.Docid,
		SeedDocid:   r.SeedDocid,
		ParentDocid: r.ParentDocid,
		Priority:    r.Priority,
		Depth:       r.Depth,
		URL:         r.URL,
		Host:        r.Host,
	}
}

// seedCountRow is the persisted companion store mapping a seed docid to
// its live-descendant count (Section 3).
type seedCountRow struct {
	SeedDocid uint64 `gorm:"column:seed_docid;primaryKey"`
	Count     int32  `gorm:"column:count"`
}

func (seedCountRow) TableName() string { return "seed_count" }

// sqliteStore is the embedded ordered store, backed by gorm.io/driver/sqlite
// (already in the teacher's go.mod). It has no direct teacher precedent:
// no example repo keeps an ordered byte-keyed
// store, so this is a deliberate, load-bearing choice (see DESIGN.md).
type sqliteStore struct {
	db        *gorm.DB
	resumable bool
}

// OpenSQLiteStore opens (creating if needed) the SQLite file at path and
// migrates the urls/seed_count tables. When resumable is false, gorm's
// default per-statement transaction is skipped so writes commit as they
// happen rather than being grouped (Section 5/9: resumable mode groups
// each mutating call into one commit; non-resumable mode does not).
func OpenSQLiteStore(path string, resumable bool) (*sqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: !resumable,
	})
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := db.AutoMigrate(&urlRow{}, &seedCountRow{}); err != nil {
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	return &sqliteStore{db: db, resumable: resumable}, nil
}

func (s *sqliteStore) Put(ctx context.Context, key Key, rec URLRecord) (bool, error) {
	row := urlRow{
		Key:         key.Bytes(),
		Docid:       rec.Docid,
		SeedDocid:   rec.SeedDocid,
		ParentDocid: rec.ParentDocid,
		Priority:    rec.Priority,
		Depth:       rec.Depth,
		URL:         rec.URL,
		Host:        rec.Host,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, &StorageError{Op: "put", Err: res.Error}
	}
	return res.RowsAffected > 0, nil
}

func (s *sqliteStore) Delete(ctx context.Context, key Key) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key.Bytes()).Delete(&urlRow{}).Error; err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, key Key) (URLRecord, bool, error) {
	var row urlRow
	err := s.db.WithContext(ctx).Where("key = ?", key.Bytes()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return URLRecord{}, false, nil
	}
	if err != nil {
		return URLRecord{}, false, &StorageError{Op: "get", Err: err}
	}
	return row.toRecord(), true, nil
}

func (s *sqliteStore) First(ctx context.Context) (Key, URLRecord, bool, error) {
	var row urlRow
	err := s.db.WithContext(ctx).Order("key ASC").Limit(1).Find(&row).Error
	if err != nil {
		return Key{}, URLRecord{}, false, &StorageError{Op: "first", Err: err}
	}
	if row.Key == nil {
		return Key{}, URLRecord{}, false, nil
	}
	var k Key
	copy(k[:], row.Key)
	return k, row.toRecord(), true, nil
}

func (s *sqliteStore) Next(ctx context.Context, after Key) (Key, URLRecord, bool, error) {
	var row urlRow
	err := s.db.WithContext(ctx).Where("key > ?", after.Bytes()).Order("key ASC").Limit(1).Find(&row).Error
	if err != nil {
		return Key{}, URLRecord{}, false, &StorageError{Op: "next", Err: err}
	}
	if row.Key == nil {
		return Key{}, URLRecord{}, false, nil
	}
	var k Key
	copy(k[:], row.Key)
	return k, row.toRecord(), true, nil
}

func (s *sqliteStore) RangeDelete(ctx context.Context, match func(URLRecord) bool) ([]URLRecord, error) {
	var rows []urlRow
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, &StorageError{Op: "range_delete_scan", Err: err}
	}

	var deleteKeys [][]byte
	var removed []URLRecord
	for _, row := range rows {
		rec := row.toRecord()
		if match(rec) {
			deleteKeys = append(deleteKeys, row.Key)
			removed = append(removed, rec)
		}
	}
	if len(deleteKeys) == 0 {
		return nil, nil
	}
	if err := s.db.WithContext(ctx).Where("key IN ?", deleteKeys).Delete(&urlRow{}).Error; err != nil {
		return nil, &StorageError{Op: "range_delete", Err: err}
	}
	return removed, nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&urlRow{}).Count(&n).Error; err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return int(n), nil
}

func (s *sqliteStore) All(ctx context.Context) ([]URLRecord, error) {
	var rows []urlRow
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, &StorageError{Op: "all", Err: err}
	}
	recs := make([]URLRecord, len(rows))
	for i, row := range rows {
		recs[i] = row.toRecord()
	}
	return recs, nil
}

func (s *sqliteStore) PutSeedCount(ctx context.Context, seed uint64, count int) error {
	row := seedCountRow{SeedDocid: seed, Count: int32(count)}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seed_docid"}},
			DoUpdates: clause.AssignmentColumns([]string{"count"}),
		}).
		Create(&row).Error
	if err != nil {
		return &StorageError{Op: "put_seed_count", Err: err}
	}
	return nil
}

func (s *sqliteStore) DeleteSeedCount(ctx context.Context, seed uint64) error {
	if err := s.db.WithContext(ctx).Where("seed_docid = ?", seed).Delete(&seedCountRow{}).Error; err != nil {
		return &StorageError{Op: "delete_seed_count", Err: err}
	}
	return nil
}

func (s *sqliteStore) AllSeedCounts(ctx context.Context) (map[uint64]int, error) {
	var rows []seedCountRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, &StorageError{Op: "all_seed_counts", Err: err}
	}
	m := make(map[uint64]int, len(rows))
	for _, r := range rows {
		m[r.SeedDocid] = int(r.Count)
	}
	return m, nil
}

func (s *sqliteStore) Transaction(ctx context.Context, fn func(tx OrderedURLStore) error) error {
	if !s.resumable {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(txDB *gorm.DB) error {
		tx := &sqliteStore{db: txDB, resumable: s.resumable}
		return fn(tx)
	})
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	if err := sqlDB.Close(); err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}
