package store

import (
	"database/sql"
	"sync"
)

type Store struct {
	db     *sql.DB
	dbLock sync.Mutex

	BookCache    sync.Map // map[int]*model.Book
	CreatorCache sync.Map // map[int]*model.Creator
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) DBStats() sql.DBStats {
	return s.db.Stats()
}

func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
