package store

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
)

func (s *Store) AddActivityLog(entry *model.ActivityLog) (*model.ActivityLog, error) {
	if entry.CreatedOn == "" {
		entry.CreatedOn = time.Now().Format(time.RFC3339)
	}

	stmt := `
        INSERT INTO activity_log (book_id, book_page_ids, action, processed, created_on)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id`
	args := []any{entry.BookID, entry.PageIDs, entry.Action, entry.Processed, entry.CreatedOn}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if err := s.db.QueryRow(stmt, args...).Scan(&entry.ID); err != nil {
		log.Error("Failed to add activity log", zap.Error(err))
		return nil, err
	}
	return entry, nil
}

func (s *Store) ListActivityLogs(find *model.FindActivityLog) ([]*model.ActivityLog, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.BookID; v != nil {
		where, args = append(where, "book_id = ?"), append(args, *v)
	}
	if v := find.Action; v != nil {
		where, args = append(where, "action = ?"), append(args, *v)
	}
	if v := find.Processed; v != nil {
		where, args = append(where, "processed = ?"), append(args, *v)
	}
	if v := find.Date; v != nil {
		where, args = append(where, "created_on LIKE ?"), append(args, *v+"%")
	}

	query := `
        SELECT id, book_id, book_page_ids, action, processed, created_on
        FROM activity_log
    WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`

	log.Debug("SQL query and args:", zap.String("query", query), zap.Any("args", args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Error("Failed to query activity logs", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.ActivityLog, 0)
	for rows.Next() {
		var entry model.ActivityLog
		if err := rows.Scan(
			&entry.ID, &entry.BookID, &entry.PageIDs, &entry.Action,
			&entry.Processed, &entry.CreatedOn,
		); err != nil {
			log.Error("Failed to scan activity log", zap.Error(err))
			return nil, err
		}
		list = append(list, &entry)
	}
	return list, rows.Err()
}

func (s *Store) MarkActivityLogsProcessed(ids []int) error {
	if len(ids) == 0 {
		return nil
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := `UPDATE activity_log SET processed = 1 WHERE id = ?`
	for _, id := range ids {
		if _, err := tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
