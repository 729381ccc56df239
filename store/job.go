package store

import (
	"strings"

	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
)

func (s *Store) AddJob(job model.Job) (*model.Job, error) {
	stmt := `
        INSERT INTO job (uuid, book_id, type, status, reverse, delete_posts, force, date, services, requeues, max_requeues)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id`
	args := []any{
		job.UUID, job.BookID, job.Type, job.Status, job.Reverse, job.DeletePosts,
		job.Force, job.Date, strings.Join(job.Services, ","), job.Requeues, job.MaxRequeues,
	}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if err := s.db.QueryRow(stmt, args...).Scan(&job.ID); err != nil {
		log.Error("Failed to add job", zap.Error(err))
		return nil, err
	}
	return &job, nil
}

func (s *Store) UpdateJobStatus(jobID int, status string) error {
	stmt := `UPDATE job SET status = ? WHERE id = ?`
	log.Debug("SQL query and args:", zap.String("query", stmt),
		zap.String("status", status), zap.Int("id", jobID))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.db.Exec(stmt, status, jobID)
	return err
}

// PendingJobs returns jobs not yet done, oldest first. The worker pool
// re-queues them on startup after a crash.
func (s *Store) PendingJobs() ([]*model.Job, error) {
	query := `
        SELECT id, uuid, book_id, type, status, reverse, delete_posts, force, date, services, requeues, max_requeues
        FROM job
        WHERE status IN (?, ?)
        ORDER BY id`

	rows, err := s.db.Query(query, model.JobStatusPending, model.JobStatusRunning)
	if err != nil {
		log.Error("Failed to query jobs", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.Job, 0)
	for rows.Next() {
		var job model.Job
		var services string
		if err := rows.Scan(
			&job.ID, &job.UUID, &job.BookID, &job.Type, &job.Status,
			&job.Reverse, &job.DeletePosts, &job.Force, &job.Date, &services,
			&job.Requeues, &job.MaxRequeues,
		); err != nil {
			log.Error("Failed to scan job", zap.Error(err))
			return nil, err
		}
		if services != "" {
			job.Services = strings.Split(services, ",")
		}
		list = append(list, &job)
	}
	return list, rows.Err()
}
