package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
)

const pageColumns = `
            id,
            book_id,
            page_no,
            image,
            original_name,
            size,
            thumb_w,
            thumb_h,
            thumb_shrink,
            last_modified`

func scanPage(rows interface{ Scan(...any) error }) (*model.BookPage, error) {
	var page model.BookPage
	if err := rows.Scan(
		&page.ID,
		&page.BookID,
		&page.PageNo,
		&page.Image,
		&page.OriginalName,
		&page.Size,
		&page.ThumbW,
		&page.ThumbH,
		&page.ThumbShrink,
		&page.LastModified,
	); err != nil {
		return nil, err
	}
	return &page, nil
}

// AddPage appends a page: page_no = 1 + max(existing).
func (s *Store) AddPage(page *model.BookPage) (*model.BookPage, error) {
	page.LastModified = time.Now().Format(time.RFC3339)
	if page.ThumbShrink == 0 {
		page.ThumbShrink = 1
	}

	stmt := `
        INSERT INTO book_page (
            book_id, page_no, image, original_name, size,
            thumb_w, thumb_h, thumb_shrink, last_modified
        ) VALUES (
            ?,
            1 + COALESCE((SELECT MAX(page_no) FROM book_page WHERE book_id = ?), 0),
            ?, ?, ?, ?, ?, ?, ?
        )
        RETURNING` + pageColumns
	args := []any{
		page.BookID, page.BookID, page.Image, page.OriginalName, page.Size,
		page.ThumbW, page.ThumbH, page.ThumbShrink, page.LastModified,
	}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	row := s.db.QueryRow(stmt, args...)
	newPage, err := scanPage(row)
	if err != nil {
		log.Error("Failed to add page", zap.Error(err))
		return nil, err
	}
	return newPage, nil
}

func (s *Store) GetPage(find *model.FindBookPage) (*model.BookPage, error) {
	list, err := s.ListPages(find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// MustGetPage is GetPage returning ErrNotFound when no row matches.
func (s *Store) MustGetPage(find *model.FindBookPage) (*model.BookPage, error) {
	page, err := s.GetPage(find)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.Wrap(ErrNotFound, "book page")
	}
	return page, nil
}

// ListPages returns pages in page_no order.
func (s *Store) ListPages(find *model.FindBookPage) ([]*model.BookPage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.BookID; v != nil {
		where, args = append(where, "book_id = ?"), append(args, *v)
	}
	if v := find.PageNo; v != nil {
		where, args = append(where, "page_no = ?"), append(args, *v)
	}

	query := `SELECT` + pageColumns + `
        FROM book_page
    WHERE ` + strings.Join(where, " AND ") + ` ORDER BY page_no`

	log.Debug("SQL query and args:", zap.String("query", query), zap.Any("args", args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Error("Failed to query pages", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.BookPage, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			log.Error("Failed to scan page", zap.Error(err))
			return nil, err
		}
		list = append(list, page)
	}
	return list, rows.Err()
}

func (s *Store) PageCount(bookID int) (int, error) {
	stmt := `SELECT COUNT(*) FROM book_page WHERE book_id = ?`
	var count int
	if err := s.db.QueryRow(stmt, bookID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdatePageThumb records the derived thumbnail geometry.
func (s *Store) UpdatePageThumb(pageID, w, h int, shrink float64) error {
	stmt := `
        UPDATE book_page
        SET thumb_w = ?, thumb_h = ?, thumb_shrink = ?, last_modified = ?
        WHERE id = ?`
	args := []any{w, h, shrink, time.Now().Format(time.RFC3339), pageID}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.db.Exec(stmt, args...)
	return err
}

// RemovePage deletes the page record. Renumbering happens on the next
// reorder, not here.
func (s *Store) RemovePage(pageID int) error {
	stmt := `DELETE FROM book_page WHERE id = ?`
	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Int("id", pageID))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	_, err := s.db.Exec(stmt, pageID)
	return err
}

// ReorderPages rewrites page_no so the given ids define the new order,
// 1-based and dense. Ids that do not parse or do not belong to the book
// are silently skipped; pages of the book absent from the list keep their
// relative order after the listed ones.
func (s *Store) ReorderPages(bookID int, pageIDs []string) error {
	pages, err := s.ListPages(&model.FindBookPage{BookID: &bookID})
	if err != nil {
		return err
	}

	owned := make(map[int]*model.BookPage, len(pages))
	for _, page := range pages {
		owned[page.ID] = page
	}

	ordered := make([]*model.BookPage, 0, len(pages))
	seen := make(map[int]bool, len(pages))
	for _, raw := range pageIDs {
		id, err := strconv.Atoi(raw)
		if err != nil {
			log.Debug("Skipping unparsable page id", zap.String("id", raw))
			continue
		}
		page, ok := owned[id]
		if !ok || seen[id] {
			log.Debug("Skipping foreign page id", zap.Int("id", id))
			continue
		}
		seen[id] = true
		ordered = append(ordered, page)
	}
	// Pages not named in the request are appended in their current order.
	for _, page := range pages {
		if !seen[page.ID] {
			ordered = append(ordered, page)
		}
	}

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := `UPDATE book_page SET page_no = ?, last_modified = ? WHERE id = ?`
	now := time.Now().Format(time.RFC3339)
	for i, page := range ordered {
		if _, err := tx.Exec(stmt, i+1, now, page.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}
