package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/model"
	"github.com/zcomx/zco-mx/names"
)

// ErrNotFound marks a failed book/creator/page lookup.
var ErrNotFound = errors.New("resource not found")

const bookColumns = `
            id,
            creator_id,
            name,
            book_type,
            number,
            of_number,
            publication_year,
            status,
            complete_in_progress,
            release_date,
            name_for_file,
            name_for_search,
            name_for_url,
            cbz_path,
            torrent_path,
            magnet,
            licence_code,
            tumblr_post_id,
            twitter_post_id,
            facebook_post_id,
            last_modified`

func scanBook(rows interface{ Scan(...any) error }) (*model.Book, error) {
	var book model.Book
	if err := rows.Scan(
		&book.ID,
		&book.CreatorID,
		&book.Name,
		&book.BookType,
		&book.Number,
		&book.OfNumber,
		&book.Year,
		&book.Status,
		&book.CompleteInProgress,
		&book.ReleaseDate,
		&book.NameForFile,
		&book.NameForSearch,
		&book.NameForURL,
		&book.CBZPath,
		&book.TorrentPath,
		&book.Magnet,
		&book.LicenceCode,
		&book.TumblrPostID,
		&book.TwitterPostID,
		&book.FacebookPostID,
		&book.LastModified,
	); err != nil {
		return nil, err
	}
	return &book, nil
}

// AddBook derives the name forms and inserts the book.
func (s *Store) AddBook(book *model.Book) (*model.Book, error) {
	title := names.NewBookTitle(book.Name, book.BookType, book.Number, book.OfNumber)
	book.NameForFile = names.ForFile(book.Name)
	book.NameForSearch = title.ForSearch()
	book.NameForURL = title.ForURL()
	if book.Status == "" {
		book.Status = model.BookStatusDraft
	}
	book.LastModified = time.Now().Format(time.RFC3339)

	stmt := `
        INSERT INTO book (
            creator_id, name, book_type, number, of_number, publication_year,
            status, name_for_file, name_for_search, name_for_url, licence_code,
            last_modified
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING` + bookColumns

	args := []any{
		book.CreatorID, book.Name, book.BookType, book.Number, book.OfNumber,
		book.Year, book.Status, book.NameForFile, book.NameForSearch,
		book.NameForURL, book.LicenceCode, book.LastModified,
	}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	row := s.db.QueryRow(stmt, args...)
	newBook, err := scanBook(row)
	if err != nil {
		log.Error("Failed to add book", zap.Error(err))
		return nil, err
	}
	s.BookCache.Store(newBook.ID, newBook)
	return newBook, nil
}

func (s *Store) GetBook(find *model.FindBook) (*model.Book, error) {
	if find.ID != nil {
		if cache, ok := s.BookCache.Load(*find.ID); ok {
			return cache.(*model.Book), nil
		}
	}

	list, err := s.ListBooks(find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	book := list[0]
	s.BookCache.Store(book.ID, book)
	return book, nil
}

// MustGetBook is GetBook returning ErrNotFound when no row matches.
func (s *Store) MustGetBook(find *model.FindBook) (*model.Book, error) {
	book, err := s.GetBook(find)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, errors.Wrap(ErrNotFound, "book")
	}
	return book, nil
}

func (s *Store) ListBooks(find *model.FindBook) ([]*model.Book, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = ?"), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "name = ?"), append(args, *v)
	}
	if v := find.NameForURL; v != nil {
		where, args = append(where, "name_for_url = ?"), append(args, *v)
	}
	if v := find.Number; v != nil {
		where, args = append(where, "number = ?"), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = ?"), append(args, *v)
	}
	if find.Released {
		where = append(where, "status = 'active'", "release_date != ''")
	}

	orderBy := []string{"name"}
	if find.OrderBy != nil {
		orderBy = append([]string{*find.OrderBy}, orderBy...)
	}
	if find.Random {
		orderBy = []string{"RANDOM()"}
	}

	query := `SELECT` + bookColumns + `
        FROM book
    WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + strings.Join(orderBy, ", ")
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}

	log.Debug("SQL query and args:", zap.String("query", query), zap.Any("args", args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Error("Failed to query books", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			log.Error("Failed to scan book", zap.Error(err))
			return nil, err
		}
		list = append(list, book)
	}
	return list, rows.Err()
}

func (s *Store) CheckBook(bookID int) bool {
	book, err := s.GetBook(&model.FindBook{ID: &bookID})
	return err == nil && book != nil
}

func (s *Store) RemoveBook(bookID int) error {
	stmt := `DELETE FROM book WHERE id = ?`
	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Int("id", bookID))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if _, err := s.db.Exec(stmt, bookID); err != nil {
		return err
	}
	s.BookCache.Delete(bookID)
	return nil
}

// SetCompleteInProgress flips the advisory release lock. Returns false
// when the flag already held the requested value, so concurrent release
// attempts observe the flag and no-op.
func (s *Store) SetCompleteInProgress(bookID int, want bool) (bool, error) {
	stmt := `
        UPDATE book
        SET complete_in_progress = ?, last_modified = ?
        WHERE id = ? AND complete_in_progress = ?`
	args := []any{want, time.Now().Format(time.RFC3339), bookID, !want}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	res, err := s.db.Exec(stmt, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	s.BookCache.Delete(bookID)
	return n > 0, nil
}

// SetReleased records the packager outcome: archive, torrent, magnet and
// the release date, and activates the book.
func (s *Store) SetReleased(bookID int, cbzPath, torrentPath, magnet string) error {
	stmt := `
        UPDATE book
        SET status = ?, release_date = ?, cbz_path = ?, torrent_path = ?,
            magnet = ?, complete_in_progress = 0, last_modified = ?
        WHERE id = ?`
	now := time.Now().Format(time.RFC3339)
	args := []any{model.BookStatusActive, now, cbzPath, torrentPath, magnet, now, bookID}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return err
	}
	s.BookCache.Delete(bookID)
	return nil
}

// ClearReleased undoes a release: release date, artifact paths and any
// in-progress post sentinels are reset. Confirmed post ids survive.
func (s *Store) ClearReleased(bookID int) error {
	stmt := `
        UPDATE book
        SET release_date = '', cbz_path = '', torrent_path = '', magnet = '',
            complete_in_progress = 0, status = ?,
            tumblr_post_id = CASE tumblr_post_id WHEN ? THEN '' ELSE tumblr_post_id END,
            twitter_post_id = CASE twitter_post_id WHEN ? THEN '' ELSE twitter_post_id END,
            facebook_post_id = CASE facebook_post_id WHEN ? THEN '' ELSE facebook_post_id END,
            last_modified = ?
        WHERE id = ?`
	args := []any{
		model.BookStatusDraft,
		model.PostInProgress, model.PostInProgress, model.PostInProgress,
		time.Now().Format(time.RFC3339), bookID,
	}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return err
	}
	s.BookCache.Delete(bookID)
	return nil
}

// SetBookPostID writes a per-service post id column: the in-progress
// sentinel, a confirmed id, or empty to reset.
func (s *Store) SetBookPostID(bookID int, service, postID string) error {
	column, err := postColumn(service)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`UPDATE book SET %s = ?, last_modified = ? WHERE id = ?`, column)
	args := []any{postID, time.Now().Format(time.RFC3339), bookID}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return err
	}
	s.BookCache.Delete(bookID)
	return nil
}

func postColumn(service string) (string, error) {
	switch service {
	case model.ServiceTumblr:
		return "tumblr_post_id", nil
	case model.ServiceTwitter:
		return "twitter_post_id", nil
	case model.ServiceFacebook:
		return "facebook_post_id", nil
	}
	return "", errors.Errorf("unknown service: %s", service)
}
