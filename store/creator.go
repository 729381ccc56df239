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

const creatorColumns = `
            id,
            user_id,
            name,
            name_for_url,
            name_for_search,
            twitter,
            tumblr,
            facebook,
            paypal_email,
            contributions_remaining,
            tumblr_post_id,
            twitter_post_id,
            facebook_post_id,
            last_modified`

func scanCreator(rows interface{ Scan(...any) error }) (*model.Creator, error) {
	var creator model.Creator
	if err := rows.Scan(
		&creator.ID,
		&creator.UserID,
		&creator.Name,
		&creator.NameForURL,
		&creator.NameForSearch,
		&creator.Twitter,
		&creator.Tumblr,
		&creator.Facebook,
		&creator.Paypal,
		&creator.ContributionsRemaining,
		&creator.TumblrPostID,
		&creator.TwitterPostID,
		&creator.FacebookPostID,
		&creator.LastModified,
	); err != nil {
		return nil, err
	}
	return &creator, nil
}

func (s *Store) AddCreator(creator *model.Creator) (*model.Creator, error) {
	creator.NameForURL = names.ForURL(creator.Name)
	creator.NameForSearch = names.ForSearch(creator.Name)
	creator.LastModified = time.Now().Format(time.RFC3339)

	stmt := `
        INSERT INTO creator (
            user_id, name, name_for_url, name_for_search, twitter, tumblr,
            facebook, paypal_email, last_modified
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING` + creatorColumns
	args := []any{
		creator.UserID, creator.Name, creator.NameForURL, creator.NameForSearch,
		creator.Twitter, creator.Tumblr, creator.Facebook, creator.Paypal,
		creator.LastModified,
	}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	row := s.db.QueryRow(stmt, args...)
	newCreator, err := scanCreator(row)
	if err != nil {
		log.Error("Failed to add creator", zap.Error(err))
		return nil, err
	}
	s.CreatorCache.Store(newCreator.ID, newCreator)
	return newCreator, nil
}

func (s *Store) GetCreator(find *model.FindCreator) (*model.Creator, error) {
	if find.ID != nil {
		if cache, ok := s.CreatorCache.Load(*find.ID); ok {
			return cache.(*model.Creator), nil
		}
	}

	list, err := s.ListCreators(find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}

	creator := list[0]
	s.CreatorCache.Store(creator.ID, creator)
	return creator, nil
}

func (s *Store) ListCreators(find *model.FindCreator) ([]*model.Creator, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.Name; v != nil {
		where, args = append(where, "name = ?"), append(args, *v)
	}
	if v := find.NameForURL; v != nil {
		where, args = append(where, "name_for_url = ?"), append(args, *v)
	}

	orderBy := []string{"name"}
	if find.OrderBy != nil {
		orderBy = append([]string{*find.OrderBy}, orderBy...)
	}
	if find.Random {
		orderBy = []string{"RANDOM()"}
	}

	query := `SELECT` + creatorColumns + `
        FROM creator
    WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + strings.Join(orderBy, ", ")
	if v := find.Limit; v != nil {
		query += fmt.Sprintf(" LIMIT %d", *v)
	}

	log.Debug("SQL query and args:", zap.String("query", query), zap.Any("args", args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Error("Failed to query creators", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.Creator, 0)
	for rows.Next() {
		creator, err := scanCreator(rows)
		if err != nil {
			log.Error("Failed to scan creator", zap.Error(err))
			return nil, err
		}
		list = append(list, creator)
	}
	return list, rows.Err()
}

// MustGetCreator is GetCreator returning ErrNotFound when no row matches.
func (s *Store) MustGetCreator(find *model.FindCreator) (*model.Creator, error) {
	creator, err := s.GetCreator(find)
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, errors.Wrap(ErrNotFound, "creator")
	}
	return creator, nil
}

func (s *Store) CheckCreator(creatorID int) bool {
	creator, err := s.GetCreator(&model.FindCreator{ID: &creatorID})
	return err == nil && creator != nil
}

// RandomCreator and RandomBook feed the 404 suggestions payload.
func (s *Store) RandomCreator() (*model.Creator, error) {
	limit := 1
	return s.GetCreator(&model.FindCreator{Random: true, Limit: &limit})
}

func (s *Store) RandomBook() (*model.Book, error) {
	limit := 1
	return s.GetBook(&model.FindBook{Random: true, Released: true, Limit: &limit})
}

// SetCreatorPostID writes the creator-level post id used by ongoing
// update posts.
func (s *Store) SetCreatorPostID(creatorID int, service, postID string) error {
	var column string
	switch service {
	case model.ServiceTumblr:
		column = "tumblr_post_id"
	case model.ServiceTwitter:
		column = "twitter_post_id"
	case model.ServiceFacebook:
		column = "facebook_post_id"
	default:
		return fmt.Errorf("unknown service: %s", service)
	}

	stmt := fmt.Sprintf(`UPDATE creator SET %s = ?, last_modified = ? WHERE id = ?`, column)
	args := []any{postID, time.Now().Format(time.RFC3339), creatorID}

	log.Debug("SQL query and args:", zap.String("query", stmt), zap.Any("args", args))

	s.dbLock.Lock()
	defer s.dbLock.Unlock()
	if _, err := s.db.Exec(stmt, args...); err != nil {
		return err
	}
	s.CreatorCache.Delete(creatorID)
	return nil
}
