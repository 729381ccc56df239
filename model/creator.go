package model

import "strconv"

type Creator struct {
	ID     int    `json:"id"`
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	NameForURL    string `json:"name_for_url"`
	NameForSearch string `json:"name_for_search"`
	Twitter       string `json:"twitter"`
	Tumblr        string `json:"tumblr"`
	Facebook      string `json:"facebook"`
	Paypal        string `json:"paypal_email"`
	ContributionsRemaining float64 `json:"contributions_remaining"`
	TumblrPostID           string  `json:"tumblr_post_id"`
	TwitterPostID          string  `json:"twitter_post_id"`
	FacebookPostID         string  `json:"facebook_post_id"`
	LastModified           string  `json:"last_modified"`
}

// ShortURL is the creator's canonical short URL, e.g. 42.zco.mx.
func (c *Creator) ShortURL() string {
	if c.ID == 0 {
		return ""
	}
	return strconv.Itoa(c.ID) + ".zco.mx"
}

type FindCreator struct {
	ID         *int    `json:"id"`
	UserID     *int    `json:"user_id"`
	Name       *string `json:"name"`
	NameForURL *string `json:"name_for_url"`
	OrderBy    *string `json:"order_by"`
	Random     bool    `json:"random"`
	Limit      *int    `json:"limit"`
}
