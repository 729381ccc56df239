package social

import (
	"strings"
	"unicode/utf8"

	"github.com/zcomx/zco-mx/names"
)

const (
	// tweetMaxLen is the classic status budget.
	tweetMaxLen = 140
	// mediaURLLen is what twitter counts for an attached media URL
	// (a t.co placeholder plus its separating space).
	mediaURLLen = 23 + 1
)

// ComposeReleaseTweet renders "{name} by {creator} | {url} | {tags}"
// within the 140-character budget, accounting for an attached media URL.
// When over budget it degrades in order: drop the creator hashtag, drop
// #comics, use the display name instead of the twitter handle.
func ComposeReleaseTweet(title, creatorName, handle, url string) string {
	creatorTag := "#" + names.ForURL(creatorName)
	creator := creatorName
	if handle != "" {
		creator = handle
	}

	candidates := []string{
		compose(title, creator, url, []string{"#comics", creatorTag}),
		compose(title, creator, url, []string{"#comics"}),
		compose(title, creator, url, nil),
		compose(title, creatorName, url, nil),
	}
	for _, status := range candidates {
		if utf8.RuneCountInString(status)+mediaURLLen <= tweetMaxLen {
			return status
		}
	}
	// Nothing fits; the last candidate is the shortest we can offer.
	return candidates[len(candidates)-1]
}

// ComposeOngoingTweet lists the contributing creators; four or more are
// cut to the first two plus "and others".
func ComposeOngoingTweet(creators []string, url string) string {
	var listed string
	if len(creators) >= 4 {
		listed = strings.Join(creators[:2], ", ") + " and others"
	} else {
		listed = strings.Join(creators, ", ")
	}
	return compose("New pages", listed, url, []string{"#comics"})
}

func compose(name, creator, url string, tags []string) string {
	parts := []string{name + " by " + creator, url}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, " | ")
}
