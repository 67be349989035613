package scraper

import (
	"time"

	"github.com/pbarros/go-watchex-export/models"
)

// Reddit listing JSON shape for /r/<sub>/new.json. Only the fields the
// exporter reads are declared.
type listingResponse struct {
	Data struct {
		After    string         `json:"after"`
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Kind string    `json:"kind"`
	Data childData `json:"data"`
}

type childData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	SelfText   string  `json:"selftext"`
	CreatedUTC float64 `json:"created_utc"`
}

const deletedAuthor = "[deleted]"

func toRawPost(d childData, fetchedAt time.Time) *models.RawPost {
	author := d.Author
	if author == deletedAuthor {
		author = ""
	}
	return &models.RawPost{
		ID:         d.ID,
		Title:      d.Title,
		Body:       d.SelfText,
		Author:     author,
		CreatedUTC: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		FetchedAt:  fetchedAt,
	}
}
