package parser

import (
	"time"

	"github.com/pbarros/go-watchex-export/models"
)

// BuildRecord runs every extractor over one post and assembles the
// normalized record. Extractors are independent: a field that fails to
// match stays nil without affecting the others.
func BuildRecord(post *models.RawPost) *models.Record {
	combined := post.Title + "\n" + post.Body

	brand, model := ExtractBrandModel(post.Title)
	record := &models.Record{
		Brand:            brand,
		Model:            model,
		Price:            ExtractPrice(combined),
		BuyerLabel:       InferBuyerLabel(combined),
		SellerLocation:   ExtractLocation(post.Title, post.Body),
		ShipDestinations: ExtractShipDestinations(combined),
		DateListed:       post.CreatedUTC.UTC().Truncate(24 * time.Hour),
		FetchedAt:        post.FetchedAt,
	}

	if post.Author != "" {
		handle := "u/" + post.Author
		record.PosterHandle = &handle
	}

	return record
}

// Unmatched reports whether no extractor produced a value for r. Used
// only for run accounting; empty records are still exported.
func Unmatched(r *models.Record) bool {
	return r.Brand == nil && r.Model == nil && r.Price == nil &&
		r.BuyerLabel == models.LabelUnknown && r.SellerLocation == nil &&
		r.ShipDestinations == nil
}
