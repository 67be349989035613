// Package parser extracts structured listing fields from free-text
// forum posts using heuristic pattern matching.
package parser

import "regexp"

// Price formats: "$1234", "$1234.56", "1234 USD", "1234,56 EUR", "€1234".
// Amounts are 2-6 digits with an optional separator and exactly two
// fractional digits. Group order decides the currency: 1-2 are USD,
// 3-4 are EUR. First match in reading order wins.
var priceRe = regexp.MustCompile(
	`\$\s?(\d{2,6}(?:[.,]\d{2})?)` +
		`|(\d{2,6}(?:[.,]\d{2})?)\s?(?:usd|USD)` +
		`|(\d{2,6}(?:[.,]\d{2})?)\s?(?:eur|EUR|€)` +
		`|€\s?(\d{2,6}(?:[.,]\d{2})?)`)

// Bracket tags carry status and location metadata in titles, e.g.
// "[WTS] [USA-CA] Omega Seamaster".
var (
	bracketRe  = regexp.MustCompile(`\[([^\]]+)\]`)
	tagStripRe = regexp.MustCompile(`\[[^\]]+\] ?`)
)

// A bracket tag whose content contains one of these tokens is taken as
// the seller location verbatim.
var locationCountryTokens = []string{"USA", "US", "CAN", "EU", "UK", "AUS", "NZ"}

// Bare two-letter state tags like [CA] also count as a location.
var regionCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// shipDestHints are evaluated independently against the combined
// title+body text; declaration order fixes the output order.
var shipDestHints = []struct {
	Tag string
	re  *regexp.Regexp
}{
	{"CONUS", regexp.MustCompile(`(?i)\bCONUS\b`)},
	{"USA", regexp.MustCompile(`(?i)\bUSA\b|\bUS only\b`)},
	{"CANADA", regexp.MustCompile(`(?i)\bCanada\b|\bCAN\b`)},
	{"EU", regexp.MustCompile(`(?i)\bEU\b|\bEurope\b`)},
	{"UK", regexp.MustCompile(`(?i)\bUK\b|\bUnited Kingdom\b`)},
	{"WORLDWIDE", regexp.MustCompile(`(?i)\bworldwide\b|\bWW shipping\b|\binternational\b`)},
}

// Label-responsibility phrase sets. The yes set is always evaluated
// first; when a post somehow contains both, yes wins.
var labelYesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bbuyer (?:provides|supplies|sends) (?:a )?label\b`),
	regexp.MustCompile(`(?i)\bbuyer['’]s label\b`),
}

var labelNoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bseller (?:provides|supplies) (?:a )?label\b`),
	regexp.MustCompile(`(?i)\bshipping included\b`),
	regexp.MustCompile(`(?i)\bI will ship\b`),
}
