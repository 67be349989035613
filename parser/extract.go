package parser

import (
	"strings"

	"github.com/pbarros/go-watchex-export/models"
)

// Extractors are pure functions over raw text. They never fail: when no
// pattern matches, they return nil (or LabelUnknown) and nothing else.

const maxModelLen = 200

// ExtractPrice returns the first price found in text, normalized to
// "<CUR> <amount>" with commas stripped, or nil when nothing matches.
func ExtractPrice(text string) *string {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	currency := "USD"
	amount := m[1]
	switch {
	case amount != "":
	case m[2] != "":
		amount = m[2]
	case m[3] != "":
		currency, amount = "EUR", m[3]
	default:
		currency, amount = "EUR", m[4]
	}
	amount = strings.ReplaceAll(amount, ",", "")
	price := currency + " " + amount
	return &price
}

// ExtractLocation scans bracket tags in the title, then falls back to
// the body. A tag qualifies when its upper-cased content contains a
// country token, or when it is exactly a two-letter region code.
func ExtractLocation(title, body string) *string {
	if loc := locationFromBrackets(title); loc != nil {
		return loc
	}
	return locationFromBrackets(body)
}

func locationFromBrackets(text string) *string {
	for _, m := range bracketRe.FindAllStringSubmatch(text, -1) {
		tag := strings.TrimSpace(m[1])
		upper := strings.ToUpper(tag)
		for _, token := range locationCountryTokens {
			if strings.Contains(upper, token) {
				return &tag
			}
		}
		if regionCodeRe.MatchString(tag) {
			return &tag
		}
	}
	return nil
}

// ExtractShipDestinations evaluates every shipping hint against text
// and joins the matched tags with ", " in hint declaration order.
func ExtractShipDestinations(text string) *string {
	var found []string
	for _, hint := range shipDestHints {
		if !hint.re.MatchString(text) {
			continue
		}
		seen := false
		for _, tag := range found {
			if tag == hint.Tag {
				seen = true
				break
			}
		}
		if !seen {
			found = append(found, hint.Tag)
		}
	}
	if len(found) == 0 {
		return nil
	}
	joined := strings.Join(found, ", ")
	return &joined
}

// InferBuyerLabel applies the label-responsibility phrase sets. The yes
// set takes precedence; LabelUnknown is a normal terminal value.
func InferBuyerLabel(text string) models.LabelPolicy {
	for _, re := range labelYesPatterns {
		if re.MatchString(text) {
			return models.LabelYes
		}
	}
	for _, re := range labelNoPatterns {
		if re.MatchString(text) {
			return models.LabelNo
		}
	}
	return models.LabelUnknown
}

// ExtractBrandModel strips bracket tags from the title and splits the
// remainder positionally: first token is the brand, the rest is the
// model. The split has no notion of real brand names and mis-handles
// titles that do not follow "Brand Model ..." order.
func ExtractBrandModel(title string) (brand, model *string) {
	cleaned := strings.TrimSpace(tagStripRe.ReplaceAllString(title, ""))
	parts := strings.Fields(cleaned)
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return &parts[0], nil
	}
	rest := strings.Join(parts[1:], " ")
	if runes := []rune(rest); len(runes) > maxModelLen {
		rest = string(runes[:maxModelLen])
	}
	return &parts[0], &rest
}
