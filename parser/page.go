package parser

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aluiziolira/go-topical-authority/models"
)

// ErrThinContent marks a page whose combined text is below the content threshold.
var ErrThinContent = errors.New("parser: thin content")

// NewPageRecord builds a PageRecord from an extracted document. The body is
// capped at contentCap runes and the record is rejected with ErrThinContent
// unless the combined text is longer than minContent runes.
func NewPageRecord(pageURL string, doc *Document, contentCap, minContent int) (*models.PageRecord, error) {
	if doc == nil {
		return nil, ErrThinContent
	}

	body := Truncate(doc.BodyText, contentCap)
	fullText := doc.Title + ". " + doc.MetaDescription + ". " + body
	if utf8.RuneCountInString(strings.TrimSpace(fullText)) <= minContent {
		return nil, ErrThinContent
	}

	return &models.PageRecord{
		URL:             pageURL,
		Title:           doc.Title,
		MetaDescription: doc.MetaDescription,
		BodyText:        body,
		FullText:        fullText,
		WordCount:       len(strings.Fields(fullText)),
		FetchedAt:       time.Now(),
	}, nil
}
