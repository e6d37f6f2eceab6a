package arxiv

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

// atomFeed is the subset of the arXiv API Atom response the harvester
// consumes. totalResults comes from the opensearch extension.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Authors         []atomAuthor   `xml:"author"`
	Links           []atomLink     `xml:"link"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

func parseFeed(body []byte) (*atomFeed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}
	return &feed, nil
}

// toPaper normalizes one feed entry into the harvest record model.
func (e atomEntry) toPaper() (harvest.Paper, error) {
	published, err := time.Parse(time.RFC3339, e.Published)
	if err != nil {
		return harvest.Paper{}, fmt.Errorf("parse published time: %w", err)
	}
	updated, err := time.Parse(time.RFC3339, e.Updated)
	if err != nil {
		return harvest.Paper{}, fmt.Errorf("parse updated time: %w", err)
	}

	id := e.ID
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	if id == "" {
		return harvest.Paper{}, fmt.Errorf("entry has no identifier")
	}

	authors := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, a.Name)
	}
	categories := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		categories = append(categories, c.Term)
	}

	var pdfURL string
	for _, l := range e.Links {
		if l.Title == "pdf" {
			pdfURL = l.Href
			break
		}
	}

	return harvest.Paper{
		Title:           strings.TrimSpace(e.Title),
		Abstract:        strings.TrimSpace(e.Summary),
		Authors:         authors,
		Published:       published.UTC(),
		Updated:         updated.UTC(),
		ArxivID:         id,
		URL:             pdfURL,
		Categories:      categories,
		PrimaryCategory: e.PrimaryCategory.Term,
	}, nil
}
