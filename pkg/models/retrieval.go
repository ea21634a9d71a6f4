package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RetrievalKind discriminates the two search result variants.
type RetrievalKind string

const (
	// RetrievalChunk is a slice of a private document.
	RetrievalChunk RetrievalKind = "chunk"
	// RetrievalWeb is a public web search hit.
	RetrievalWeb RetrievalKind = "web"
)

// Retrieval is a single search result before citation numbering.
//
// Chunk retrievals carry resource identity, folder, and character offsets;
// web retrievals carry a URL and publish date. Both carry a recall score
// from the retriever and a rerank score assigned later.
type Retrieval struct {
	Kind   RetrievalKind `json:"kind"`
	Source string        `json:"source"`

	// Chunk fields.
	ResourceID string     `json:"resource_id,omitempty"`
	Folder     string     `json:"folder,omitempty"`
	StartIndex int        `json:"start_index,omitempty"`
	EndIndex   int        `json:"end_index,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`

	// Web fields.
	URL         string `json:"url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`

	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Scores  Scores `json:"scores"`
}

// Scores is the recall/rerank score pair every retrieval carries.
type Scores struct {
	Recall float64 `json:"recall"`
	Rerank float64 `json:"rerank"`
}

// Identity returns the deduplication key of a retrieval: chunk retrievals
// are identified by resource and offsets, web retrievals by URL.
func (r *Retrieval) Identity() string {
	if r.Kind == RetrievalWeb {
		return r.URL
	}
	return fmt.Sprintf("%s:%d:%d", r.ResourceID, r.StartIndex, r.EndIndex)
}

// Link returns the user-facing reference of a retrieval. For chunks this is
// the owning resource id; for web results the URL. Citation rehydration
// keys off this value, so it must be stable across turns.
func (r *Retrieval) Link() string {
	if r.Kind == RetrievalWeb {
		return r.URL
	}
	return r.ResourceID
}

// Citation converts a retrieval into its user-visible record under the
// given numeric id.
func (r *Retrieval) Citation(id int) Citation {
	c := Citation{
		ID:      id,
		Title:   r.Title,
		Snippet: r.Snippet,
		Link:    r.Link(),
		Source:  r.Source,
	}
	switch {
	case r.UpdatedAt != nil:
		c.UpdatedAt = r.UpdatedAt.UTC().Format(time.RFC3339)
	case r.PublishedAt != "":
		c.UpdatedAt = r.PublishedAt
	}
	return c
}

// Citation is a numbered, user-visible reference derived from a retrieval.
// Numeric ids are assigned once per conversation and never reused.
type Citation struct {
	ID        int    `json:"id"`
	Title     string `json:"title,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
	Link      string `json:"link"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Source    string `json:"source,omitempty"`
}

// SortRetrievals orders a result list with the key
// (kind, resource id, start index, descending rerank) so chunks from the
// same resource cluster in document order and web results rank by
// relevance. The sort is stable and idempotent.
func SortRetrievals(rs []Retrieval) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := &rs[i], &rs[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		if a.StartIndex != b.StartIndex {
			return a.StartIndex < b.StartIndex
		}
		return a.Scores.Rerank > b.Scores.Rerank
	})
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// CiteXML renders one retrieval as a <cite> element under the given id.
func (r *Retrieval) CiteXML(id int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<cite id=%q source=%q`, fmt.Sprint(id), xmlEscaper.Replace(r.Source))
	if r.Title != "" {
		fmt.Fprintf(&b, ` title=%q`, xmlEscaper.Replace(r.Title))
	}
	if link := r.Link(); link != "" {
		fmt.Fprintf(&b, ` link=%q`, xmlEscaper.Replace(link))
	}
	if c := r.Citation(id); c.UpdatedAt != "" {
		fmt.Fprintf(&b, ` updated_at=%q`, xmlEscaper.Replace(c.UpdatedAt))
	}
	b.WriteString(">")
	b.WriteString(xmlEscaper.Replace(r.Snippet))
	b.WriteString("</cite>")
	return b.String()
}

// RenderRetrievals renders an ordered result list as the single
// <retrievals> block fed back to the model. ids must parallel rs.
func RenderRetrievals(rs []Retrieval, ids []int) string {
	var b strings.Builder
	b.WriteString("<retrievals>\n")
	for i := range rs {
		b.WriteString(rs[i].CiteXML(ids[i]))
		b.WriteString("\n")
	}
	b.WriteString("</retrievals>")
	return b.String()
}
