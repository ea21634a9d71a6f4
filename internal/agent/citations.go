package agent

import (
	"errors"
	"fmt"

	"github.com/import-ai/omnibox-wizard-sub000/pkg/models"
)

// ErrUnknownCiteID is returned when resolving a citation id nobody
// registered.
var ErrUnknownCiteID = errors.New("unknown cite id")

// CitationRegistry assigns stable numeric citation ids to resources within
// one conversation. Ids are dense, start at 1, and are never reused; a
// resource registered twice keeps its first id.
//
// The registry is owned by one agent loop instance and handed to the tool
// executor for the duration of a turn. It is rehydrated from historical
// messages before the first turn so the model's references to prior
// documents keep resolving across turns.
type CitationRegistry struct {
	byResource map[string]int
	byID       map[int]string
	next       int
}

// NewCitationRegistry returns an empty registry whose first allocation is 1.
func NewCitationRegistry() *CitationRegistry {
	return &CitationRegistry{
		byResource: make(map[string]int),
		byID:       make(map[int]string),
		next:       1,
	}
}

// Register returns the citation id for a resource, allocating the next
// counter value on first sight.
func (r *CitationRegistry) Register(resourceID string) int {
	if id, ok := r.byResource[resourceID]; ok {
		return id
	}
	id := r.next
	r.next++
	r.byResource[resourceID] = id
	r.byID[id] = resourceID
	return id
}

// RegisterWithID records a historical assignment while rebuilding state
// from prior-turn messages, advancing the counter past citeID if needed.
func (r *CitationRegistry) RegisterWithID(resourceID string, citeID int) {
	r.byResource[resourceID] = citeID
	r.byID[citeID] = resourceID
	if citeID >= r.next {
		r.next = citeID + 1
	}
}

// Resolve maps a citation id back to its resource.
func (r *CitationRegistry) Resolve(citeID int) (string, error) {
	resourceID, ok := r.byID[citeID]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownCiteID, citeID)
	}
	return resourceID, nil
}

// Get returns the citation id already assigned to a resource, if any.
func (r *CitationRegistry) Get(resourceID string) (int, bool) {
	id, ok := r.byResource[resourceID]
	return id, ok
}

// Len reports how many resources have citation ids.
func (r *CitationRegistry) Len() int {
	return len(r.byResource)
}

// Rehydrate replays the citations attached to every message of a prior
// transcript, regardless of which tool produced them.
func (r *CitationRegistry) Rehydrate(transcript []models.Message) {
	for _, msg := range transcript {
		if msg.Attrs == nil {
			continue
		}
		for _, c := range msg.Attrs.Citations {
			if c.Link == "" || c.ID <= 0 {
				continue
			}
			r.RegisterWithID(c.Link, c.ID)
		}
	}
}
