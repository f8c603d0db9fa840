package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Status represents the lifecycle state of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusEnriching Status = "enriching"
	StatusEnriched  Status = "enriched"
	StatusParked    Status = "parked"
	StatusDiscarded Status = "discarded"
)

// statusRank orders the forward-only lifecycle. Parked and discarded are
// sideways states reachable from anywhere but never left automatically.
var statusRank = map[Status]int{
	StatusNew:       0,
	StatusEnriching: 1,
	StatusEnriched:  2,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusEnriching, StatusEnriched, StatusParked, StatusDiscarded:
		return true
	}
	return false
}

// Source tags where a detail value came from. The overlay merge order is
// registry, then social, then ai, then computed. Later sources win.
type Source string

const (
	SourceRegistry Source = "registry"
	SourceSocial   Source = "social"
	SourceAI       Source = "ai"
	SourceComputed Source = "computed"
)

// Detail is a single enrichment attribute with its provenance.
type Detail struct {
	Value  any    `json:"value"`
	Source Source `json:"source"`
}

// Details is the open-ended attribute bag of a lead. Merges are additive:
// keys are added or overwritten, never deleted.
type Details map[string]Detail

// Merge overlays values from one source onto the bag. Applying the same
// values twice yields the same bag.
func (d Details) Merge(src Source, values map[string]any) {
	for k, v := range values {
		if v == nil {
			continue
		}
		d[k] = Detail{Value: v, Source: src}
	}
}

// Value returns the raw value for a key, or nil when absent.
func (d Details) Value(key string) any {
	det, ok := d[key]
	if !ok {
		return nil
	}
	return det.Value
}

// String returns the value for a key as a string when it is one.
func (d Details) String(key string) string {
	s, _ := d.Value(key).(string)
	return s
}

// Lead is a prospective business or person record.
type Lead struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	Name        string            `json:"name"`
	Website     string            `json:"website,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Category    string            `json:"category,omitempty"`
	Location    string            `json:"location,omitempty"`
	Status      Status            `json:"status"`
	Details     Details           `json:"details"`
	SocialLinks map[string]string `json:"social_links"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewLead creates a lead in the NEW state. When the vendor supplied no id,
// a generated token is used; the id is immutable afterward.
func NewLead(tenantID, vendorID, name string) Lead {
	id := vendorID
	if id == "" {
		id = uuid.New().String()
	}
	return Lead{
		ID:          id,
		TenantID:    tenantID,
		Name:        name,
		Status:      StatusNew,
		Details:     Details{},
		SocialLinks: map[string]string{},
		UpdatedAt:   time.Now().UTC(),
	}
}

// Transition moves the lead to a new status. The lifecycle only advances
// toward ENRICHED or moves sideways to PARKED/DISCARDED; reverts are
// rejected.
func (l *Lead) Transition(to Status) error {
	if !to.Valid() {
		return eris.Errorf("lead: unknown status %q", to)
	}
	if to == l.Status {
		return nil
	}
	if to == StatusParked || to == StatusDiscarded {
		l.Status = to
		l.UpdatedAt = time.Now().UTC()
		return nil
	}
	from, fromForward := statusRank[l.Status]
	dest, destForward := statusRank[to]
	if !destForward {
		return eris.Errorf("lead: invalid transition %s -> %s", l.Status, to)
	}
	// Leaving a sideways state re-enters the forward track at any point.
	if fromForward && dest < from {
		return eris.Errorf("lead: status cannot revert from %s to %s", l.Status, to)
	}
	l.Status = to
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// SetSocialLink records a named external link, skipping empty values so a
// missing link never shadows a discovered one.
func (l *Lead) SetSocialLink(name, url string) {
	if url == "" {
		return
	}
	if l.SocialLinks == nil {
		l.SocialLinks = map[string]string{}
	}
	l.SocialLinks[name] = url
}
