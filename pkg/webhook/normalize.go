package webhook

import (
	"net/url"
	"strings"

	"github.com/platinummonkey/idbridge/pkg/events"
	"github.com/platinummonkey/idbridge/pkg/observability"
)

// RawRequest is the request the provider recorded in its audit log
type RawRequest struct {
	Method string                 `json:"method"`
	Path   string                 `json:"path"`
	Body   map[string]interface{} `json:"body"`
}

// RawEvent is one entry of a provider webhook delivery
type RawEvent struct {
	Data struct {
		Description string `json:"description"`
		Details     struct {
			Request RawRequest `json:"request"`
		} `json:"details"`
	} `json:"data"`
}

// extractor pulls the affected subject ids out of one request shape
type extractor func(req RawRequest) []string

type eventSpec struct {
	kind    events.RoleEventKind
	extract extractor
}

// descriptionTable pairs each known audit-log description with its
// canonical kind and the extractor for that payload shape. User-centric
// events list subjects in the body, role-centric events name the subject
// in the URL path.
var descriptionTable = map[string]eventSpec{
	"Assign roles to a user":    {events.UserAddedToRole, bodyUserList},
	"Removes roles from a user": {events.UserRemovedFromRole, bodyUserList},
	"Assign users to a role":    {events.RoleGrantedToUser, pathSubject},
	"Remove users from a role":  {events.RoleRevokedFromUser, pathSubject},
}

// bodyUserList reads the "users" list from the request body
func bodyUserList(req RawRequest) []string {
	raw, ok := req.Body["users"].([]interface{})
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// pathSubject reads the subject id from the fifth path segment, as in
// /api/v2/roles/{id}/users, URL-decoded.
func pathSubject(req RawRequest) []string {
	segments := strings.Split(req.Path, "/")
	if len(segments) <= 4 {
		return nil
	}
	id, err := url.QueryUnescape(segments[4])
	if err != nil || id == "" {
		return nil
	}
	return []string{id}
}

// Normalizer turns raw deliveries into canonical role events
type Normalizer struct {
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewNormalizer creates a normalizer. metrics may be nil in tests.
func NewNormalizer(metrics *observability.Metrics, logger *observability.Logger) *Normalizer {
	return &Normalizer{metrics: metrics, logger: logger}
}

// Normalize maps a delivery batch to canonical events in order.
// Unrecognized descriptions and events with no extractable subjects are
// dropped per event, never failing the batch.
func (n *Normalizer) Normalize(batch []RawEvent) []events.RoleEvent {
	if n.metrics != nil {
		n.metrics.WebhookBatchesTotal.Inc()
	}

	var out []events.RoleEvent
	for _, raw := range batch {
		entry, ok := descriptionTable[raw.Data.Description]
		if !ok {
			n.drop(raw.Data.Description)
			continue
		}

		ids := entry.extract(raw.Data.Details.Request)
		if len(ids) == 0 {
			n.drop(raw.Data.Description)
			continue
		}

		if n.metrics != nil {
			n.metrics.WebhookEventsTotal.WithLabelValues(string(entry.kind)).Inc()
		}
		out = append(out, events.RoleEvent{Kind: entry.kind, SubjectIDs: ids})
	}
	return out
}

func (n *Normalizer) drop(description string) {
	if n.metrics != nil {
		n.metrics.WebhookDroppedTotal.Inc()
	}
	n.logger.WithField("description", description).Debug("dropped unrecognized webhook event")
}
