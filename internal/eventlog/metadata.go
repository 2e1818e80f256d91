package eventlog

import "context"

// Metadata travels with every event and every queued command.
type Metadata struct {
	CorrelationID string `json:"correlationId,omitempty"`
	CausationID   string `json:"causationId,omitempty"`
}

// CausedBy derives metadata for something triggered by the event eventID.
// The correlation id is kept, or started at eventID when absent.
func (m Metadata) CausedBy(eventID string) Metadata {
	out := Metadata{CorrelationID: m.CorrelationID, CausationID: eventID}
	if out.CorrelationID == "" {
		out.CorrelationID = eventID
	}
	return out
}

type metadataKey struct{}

func WithMetadata(ctx context.Context, md Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

func MetadataFrom(ctx context.Context) Metadata {
	md, _ := ctx.Value(metadataKey{}).(Metadata)
	return md
}
