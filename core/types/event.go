package types

// Event is the wire form of a structured state change surfaced to observers.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
