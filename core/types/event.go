package types

// Event is the serialized form of a settlement event: a type tag plus a
// flat set of string attributes, stable enough for log sinks and RPC
// subscribers alike.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
