package types

// Event is a structured record of a completed state change. Attributes are
// string encoded so events can be serialized and matched by downstream
// consumers without schema knowledge.
type Event struct {
	Type       string
	Attributes map[string]string
}
