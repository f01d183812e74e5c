package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Message struct {
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
}

// Adapter delivers one message to a webhook endpoint. Secret is platform
// specific and may be empty.
type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}

const (
	ColorOK       = 0x57F287
	ColorInfo     = 0x5865F2
	ColorWarn     = 0xFEE75C
	ColorCritical = 0xED4245
)
