// Package message defines the platform-agnostic reply model.
//
// A BotMessage is an ordered list of elements plus an optional style.
// Transports render it with their own Renderer; element order is preserved
// end to end.
package message

// Style is the overall tone of a message.
type Style string

const (
	StyleNone    Style = ""
	StyleInfo    Style = "info"
	StyleWarning Style = "warning"
	StyleError   Style = "error"
	StyleSuccess Style = "success"
	StyleNeutral Style = "neutral"
)

// TextStyle controls inline formatting of a Text element.
type TextStyle string

const (
	TextPlain  TextStyle = ""
	TextBold   TextStyle = "bold"
	TextItalic TextStyle = "italic"
	TextCode   TextStyle = "code"
	TextQuote  TextStyle = "quote"
)

// ImagePlacement controls whether an image is rendered full width or as a thumbnail.
type ImagePlacement string

const (
	PlacementBlock     ImagePlacement = "block"
	PlacementThumbnail ImagePlacement = "thumbnail"
)

// Element is one renderable unit of a BotMessage.
// The set of elements is closed; renderers handle every variant.
type Element interface {
	element()
}

// Text is a paragraph of text.
type Text struct {
	Content string
	Style   TextStyle
}

// Heading is a title line. Level 1 is the most prominent.
type Heading struct {
	Content string
	Level   int
}

// Image references a remote image.
type Image struct {
	URL       string
	AltText   string
	Placement ImagePlacement
}

// Divider is a horizontal rule.
type Divider struct{}

// KeyValue is a single labeled value.
type KeyValue struct {
	Key   string
	Value string
}

// KeyValueList is an ordered list of labeled values.
type KeyValueList struct {
	Items []KeyValue
}

// Context is a small secondary note.
type Context struct {
	Content string
}

func (Text) element()         {}
func (Heading) element()      {}
func (Image) element()        {}
func (Divider) element()      {}
func (KeyValueList) element() {}
func (Context) element()      {}

// BotMessage is an immutable, ordered set of elements.
// Build one with a Builder.
type BotMessage struct {
	elements []Element
	style    Style
}

// Elements returns a copy of the elements in insertion order.
func (m BotMessage) Elements() []Element {
	out := make([]Element, len(m.elements))
	copy(out, m.elements)
	return out
}

// Style returns the message style, StyleNone if unset.
func (m BotMessage) Style() Style {
	return m.style
}

// IsEmpty returns true if the message has no elements.
func (m BotMessage) IsEmpty() bool {
	return len(m.elements) == 0
}

// Renderer converts a BotMessage into a transport-specific representation.
// Implementations must be total, order-preserving and idempotent.
type Renderer[T any] interface {
	Render(msg BotMessage) T
}

// TextMessage is shorthand for a message holding a single plain paragraph.
func TextMessage(content string) BotMessage {
	return New().Text(content).Build()
}
