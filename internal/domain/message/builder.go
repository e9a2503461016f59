package message

// Builder assembles a BotMessage. Elements are only ever appended.
type Builder struct {
	elements []Element
	style    Style
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Text appends a plain paragraph.
func (b *Builder) Text(content string) *Builder {
	return b.StyledText(content, TextPlain)
}

// StyledText appends a paragraph with inline formatting.
func (b *Builder) StyledText(content string, style TextStyle) *Builder {
	return b.append(Text{Content: content, Style: style})
}

// Heading appends a title. Levels below 1 are treated as 1.
func (b *Builder) Heading(content string, level int) *Builder {
	if level < 1 {
		level = 1
	}
	return b.append(Heading{Content: content, Level: level})
}

// Image appends a full-width image.
func (b *Builder) Image(url, altText string) *Builder {
	return b.append(Image{URL: url, AltText: altText, Placement: PlacementBlock})
}

// Thumbnail appends a small image rendered beside its text.
func (b *Builder) Thumbnail(url, altText string) *Builder {
	return b.append(Image{URL: url, AltText: altText, Placement: PlacementThumbnail})
}

// Divider appends a horizontal rule.
func (b *Builder) Divider() *Builder {
	return b.append(Divider{})
}

// KeyValueList appends labeled values. The items are copied.
func (b *Builder) KeyValueList(items ...KeyValue) *Builder {
	copied := make([]KeyValue, len(items))
	copy(copied, items)
	return b.append(KeyValueList{Items: copied})
}

// Context appends a secondary note.
func (b *Builder) Context(content string) *Builder {
	return b.append(Context{Content: content})
}

// WithStyle sets the overall message style.
func (b *Builder) WithStyle(style Style) *Builder {
	b.style = style
	return b
}

// Build returns the message. The Builder may keep being used afterwards
// without affecting messages already built.
func (b *Builder) Build() BotMessage {
	elements := make([]Element, len(b.elements))
	copy(elements, b.elements)
	return BotMessage{elements: elements, style: b.style}
}

func (b *Builder) append(e Element) *Builder {
	b.elements = append(b.elements, e)
	return b
}
