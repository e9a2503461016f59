package slack

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/qj0r9j0vc2/slackcat/internal/domain/message"
)

// Style color codes for the attachment bar
const (
	colorInfo    = "#36C5F0" // Blue
	colorWarning = "#ECB22E" // Yellow/Orange
	colorError   = "#E01E5A" // Red
	colorSuccess = "#2EB67D" // Green
	colorNeutral = "#9B59B6" // Purple
)

// Slack Block Kit limits.
const (
	maxSectionText   = 3000
	maxSectionFields = 10
	maxFieldText     = 2000
	maxFallbackText  = 300
)

// RenderedMessage is a BotMessage in Block Kit form.
type RenderedMessage struct {
	Blocks []slack.Block

	// Color is set when the message has a style; blocks are then wrapped in a colored attachment.
	Color string

	// Fallback is the notification text.
	Fallback string
}

// MsgOptions returns the chat.postMessage options carrying the rendered content.
func (m RenderedMessage) MsgOptions() []slack.MsgOption {
	options := []slack.MsgOption{
		slack.MsgOptionText(m.Fallback, false),
	}

	if m.Color == "" {
		return append(options, slack.MsgOptionBlocks(m.Blocks...))
	}

	return append(options, slack.MsgOptionAttachments(slack.Attachment{
		Color:    m.Color,
		Fallback: m.Fallback,
		Blocks:   slack.Blocks{BlockSet: m.Blocks},
	}))
}

// BlockRenderer renders BotMessages as Slack Block Kit blocks.
type BlockRenderer struct{}

// NewBlockRenderer creates a new Block Kit renderer.
func NewBlockRenderer() *BlockRenderer {
	return &BlockRenderer{}
}

// Render converts msg into blocks, one or more per element, in element order.
func (r *BlockRenderer) Render(msg message.BotMessage) RenderedMessage {
	var blocks []slack.Block
	var fallback string

	for _, el := range msg.Elements() {
		switch e := el.(type) {
		case message.Text:
			blocks = append(blocks, markdownSection(formatText(e)))
			fallback = firstNonEmpty(fallback, e.Content)

		case message.Heading:
			blocks = append(blocks, markdownSection(fmt.Sprintf("*%s*", e.Content)))
			fallback = firstNonEmpty(fallback, e.Content)

		case message.Image:
			blocks = append(blocks, r.buildImage(e))

		case message.Divider:
			blocks = append(blocks, slack.NewDividerBlock())

		case message.KeyValueList:
			blocks = append(blocks, r.buildFields(e)...)

		case message.Context:
			blocks = append(blocks, slack.NewContextBlock("",
				slack.NewTextBlockObject(slack.MarkdownType, truncate(e.Content, maxSectionText), false, false),
			))
		}
	}

	return RenderedMessage{
		Blocks:   blocks,
		Color:    styleColor(msg.Style()),
		Fallback: truncate(fallback, maxFallbackText),
	}
}

// buildImage renders a full-width image block, or a section with an image accessory for thumbnails.
func (r *BlockRenderer) buildImage(img message.Image) slack.Block {
	alt := firstNonEmpty(img.AltText, "image")

	if img.Placement == message.PlacementThumbnail {
		return slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, truncate(alt, maxSectionText), false, false),
			nil,
			slack.NewAccessory(slack.NewImageBlockElement(img.URL, alt)),
		)
	}

	return slack.NewImageBlock(img.URL, alt, "", nil)
}

// buildFields renders key/value pairs as section fields, split at Slack's per-section limit.
func (r *BlockRenderer) buildFields(list message.KeyValueList) []slack.Block {
	var blocks []slack.Block

	for start := 0; start < len(list.Items); start += maxSectionFields {
		end := min(start+maxSectionFields, len(list.Items))

		fields := make([]*slack.TextBlockObject, 0, end-start)
		for _, item := range list.Items[start:end] {
			fields = append(fields, slack.NewTextBlockObject(
				slack.MarkdownType,
				truncate(fmt.Sprintf("*%s*\n%s", item.Key, item.Value), maxFieldText),
				false, false,
			))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, fields, nil))
	}

	return blocks
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, truncate(text, maxSectionText), false, false),
		nil, nil,
	)
}

// formatText applies mrkdwn inline formatting.
func formatText(t message.Text) string {
	switch t.Style {
	case message.TextBold:
		return fmt.Sprintf("*%s*", t.Content)
	case message.TextItalic:
		return fmt.Sprintf("_%s_", t.Content)
	case message.TextCode:
		if strings.Contains(t.Content, "\n") {
			return fmt.Sprintf("```%s```", t.Content)
		}
		return fmt.Sprintf("`%s`", t.Content)
	case message.TextQuote:
		return "> " + strings.ReplaceAll(t.Content, "\n", "\n> ")
	default:
		return t.Content
	}
}

func styleColor(style message.Style) string {
	switch style {
	case message.StyleInfo:
		return colorInfo
	case message.StyleWarning:
		return colorWarning
	case message.StyleError:
		return colorError
	case message.StyleSuccess:
		return colorSuccess
	case message.StyleNeutral:
		return colorNeutral
	default:
		return ""
	}
}

// truncate shortens s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
