// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backup

import (
	"fmt"
	"html"
	"strings"
	"time"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"queryquant/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders a session transcript as a standalone HTML page with
// embedded CSS and syntax-highlighted code blocks.
type HTMLExporter struct {
	// ChromaStyle names the highlight style. Default: "monokai".
	ChromaStyle string
}

// NewHTMLExporter creates an HTML exporter with the default style.
func NewHTMLExporter() *HTMLExporter {
	return &HTMLExporter{ChromaStyle: "monokai"}
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// Export converts a session to HTML.
func (e *HTMLExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if len(sess.Messages) == 0 {
		return nil, fmt.Errorf("session has no messages")
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(sess.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"queryquant\">\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", sess.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n<body>\n    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(sess.Title)))
	sb.WriteString("            <div class=\"metadata\">\n")
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n",
		sess.CreatedAt.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n",
		len(sess.Messages)))
	sb.WriteString("            </div>\n        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range sess.Messages {
		sb.WriteString(e.renderMessage(&msg))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>QueryQuant</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// renderMessage renders a single message, highlighting fenced code blocks.
func (e *HTMLExporter) renderMessage(msg *model.Message) string {
	var sb strings.Builder

	roleClass := strings.ToLower(msg.Role.String())
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s-message\">\n", roleClass))
	sb.WriteString("                <div class=\"message-header\">\n")
	sb.WriteString(fmt.Sprintf("                    <span class=\"role-label\">%s</span>\n",
		html.EscapeString(msg.Role.DisplayName())))
	sb.WriteString(fmt.Sprintf("                    <span class=\"timestamp\">%s</span>\n",
		msg.Timestamp.Format("15:04")))
	sb.WriteString("                </div>\n")
	sb.WriteString("                <div class=\"message-content\">\n")

	sb.WriteString(e.renderContent(msg.Text))
	for _, att := range msg.Attachments {
		label := "image attachment"
		if att.Name != "" {
			label = att.Name
		}
		sb.WriteString(fmt.Sprintf("                    <p class=\"attachment\">[%s]</p>\n",
			html.EscapeString(label)))
	}

	sb.WriteString("                </div>\n            </div>\n")
	return sb.String()
}

// renderContent splits text on fenced code blocks and runs each block
// through chroma.
func (e *HTMLExporter) renderContent(text string) string {
	var sb strings.Builder

	for {
		start := strings.Index(text, "```")
		if start < 0 {
			sb.WriteString(renderProse(text))
			break
		}
		sb.WriteString(renderProse(text[:start]))

		rest := text[start+3:]
		lang := ""
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			lang = strings.TrimSpace(rest[:nl])
			rest = rest[nl+1:]
		}
		end := strings.Index(rest, "```")
		if end < 0 {
			// Unterminated fence: render the remainder as code.
			sb.WriteString(e.highlight(rest, lang))
			break
		}
		sb.WriteString(e.highlight(rest[:end], lang))
		text = rest[end+3:]
	}
	return sb.String()
}

// highlight renders one code block through chroma with inline styles.
func (e *HTMLExporter) highlight(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}

	style := styles.Get(e.ChromaStyle)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "<pre><code>" + html.EscapeString(code) + "</code></pre>\n"
	}

	var sb strings.Builder
	formatter := chromahtml.New(chromahtml.WithClasses(false))
	if err := formatter.Format(&sb, style, iterator); err != nil {
		return "<pre><code>" + html.EscapeString(code) + "</code></pre>\n"
	}
	return sb.String()
}

// renderProse renders non-code text as escaped paragraphs.
func renderProse(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var sb strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		escaped := html.EscapeString(para)
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		sb.WriteString("                    <p>" + escaped + "</p>\n")
	}
	return sb.String()
}

// pageCSS is the embedded stylesheet for exported pages.
const pageCSS = `    <style>
        body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; background: #1e1e2e; color: #cdd6f4; }
        .container { max-width: 860px; margin: 0 auto; padding: 2rem 1rem; }
        .header h1 { margin: 0 0 0.5rem; }
        .metadata { color: #9399b2; font-size: 0.9rem; }
        .meta-item { margin-right: 1.5rem; }
        .message { border-radius: 8px; margin: 1rem 0; padding: 1rem; }
        .user-message { background: #313244; }
        .model-message { background: #26263a; }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 0.5rem; }
        .role-label { font-weight: 600; }
        .timestamp { color: #9399b2; font-size: 0.8rem; }
        .message-content p { margin: 0.4rem 0; line-height: 1.5; }
        .attachment { color: #9399b2; font-style: italic; }
        pre { border-radius: 6px; padding: 0.8rem; overflow-x: auto; }
        .footer { margin-top: 2rem; color: #9399b2; font-size: 0.85rem; text-align: center; }
    </style>
`
