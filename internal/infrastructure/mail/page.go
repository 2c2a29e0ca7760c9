package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"strings"
	"time"

	"FeedDigest/internal/domain"
	"FeedDigest/internal/ports"
)

const (
	contentPlaceholder   = "{{DIGEST_CONTENT}}"
	dateRangePlaceholder = "{{DATE_RANGE}}"
)

var shell = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
        .container { background-color: white; padding: 40px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #e3120b; border-bottom: 3px solid #e3120b; padding-bottom: 10px; }
        h2 { color: #2c3e50; margin-top: 30px; }
        h3 { color: #34495e; margin-top: 20px; }
        a { color: #e3120b; text-decoration: none; }
        ul { padding-left: 20px; }
        li { margin-bottom: 10px; }
        .footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; font-size: 0.9em; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p><strong>Week of {{.DateRange}}</strong></p>

        {{.Body}}

        <div class="footer">
            <p>This digest was automatically generated from syndicated news feeds.</p>
        </div>
    </div>
</body>
</html>
`))

// Page renders digest bodies with a fixed title and optional template file.
type Page struct {
	templatePath string
	title        string
	logger       *slog.Logger
}

var _ ports.PageRenderer = (*Page)(nil)

// NewPage creates a renderer for the configured template and title.
func NewPage(templatePath, title string, logger *slog.Logger) *Page {
	return &Page{templatePath: templatePath, title: title, logger: logger}
}

// Render wraps body into a full HTML page for the date range.
func (p *Page) Render(body string, dateRange domain.DateRange) (string, error) {
	return RenderPage(body, dateRange.Label(), p.templatePath, p.title, p.logger)
}

// RenderPage wraps a digest body in the configured template file, or in the
// built-in shell when no template is configured or it cannot be read.
func RenderPage(body, dateRange, templatePath, title string, logger *slog.Logger) (string, error) {
	if templatePath != "" {
		raw, err := os.ReadFile(templatePath)
		if err == nil {
			return strings.NewReplacer(
				contentPlaceholder, body,
				dateRangePlaceholder, dateRange,
			).Replace(string(raw)), nil
		}
		if logger != nil {
			logger.Warn("cannot load page template, using built-in shell", "path", templatePath, "error", err)
		}
	}

	var buf bytes.Buffer
	err := shell.Execute(&buf, struct {
		Title     string
		DateRange string
		Body      template.HTML
	}{
		Title:     title,
		DateRange: dateRange,
		Body:      template.HTML(body),
	})
	if err != nil {
		return "", fmt.Errorf("render page shell: %w", err)
	}
	return buf.String(), nil
}

// TestMessage builds the configuration check email.
func TestMessage(to, title string, now time.Time) ports.Message {
	return ports.Message{
		To:      to,
		Subject: "Test Email - " + title,
		HTML: fmt.Sprintf("<h1>Test Email from %s</h1>\n"+
			"<p>This is a test email to verify your SendGrid configuration.</p>\n"+
			"<p><small>Sent at: %s</small></p>", template.HTMLEscapeString(title), now.Format(time.DateTime)),
	}
}
