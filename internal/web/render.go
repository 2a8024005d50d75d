package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v2"
)

//go:embed templates/*.html
var files embed.FS

// Renderer executes the embedded page templates.
type Renderer struct {
	templates *template.Template
}

// New parses the embedded templates.
func New() *Renderer {
	tmpl := template.Must(template.New("").ParseFS(files, "templates/*.html"))
	return &Renderer{templates: tmpl}
}

// Render executes the named page into a buffer and sends it as HTML. Partial
// writes never reach the client.
func (r *Renderer) Render(c *fiber.Ctx, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %q: %w", name, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}
