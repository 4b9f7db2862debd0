package report

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/egrid-plants/internal/domain"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"mwh": FormatMWh,
	"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
}).ParseFS(templateFS, "templates/*.html.tmpl"))

// Chart is one rendered PNG panel of a dashboard.
type Chart struct {
	Title string
	PNG   []byte
}

// DataURI embeds the PNG for use in an img src attribute.
func (c Chart) DataURI() template.URL {
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(c.PNG)) //nolint:gosec // encoded locally rendered PNG
}

// Dashboard is the rendered summary of one (year, state) selection.
type Dashboard struct {
	Title       string
	Selection   domain.Selection
	GeneratedAt time.Time
	Plants      int
	Located     int // plants placed on the map by geocoding
	Split       domain.GenerationSplit
	Top         []domain.PlantRecord
	Mix         []domain.FuelShare
	Charts      []Chart
}

// WriteHTML renders the dashboard as a self-contained HTML document.
func WriteHTML(w io.Writer, d *Dashboard) error {
	return tmpl.ExecuteTemplate(w, "dashboard.html.tmpl", d)
}

// SaveHTML writes the dashboard to path, replacing any existing file.
func SaveHTML(path string, d *Dashboard) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dashboard dir: %w", err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // path comes from trusted config
	if err != nil {
		return fmt.Errorf("create dashboard: %w", err)
	}
	if err := WriteHTML(f, d); err != nil {
		_ = f.Close()
		return fmt.Errorf("write dashboard: %w", err)
	}
	return f.Close()
}

// PageData drives the interactive selection page.
type PageData struct {
	Years     []int
	Regions   []string
	Year      string
	State     string
	Message   string
	Dashboard *Dashboard
}

// WritePage renders the selection form, followed by the dashboard or a message.
func WritePage(w io.Writer, data PageData) error {
	return tmpl.ExecuteTemplate(w, "page.html.tmpl", data)
}

// FormatMWh renders a generation figure with thousands separators.
func FormatMWh(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
