package export

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/spf13/afero"

	"vrm-expression-exporter/internal/expression"
)

// HTMLOptions controls the viewer page.
type HTMLOptions struct {
	Title string
	// MinWeight hides bindings at or below this percentage from the detail
	// tables. Zero shows every non-zero binding.
	MinWeight float64
}

type htmlBinding struct {
	Name   string
	Weight string
}

type htmlCard struct {
	Name     string
	Type     string
	Image    string        // relative to the viewer, empty when unavailable
	Bindings []htmlBinding // only those above the weight threshold
}

type htmlCharacter struct {
	Name  string
	File  string
	Cards []htmlCard
}

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
        .character { background: white; padding: 20px; margin-bottom: 30px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .character h2 { color: #333; border-bottom: 2px solid #4CAF50; padding-bottom: 10px; }
        .expression-grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(200px, 1fr)); gap: 20px; margin-top: 20px; }
        .expression-card { background: #f9f9f9; border: 1px solid #ddd; border-radius: 4px; padding: 10px; text-align: center; }
        .expression-card img { max-width: 100%; height: auto; border-radius: 4px; }
        .expression-name { font-weight: bold; margin-top: 10px; }
        .expression-type { color: #666; font-size: 0.9em; }
        .no-image { background: #eee; height: 150px; display: flex; align-items: center; justify-content: center; color: #999; }
        table { border-collapse: collapse; width: 100%; margin-top: 10px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #4CAF50; color: white; }
        .blend-shape-value { text-align: right; }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
{{- range .Characters}}
    <div class="character">
        <h2>{{.Name}}</h2>
        <p>File: {{.File}}</p>
        <div class="expression-grid">
{{- range .Cards}}
            <div class="expression-card">
{{- if .Image}}
                <img src="{{.Image}}" alt="{{.Name}}">
{{- else}}
                <div class="no-image">No Preview</div>
{{- end}}
                <div class="expression-name">{{.Name}}</div>
                <div class="expression-type">{{.Type}}</div>
{{- if .Bindings}}
                <details>
                    <summary>Blend Shapes</summary>
                    <table>
                        <tr><th>Name</th><th>Weight</th></tr>
{{- range .Bindings}}
                        <tr><td>{{.Name}}</td><td class="blend-shape-value">{{.Weight}}</td></tr>
{{- end}}
                    </table>
                </details>
{{- end}}
            </div>
{{- end}}
        </div>
    </div>
{{- end}}
</body>
</html>
`))

// HTML renders the viewer page that will live in outputDir. A card links its
// preview only if the image exists on fs when the page is rendered.
func HTML(fs afero.Fs, sets []*expression.CharacterSet, outputDir string, opts HTMLOptions) ([]byte, error) {
	if opts.Title == "" {
		opts.Title = "VRM Expression Viewer"
	}

	data := struct {
		Title      string
		Characters []htmlCharacter
	}{Title: opts.Title}

	for _, s := range sets {
		ch := htmlCharacter{Name: s.CharacterName, File: s.ObjectInstanceName}
		for _, e := range s.Entries {
			card := htmlCard{
				Name:  e.Name,
				Type:  e.Kind.String(),
				Image: previewHref(fs, outputDir, e.PreviewImagePath),
			}
			for _, b := range e.MorphBindings {
				if b.Percent() <= opts.MinWeight {
					continue
				}
				card.Bindings = append(card.Bindings, htmlBinding{
					Name:   b.TargetName,
					Weight: fmt.Sprintf("%.1f", b.Percent()),
				})
			}
			ch.Cards = append(ch.Cards, card)
		}
		data.Characters = append(data.Characters, ch)
	}

	var buf bytes.Buffer
	if err := viewerTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("export: render viewer: %w", err)
	}
	return buf.Bytes(), nil
}

func previewHref(fs afero.Fs, outputDir, path string) string {
	if path == "" {
		return ""
	}
	if ok, err := afero.Exists(fs, path); err != nil || !ok {
		return ""
	}
	rel, err := filepath.Rel(outputDir, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// WriteHTML renders the viewer and writes it to path.
func WriteHTML(fs afero.Fs, path string, sets []*expression.CharacterSet, opts HTMLOptions) error {
	page, err := HTML(fs, sets, filepath.Dir(path), opts)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("export: mkdir for %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, page, 0644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
