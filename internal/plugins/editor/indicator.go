package editor

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/aarangop/note-rags-web-ui/internal/autosave"
)

// indicatorLabels maps a status to the text shown in the badge.
var indicatorLabels = map[string]string{
	autosave.StatusIdle.String():   "Saved",
	autosave.StatusSaving.String(): "Saving…",
	autosave.StatusSaved.String():  "Saved",
	autosave.StatusError.String():  "Save failed",
	StatusUnsaved:                  "Unsaved changes",
}

// SaveIndicator renders the save status badge. The badge polls its own
// endpoint through HTMX and replaces itself. While changes are pending it
// carries a "Save now" button that posts csrfToken back.
func SaveIndicator(view *StatusView, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		label := indicatorLabels[view.Status]
		if view.Status == autosave.StatusIdle.String() && view.LastSaved == nil {
			label = ""
		}

		title := view.Error
		if title == "" && view.LastSaved != nil {
			title = "Last saved " + view.LastSaved.Format("15:04:05 MST")
		}

		if _, err := fmt.Fprintf(w,
			`<span id="save-indicator" class="save-indicator save-indicator--%s" `+
				`hx-get="/notes/%d/save-indicator" hx-trigger="every 2s" hx-swap="outerHTML" `+
				`role="status" aria-live="polite" title="%s">%s`,
			templ.EscapeString(view.Status), view.NoteID,
			templ.EscapeString(title), templ.EscapeString(label),
		); err != nil {
			return err
		}

		if view.HasUnsavedChanges && view.Status != autosave.StatusSaving.String() {
			if _, err := fmt.Fprintf(w,
				`<button type="button" class="save-indicator__save" hx-post="/api/v1/notes/%d/save" `+
					`hx-swap="none" hx-headers='{"X-CSRF-Token": "%s"}'>Save now</button>`,
				view.NoteID, templ.EscapeString(csrfToken),
			); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</span>`)
		return err
	})
}
