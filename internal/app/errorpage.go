package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// ErrorFragment renders a minimal error block for browser and HTMX requests.
func ErrorFragment(code int, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<section class="error" role="alert"><h1>%d %s</h1><p>%s</p></section>`,
			code, templ.EscapeString(http.StatusText(code)), templ.EscapeString(message),
		)
		return err
	})
}
