package server

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/mpwizard/internal/fragments"
)

const indexStyle = `
body { font-family: system-ui, -apple-system, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
.container { max-width: 1200px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; }
h1 { color: #333; border-bottom: 2px solid #007acc; padding-bottom: 10px; }
.catalog { display: grid; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); gap: 16px; }
.fragment { border: 1px solid #ddd; border-radius: 6px; padding: 10px; background: #fafafa; }
.fragment-key { font-size: 12px; color: #666; }
#preview { background: #1e1e1e; color: #ddd; padding: 12px; overflow: auto; max-height: 60vh; }
`

const indexScript = `
(function () {
  var preview = document.getElementById("preview");
  fetch("/api/sessions", { method: "POST" })
    .then(function (r) { return r.json(); })
    .then(function (body) {
      document.body.dataset.session = body.id;
      var proto = location.protocol === "https:" ? "wss://" : "ws://";
      var ws = new WebSocket(proto + location.host + "/ws?session=" + body.id);
      ws.onmessage = function (ev) {
        var msg = JSON.parse(ev.data);
        if (msg.type === "preview") { preview.textContent = msg.content; }
      };
    });
})();
`

// indexPage lists the fragment catalog by category and hosts the live
// preview of a session created on load.
func indexPage(lib *fragments.Library) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
		b.WriteString("<meta charset=\"utf-8\">\n<title>mpwizard - Management Pack Preview</title>\n")
		b.WriteString("<style>" + indexStyle + "</style>\n</head>\n<body>\n<div class=\"container\">\n")
		b.WriteString("<h1>Management Pack Wizard</h1>\n")

		for _, cat := range fragments.Categories {
			defs := lib.ByCategory(cat)
			if len(defs) == 0 {
				continue
			}
			fmt.Fprintf(&b, "<section class=\"category\" id=\"%s\">\n<h2>%s</h2>\n<div class=\"catalog\">\n",
				templ.EscapeString(string(cat)), templ.EscapeString(categoryTitle(cat)))
			for _, def := range defs {
				fmt.Fprintf(&b, "<div class=\"fragment\" data-key=\"%s\" data-category=\"%s\">",
					templ.EscapeString(def.Key), templ.EscapeString(string(def.Category)))
				fmt.Fprintf(&b, "<strong>%s</strong><div class=\"fragment-key\">%s</div>",
					templ.EscapeString(def.DisplayName), templ.EscapeString(def.Key))
				fmt.Fprintf(&b, "<div class=\"fragment-fields\">%d fields</div></div>\n", len(def.Fields))
			}
			b.WriteString("</div>\n</section>\n")
		}

		b.WriteString("<h2>Preview</h2>\n<pre id=\"preview\"></pre>\n</div>\n")
		b.WriteString("<script>" + indexScript + "</script>\n</body>\n</html>\n")

		_, err := io.WriteString(w, b.String())

		return err
	})
}

func categoryTitle(c fragments.Category) string {
	s := string(c)

	return strings.ToUpper(s[:1]) + s[1:]
}
