package viewport

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

// Render writes the overlay as a standalone SVG document sized to the view,
// shapes in paint order. Shapes without a drawable path are left out.
func Render(w io.Writer, v *Viewport, l *Layer) error {
	bw := bufio.NewWriter(w)
	size := v.Size()
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, size.W, size.H, size.W, size.H)
	bw.WriteString(`<g fill-rule="evenodd" stroke-linejoin="round" stroke-linecap="round">`)
	for _, id := range l.order {
		d := l.Path(id, v)
		if d == "" {
			continue
		}
		st := l.shapes[id].Style
		bw.WriteString(`<path data-region="`)
		xml.EscapeText(bw, []byte(id))
		bw.WriteString(`" d="`)
		bw.WriteString(d)
		bw.WriteString(`" stroke="`)
		xml.EscapeText(bw, []byte(orNone(st.Color)))
		fmt.Fprintf(bw, `" stroke-width="%s" fill="`, strconv.FormatFloat(st.Weight, 'f', -1, 64))
		xml.EscapeText(bw, []byte(orNone(st.FillColor)))
		fmt.Fprintf(bw, `" fill-opacity="%s"`, strconv.FormatFloat(st.FillOpacity, 'f', -1, 64))
		if s := st.EffectiveScale(); s != 1 {
			c := l.Anchor(id, v)
			fmt.Fprintf(bw, ` transform="%s"`, ScaleTransform(c[0], c[1], s))
		}
		bw.WriteString(`/>`)
	}
	bw.WriteString(`</g></svg>`)
	return bw.Flush()
}

// ScaleTransform scales around (cx, cy).
func ScaleTransform(cx, cy, s float64) string {
	f := func(x float64) string { return strconv.FormatFloat(round(x), 'f', -1, 64) }
	return "translate(" + f(cx) + " " + f(cy) + ") scale(" + strconv.FormatFloat(s, 'f', -1, 64) + ") translate(" + f(-cx) + " " + f(-cy) + ")"
}

func orNone(c string) string {
	if c == "" || c == "transparent" {
		return "none"
	}
	return c
}
