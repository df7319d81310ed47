// Package placeholder shields structured content (HTML tags, fenced
// code blocks, inline code spans) from the model by swapping it for
// numbered markers the prompts instruct the model to preserve, then
// restores the originals in the output.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	reFencedCode = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`]+`")
	reHTMLTag    = regexp.MustCompile(`<[^>]+>`)

	// ⟦n⟧ — mathematical white brackets, chosen because no natural
	// language uses them and models leave them alone.
	reMarker = regexp.MustCompile(`⟦(\d+)⟧`)
)

// Markers holds the originals captured by Protect, in marker order.
type Markers []string

// Protect replaces structured markup with ⟦0⟧, ⟦1⟧, … in order of
// appearance and returns the shielded text plus the captured originals.
// Fenced blocks are captured before inline spans so the longest match
// wins.
func Protect(text string) (string, Markers) {
	var markers Markers
	replace := func(match string) string {
		id := fmt.Sprintf("⟦%d⟧", len(markers))
		markers = append(markers, match)
		return id
	}
	text = reFencedCode.ReplaceAllStringFunc(text, replace)
	text = reInlineCode.ReplaceAllStringFunc(text, replace)
	text = reHTMLTag.ReplaceAllStringFunc(text, replace)
	return text, markers
}

// Restore substitutes markers back with their originals. A marker the
// model dropped simply stays dropped; an index Protect never issued is
// left as-is.
func (m Markers) Restore(text string) string {
	if len(m) == 0 {
		return text
	}
	return reMarker.ReplaceAllStringFunc(text, func(match string) string {
		sub := reMarker.FindStringSubmatch(match)
		idx, err := strconv.Atoi(sub[1])
		if err != nil || idx < 0 || idx >= len(m) {
			return match
		}
		return m[idx]
	})
}
