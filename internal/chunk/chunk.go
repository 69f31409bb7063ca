// Package chunk splits outbound text into transport-sized segments.
package chunk

import "unicode/utf8"

// Split breaks text into ordered pieces of at most size bytes, never cutting
// through a multi-byte rune. It always returns at least one piece: empty
// input yields [""].
func Split(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}
	if text == "" {
		return []string{""}
	}

	chunks := make([]string, 0, len(text)/size+1)
	for len(text) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			// No rune boundary within size bytes; the input is not
			// valid UTF-8, cut at size rather than loop forever.
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	return append(chunks, text)
}
