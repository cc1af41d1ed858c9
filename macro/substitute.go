package macro

import "strconv"

// substitute implements spec.md §4.6: scan a user macro's definition text
// left to right, copying bytes to the result except where `$` introduces
// a parameter reference.
func (e *Engine) substitute(text string, argv *Argv) string {
	var out []byte
	i := 0
	for i < len(text) {
		c := text[i]
		if c != '$' || i+1 >= len(text) {
			out = append(out, c)
			i++
			continue
		}

		next := text[i+1]
		switch {
		case next >= '0' && next <= '9':
			n, consumed := e.readParamNumber(text, i+1)
			out = append(out, argv.At(n).Bytes()...)
			i += 1 + consumed
		case next == '#':
			out = append(out, strconv.Itoa(argv.Argc()-1)...)
			i += 2
		case next == '*':
			out = append(out, argv.Star()...)
			i += 2
		case next == '@':
			out = append(out, argv.AtAll(e.Ctx.Quote.LQuote, e.Ctx.Quote.RQuote)...)
			i += 2
		default:
			// Any other byte after '$': emit the literal '$'; the
			// following byte is re-scanned normally (spec.md §4.6).
			out = append(out, '$')
			i++
		}
	}
	return string(out)
}

// readParamNumber reads a decimal integer starting at text[pos] (which
// must be a digit), returning the parsed value and how many bytes it
// consumed. With GNU extensions off, only a single digit is read even if
// more digits follow (spec.md §4.6 "$0..$9").
func (e *Engine) readParamNumber(text string, pos int) (n int, consumed int) {
	if !e.Ctx.Options.GNUExtensions {
		return int(text[pos] - '0'), 1
	}
	start := pos
	for pos < len(text) && text[pos] >= '0' && text[pos] <= '9' {
		pos++
	}
	val, _ := strconv.Atoi(text[start:pos])
	return val, pos - start
}
