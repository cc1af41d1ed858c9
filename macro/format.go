package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// formatString implements the GNU `format' builtin: a restricted printf,
// consuming one trailing arg per %-directive in order (spec.md §6's GNU
// extension list). Supported conversions: %s %d %i %o %x %X %u %c %%, with the
// usual flag/width/precision syntax understood by fmt.Sprintf, so the
// directive is simply re-assembled and handed to the standard formatter.
func formatString(spec string, args []any) (string, error) {
	var out strings.Builder
	argi := 0
	i := 0
	for i < len(spec) {
		c := spec[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		start := i
		i++
		if i < len(spec) && spec[i] == '%' {
			out.WriteByte('%')
			i++
			continue
		}
		for i < len(spec) && strings.ContainsRune("-+ 0#", rune(spec[i])) {
			i++
		}
		for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
			i++
		}
		if i < len(spec) && spec[i] == '.' {
			i++
			for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
				i++
			}
		}
		if i >= len(spec) {
			return "", fmt.Errorf("format: unterminated conversion directive")
		}
		verb := spec[i]
		directive := spec[start : i+1]
		i++

		if argi >= len(args) {
			return "", fmt.Errorf("format: too few arguments for `%s'", directive)
		}
		raw, _ := args[argi].(string)
		argi++

		switch verb {
		case 's':
			out.WriteString(fmt.Sprintf(directive, raw))
		case 'c':
			if len(raw) == 0 {
				out.WriteString(fmt.Sprintf(strings.Replace(directive, "c", "s", 1), ""))
			} else {
				out.WriteByte(raw[0])
			}
		case 'd', 'i':
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return "", fmt.Errorf("format: non-numeric argument `%s'", raw)
			}
			out.WriteString(fmt.Sprintf(strings.Replace(directive, string(verb), "d", 1), n))
		case 'o', 'x', 'X', 'u':
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return "", fmt.Errorf("format: non-numeric argument `%s'", raw)
			}
			rep := string(verb)
			if verb == 'u' {
				rep = "d"
			}
			out.WriteString(fmt.Sprintf(strings.Replace(directive, string(verb), rep, 1), n))
		default:
			return "", fmt.Errorf("format: unknown conversion `%c'", verb)
		}
	}
	return out.String(), nil
}
