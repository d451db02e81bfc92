package criteria

import "strings"

// likeEscapeChar is the escape character used in every LIKE clause this
// compiler emits, ("Like-style operators escape _, %,
// and the escape character itself (~)").
const likeEscapeChar = "~"

// escapeLike escapes literal '_', '%' and '~' in a user-supplied value so
// it can be embedded in a LIKE pattern without those characters being
// interpreted as wildcards.
func escapeLike(s string) string {
	r := strings.NewReplacer(
		likeEscapeChar, likeEscapeChar+likeEscapeChar,
		"_", likeEscapeChar+"_",
		"%", likeEscapeChar+"%",
	)
	return r.Replace(s)
}

// translatePattern converts a user glob-style pattern ('*' any run, '?'
// any one character, '\' escapes the next character) into a LIKE
// pattern, escaping any literal '_', '%' or '~' found in the input
// first.
func translatePattern(pattern string) string {
	var b strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch ch {
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(escapeLikeRune(runes[i]))
			}
		case '*':
			b.WriteRune('%')
		case '?':
			b.WriteRune('_')
		case '_', '%':
			b.WriteString(likeEscapeChar)
			b.WriteRune(ch)
		case '~':
			b.WriteString(likeEscapeChar)
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func escapeLikeRune(ch rune) string {
	switch ch {
	case '_', '%', '~':
		return likeEscapeChar + string(ch)
	default:
		return string(ch)
	}
}
