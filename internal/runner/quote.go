package runner

import "strings"

func shellJoin(argv []string) string {
	var builder strings.Builder
	for i, arg := range argv {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(shellQuote(arg))
	}
	return builder.String()
}

// shellQuote leaves words made of safe characters bare and single-quotes the rest.
func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	if isShellSafe(value) {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

func isShellSafe(value string) bool {
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("@%+=:,./-_", c) >= 0:
		default:
			return false
		}
	}
	return true
}
