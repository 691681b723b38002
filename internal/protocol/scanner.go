package protocol

// ExtractJSON pulls the first complete JSON object or array out of a line
// of mixed subprocess output. Tool processes interleave status chatter
// ("Connecting to MCP server...") with protocol frames on the same stream,
// so anything before, after, or instead of a balanced JSON value is
// ignored.
//
// The scan tracks bracket depth and string state explicitly. A quote
// toggles string mode only when preceded by an even number of
// backslashes.
func ExtractJSON(line string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(line); i++ {
		ch := line[i]

		if start == -1 {
			if ch == '{' || ch == '[' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return line[start : i+1], true
			}
		}
	}

	return "", false
}
