package gmail

// scanJSONObjects extracts every balanced, brace-delimited JSON object from
// raw text. A batch response part can carry more than one object, and object
// bodies nest braces (and contain braces inside string literals), so a plain
// split is not enough: the scanner tracks nesting depth and string/escape
// state to find complete {...} spans.
func scanJSONObjects(s string) []string {
	var (
		objects  []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
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
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				objects = append(objects, s[start:i+1])
			}
		}
	}
	return objects
}
