package prompt

import "strings"

const fence = "```"

// ExtractCode returns the code in a model response:
//
//   - the body of the first fenced block tagged with language, if any;
//   - otherwise the body of the first fenced block;
//   - for an unterminated fence, everything after the fence line;
//   - with no fence at all, the trimmed output.
//
// It never fails; empty input yields "".
func ExtractCode(output, language string) string {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	start := -1
	if language != "" {
		for i, line := range lines {
			if tag, ok := fenceTag(line); ok && strings.EqualFold(tag, language) {
				start = i
				break
			}
		}
	}
	if start < 0 {
		for i, line := range lines {
			if isFenceLine(line) {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return strings.TrimSpace(output)
	}

	body := lines[start+1:]
	for i, line := range body {
		if isFenceLine(line) {
			body = body[:i]
			break
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

func isFenceLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fence)
}

// fenceTag returns the info string of a fence line.
func fenceTag(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, fence) {
		return "", false
	}
	tag := strings.TrimSpace(strings.TrimLeft(trimmed, "`"))
	if i := strings.IndexAny(tag, " \t{"); i >= 0 {
		tag = tag[:i]
	}
	return tag, true
}
