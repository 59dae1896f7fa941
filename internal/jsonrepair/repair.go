// Package jsonrepair recovers JSON values from LLM output that may be wrapped
// in prose or markdown fences and may be truncated mid-structure, a common
// failure when the model exhausts its output token budget.
//
// Everything here is pure and deterministic: the only failure modes are
// ErrNoJSON (nothing that looks like an object in the input) and
// *RepairFailedError (the text could not be repaired into valid JSON).
package jsonrepair

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when the input contains no JSON object at all.
var ErrNoJSON = errors.New("no JSON found in response")

// RepairFailedError reports that the text failed strict parsing even after
// repair. Offset and Context describe the original parse failure to aid
// debugging of new truncation shapes.
type RepairFailedError struct {
	Offset  int64
	Context string
	Cause   error
}

func (e *RepairFailedError) Error() string {
	return fmt.Sprintf("JSON repair failed at offset %d (near %q): %v", e.Offset, e.Context, e.Cause)
}

func (e *RepairFailedError) Unwrap() error { return e.Cause }

// trailingCommaPattern matches a trailing comma before } or ].
// LLMs commonly emit these even in otherwise intact output.
var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// incompleteUnicodePattern matches a \u escape cut before its fourth hex digit.
var incompleteUnicodePattern = regexp.MustCompile(`\\u[0-9a-fA-F]{0,3}$`)

// Extract locates the JSON object inside raw. It strips a surrounding
// markdown code fence, then slices from the first '{' to the last '}'.
// If no '}' follows the first '{' (the usual truncation case), the slice
// runs to the end of the text so Repair can still work on it.
func Extract(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	if start == -1 {
		return "", ErrNoJSON
	}
	if end := strings.LastIndex(s, "}"); end > start {
		return s[start : end+1], nil
	}
	return s[start:], nil
}

// extractToEnd slices from the first '{' to the end of the fence-stripped
// text, keeping any truncated structure after the last '}'.
func extractToEnd(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start != -1 {
		return s[start:]
	}
	return s
}

// Repair extracts a JSON object from raw and, if strict parsing fails,
// applies a single-pass truncation repair before parsing again.
func Repair(raw string) (json.RawMessage, error) {
	extracted, err := Extract(raw)
	if err != nil {
		return nil, err
	}
	if json.Valid([]byte(extracted)) {
		return json.RawMessage(extracted), nil
	}

	// Capture the strict-parse failure before mutating the text, so a failed
	// repair can report the original position.
	var probe any
	origErr := json.Unmarshal([]byte(extracted), &probe)

	// A truncated document usually keeps producing structure past its last
	// '}', so repair the region running to the end of the text first. The
	// narrower first-'{'-to-last-'}' slice is the fallback for output that
	// has trailing prose instead.
	for _, candidate := range []string{extractToEnd(raw), extracted} {
		repaired := repairTruncated(candidate)
		if json.Valid([]byte(repaired)) {
			return json.RawMessage(repaired), nil
		}
	}

	offset := parseOffset(origErr)
	return nil, &RepairFailedError{
		Offset:  offset,
		Context: contextWindow(extracted, int(offset)),
		Cause:   origErr,
	}
}

// RepairInto repairs raw and unmarshals the result into v.
func RepairInto(raw string, v any) error {
	data, err := Repair(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &RepairFailedError{Cause: err, Context: contextWindow(string(data), 0)}
	}
	return nil
}

// scanResult describes the structural state at the end of a scan.
type scanResult struct {
	stack       []byte // open '{' and '[' in order
	inString    bool
	escaped     bool   // last char was an unconsumed backslash
	stringStart int    // opening quote index of the last string seen
	beforeQuote byte   // significant char preceding that opening quote
	lastSig     byte   // last significant char outside strings
}

// scan walks s tracking string-escape state and bracket depth.
func scan(s string) scanResult {
	r := scanResult{stringStart: -1}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if r.inString {
			if r.escaped {
				r.escaped = false
				continue
			}
			switch c {
			case '\\':
				r.escaped = true
			case '"':
				r.inString = false
				r.lastSig = '"'
			}
			continue
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '"':
			r.inString = true
			r.stringStart = i
			r.beforeQuote = r.lastSig
		case '{', '[':
			r.stack = append(r.stack, c)
			r.lastSig = c
		case '}', ']':
			if len(r.stack) > 0 {
				r.stack = r.stack[:len(r.stack)-1]
			}
			r.lastSig = c
		default:
			r.lastSig = c
		}
	}
	return r
}

// repairTruncated applies the ordered set of fixes for common truncation
// shapes, then rebalances brackets. The fix order is fixed so earlier fixes
// are not undone by later ones:
//
//  1. unterminated string literal
//  2. dangling object key (a string in key position with no colon)
//  3. truncated numeric or boolean/null literal
//  4. trailing comma before a closer
//  5. missing value after a colon
func repairTruncated(s string) string {
	s = strings.TrimSpace(s)
	st := scan(s)

	// Fix 1+2: the text ends inside a string.
	if st.inString {
		if st.escaped {
			s = s[:len(s)-1] // dangling backslash cannot be completed
		}
		s = incompleteUnicodePattern.ReplaceAllString(s, "")
		if top(st.stack) == '{' && st.beforeQuote != ':' {
			// Truncated object key: drop the whole element, it can never be
			// matched back to a value.
			s = cutElement(s, st.stringStart)
		} else {
			s += `"`
		}
	} else if st.lastSig == '"' && top(st.stack) == '{' && st.beforeQuote != ':' && st.beforeQuote != 0 {
		// Fix 2: a complete string in key position with nothing after it.
		s = cutElement(strings.TrimRight(s, " \t\n\r"), st.stringStart)
	}

	// Fix 3: a literal cut mid-token (tru, fals, 12., 1e+, lone minus).
	s = fixDanglingLiteral(s)

	// Fix 4: trailing commas, both at the cut point and before closers.
	s = strings.TrimRight(s, " \t\n\r")
	s = strings.TrimSuffix(s, ",")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")

	// Fix 5: a key whose value never arrived.
	if strings.HasSuffix(strings.TrimRight(s, " \t\n\r"), ":") {
		s = strings.TrimRight(s, " \t\n\r") + " null"
	}

	// Rebalance: close whatever is still open, in reverse opening order.
	final := scan(s)
	var closers strings.Builder
	for i := len(final.stack) - 1; i >= 0; i-- {
		if final.stack[i] == '{' {
			closers.WriteByte('}')
		} else {
			closers.WriteByte(']')
		}
	}
	return s + closers.String()
}

// cutElement removes the element whose string opens at quote, together with
// the comma that introduced it.
func cutElement(s string, quote int) string {
	if quote < 0 || quote > len(s) {
		return s
	}
	cut := quote
	for cut > 0 {
		c := s[cut-1]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			cut--
			continue
		}
		if c == ',' {
			cut--
		}
		break
	}
	return s[:cut]
}

// fixDanglingLiteral completes a boolean/null literal cut mid-word and trims
// the unparsable tail of a truncated number.
func fixDanglingLiteral(s string) string {
	trimmed := strings.TrimRight(s, " \t\n\r")
	tail := trailingToken(trimmed)
	if tail == "" {
		return s
	}

	for _, lit := range []string{"true", "false", "null"} {
		if tail != lit && strings.HasPrefix(lit, tail) {
			return trimmed + lit[len(tail):]
		}
	}

	// Numbers: strip trailing characters that cannot end a valid number.
	// "12." -> "12", "1e+" -> "1", a lone "-" disappears entirely.
	if strings.IndexFunc(tail, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.eE", r)
	}) == -1 {
		cut := trimmed
		for len(cut) > 0 && strings.ContainsRune("+-.eE", rune(cut[len(cut)-1])) {
			cut = cut[:len(cut)-1]
		}
		if len(cut) < len(trimmed) {
			return cut
		}
	}
	return s
}

// trailingToken returns the trailing run of literal/number characters.
func trailingToken(s string) string {
	i := len(s)
	for i > 0 {
		c := s[i-1]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			c == '+' || c == '-' || c == '.' {
			i--
			continue
		}
		break
	}
	return s[i:]
}

func top(stack []byte) byte {
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1]
}

func parseOffset(err error) int64 {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset
	}
	return 0
}

// contextWindow returns a short excerpt of s around offset for diagnostics.
func contextWindow(s string, offset int) string {
	const window = 20
	lo := offset - window
	if lo < 0 {
		lo = 0
	}
	hi := offset + window
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}
