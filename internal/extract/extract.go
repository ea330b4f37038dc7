// Package extract turns free-text livestream comments into a normalized
// selling code and requested quantity. It is pure: malformed input is a
// normal no-match, never an error.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Selling code: category letter A/B, optional separators, 1-3 digits.
// The letter must not be glued to a preceding letter or digit so that
// words like "ba12" do not produce a code.
var codeRe = regexp.MustCompile(`(?i)(^|[^a-z0-9])([ab])[\s\-_.~～　]*([0-9]{1,3})`)

// Quantity: multiplier symbol followed by 1-3 digits. Buyers type all kinds
// of glyphs on mobile keyboards, so the symbol class is wide.
var qtyRe = regexp.MustCompile(`[+xX*×＋ｘＸ＊−–—－\-]\s*([0-9]{1,3})`)

// Result is a normalized extraction: Code is letter + zero-padded 3 digits.
type Result struct {
	Code     string
	Quantity int
}

// Extract scans text for a selling code and multiplier tokens. The second
// return is false when no code token exists; the comment is then ignored
// by the caller, not treated as an error.
//
// Quantity is the maximum over all multiplier tokens (a buyer correcting
// themselves upward, "+2 actually x5", means 5), defaulting to 1.
func Extract(text string) (Result, bool) {
	m := codeRe.FindStringSubmatchIndex(text)
	if m == nil {
		return Result{}, false
	}

	letter := strings.ToUpper(text[m[4]:m[5]])
	digits := text[m[6]:m[7]]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Result{}, false
	}
	code := fmt.Sprintf("%s%03d", letter, n)

	// Cut the code token out before scanning multipliers, so a dash
	// separator inside "A-005" is never read as a multiplier symbol.
	rest := text[:m[4]] + text[m[7]:]

	qty := 1
	for _, qm := range qtyRe.FindAllStringSubmatch(rest, -1) {
		q, err := strconv.Atoi(qm[1])
		if err != nil {
			continue
		}
		if q > qty {
			qty = q
		}
	}
	return Result{Code: code, Quantity: qty}, true
}
