// Package extract holds best-effort parsers that pull structured applicant
// fields out of free-text user input. They never error; on no match the
// caller keeps prior state. Extracted values are advisory and never override
// tool-verified ones.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// Sanity bounds for a monthly salary pulled from a bare digit run.
	minSalary = 10_000
	maxSalary = 500_000

	lakh     = 100_000
	thousand = 1_000
)

var (
	lakhPattern     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:lakhs?|lacs?)`)
	thousandPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:thousand|k\b)`)
	currencyPattern = regexp.MustCompile(`(?:₹|rs\.?|inr)\s*(\d+(?:,\d+)*)`)
	bareRunPattern  = regexp.MustCompile(`\b(\d{5,})\b`)
	bareSalaryRun   = regexp.MustCompile(`\b(\d{5,6})\b`)

	// PAN: 5 letters, 4 digits, 1 letter.
	panPattern      = regexp.MustCompile(`\b([A-Z]{5}[0-9]{4}[A-Z])\b`)
	panExactPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

	tenurePattern = regexp.MustCompile(`(\d{1,2})\s*months?`)

	amountCuePattern = regexp.MustCompile(`\b(loan|borrow\w*|amount|lakhs?|lacs?)\b`)
	salaryCuePattern = regexp.MustCompile(`\b(salary|income|earn\w*|take[\s-]?home|per\s+month|monthly|a\s+month)\b`)
)

// HasAmountCue reports whether the text frames its figure as a loan amount.
func HasAmountCue(text string) bool {
	return amountCuePattern.MatchString(strings.ToLower(text))
}

// HasSalaryCue reports whether the text frames its figure as earnings.
func HasSalaryCue(text string) bool {
	return salaryCuePattern.MatchString(strings.ToLower(text))
}

// LoanAmount recognizes "lakh"/"lac" and "thousand"/"k" unit words,
// currency-prefixed digit groups, and bare runs of five or more digits.
// Text framed as earnings does not count: "my salary is 25000" names a
// salary, not a loan.
func LoanAmount(text string) (int64, bool) {
	text = strings.ToLower(text)
	if salaryCuePattern.MatchString(text) && !amountCuePattern.MatchString(text) {
		return 0, false
	}

	if m := lakhPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return int64(v * lakh), true
		}
	}
	if m := thousandPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return int64(v * thousand), true
		}
	}
	if m := currencyPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			return v, true
		}
	}
	if m := bareRunPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// MonthlySalary parses like LoanAmount but a bare digit run must fall inside
// the plausible salary range to count.
func MonthlySalary(text string) (int64, bool) {
	text = strings.ToLower(text)

	if m := thousandPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return int64(v * thousand), true
		}
	}
	if m := currencyPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			return v, true
		}
	}
	if m := bareSalaryRun.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && v >= minSalary && v <= maxSalary {
			return v, true
		}
	}
	return 0, false
}

// PAN pulls a fixed-format identity number out of free text. The value is
// provisional until the verification tool confirms it.
func PAN(text string) (string, bool) {
	if m := panPattern.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return m[1], true
	}
	return "", false
}

// ValidPAN checks the exact identity-number format. Format validity is an
// objective rule and is decided here, never by the oracle.
func ValidPAN(pan string) bool {
	return panExactPattern.MatchString(strings.ToUpper(strings.TrimSpace(pan)))
}

// Tenure recognizes an explicit month count, normalized to "N months".
func Tenure(text string) (string, bool) {
	if m := tenurePattern.FindStringSubmatch(strings.ToLower(text)); m != nil {
		return m[1] + " months", true
	}
	return "", false
}
