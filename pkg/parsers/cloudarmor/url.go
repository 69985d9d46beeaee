package cloudarmor

import (
	"regexp"
	"strings"
)

var (
	outputParam = regexp.MustCompile(`output=\w+`)

	// Path segments of a sheet link. Each must end at a separator so a
	// document ID such as "pubA1b2" or "editX" never matches.
	pubHTMLSegment = regexp.MustCompile(`/pubhtml(?:[/?#]|$)`)
	pubSegment     = regexp.MustCompile(`/pub(?:[/#]|$)`)
	editSegment    = regexp.MustCompile(`/edit(?:[/?#]|$)`)
)

// ToCSVURL rewrites a Google Sheets link to its CSV export form. Links that
// already ask for CSV, and links it does not recognize, are returned trimmed
// but otherwise unchanged.
func ToCSVURL(raw string) string {
	u := strings.TrimSpace(raw)

	switch {
	case strings.Contains(u, "output=csv"):
		return u
	case pubHTMLSegment.MatchString(u):
		return replaceSegment(u, pubHTMLSegment, "/pubhtml", "/pub?output=csv")
	case strings.Contains(u, "/pub?"):
		if !strings.Contains(u, "output=") {
			return u + "&output=csv"
		}
		if loc := outputParam.FindStringIndex(u); loc != nil {
			return u[:loc[0]] + "output=csv" + u[loc[1]:]
		}
		return u
	case pubSegment.MatchString(u):
		return replaceSegment(u, pubSegment, "/pub", "/pub?output=csv")
	case editSegment.MatchString(u):
		return replaceSegment(u, editSegment, "/edit", "/export?format=csv")
	}
	return u
}

// replaceSegment swaps the segment seg at the first match of re for repl.
func replaceSegment(u string, re *regexp.Regexp, seg, repl string) string {
	loc := re.FindStringIndex(u)
	if loc == nil {
		return u
	}
	return u[:loc[0]] + repl + u[loc[0]+len(seg):]
}
