package knowledge

import (
	"regexp"
)

// needsLookupRe recognizes phrasing that asks about the present moment,
// the cue that a model's training data will not be enough.
var needsLookupRe = regexp.MustCompile(`(?i)\b(current|currently|latest|today|tonight|right now|real[- ]?time|this (?:week|morning|year)|breaking|up[- ]to[- ]date|as of now|price of)\b`)

// NeedsLookup reports whether the query asks for current/real-time
// information. It gates the generic-web fallback: the web provider only
// runs when no specialized provider matched AND this returns true.
func NeedsLookup(query string) bool {
	return needsLookupRe.MatchString(query)
}

// uncertaintyRes matches model responses that admit to missing current
// data. When a draft response matches and no pre-lookup fired, the
// orchestrator consults the generic-web provider and regenerates once.
var uncertaintyRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)don'?t have (?:access to )?real[- ]?time`),
	regexp.MustCompile(`(?i)as of my (?:last )?(?:knowledge|training) (?:cutoff|update|data)`),
	regexp.MustCompile(`(?i)\bi'?m not (?:entirely |completely )?sure\b`),
	regexp.MustCompile(`(?i)i (?:cannot|can'?t|am unable to) (?:browse|access) the (?:internet|web)`),
	regexp.MustCompile(`(?i)i don'?t have (?:access to )?(?:current|up[- ]to[- ]date|the latest)`),
	regexp.MustCompile(`(?i)my (?:training|knowledge) (?:data|base) (?:only )?(?:goes|extends) up to`),
	regexp.MustCompile(`(?i)unable to provide real[- ]?time`),
}

// SoundsUncertain reports whether a model response admits it lacks
// current information.
func SoundsUncertain(response string) bool {
	for _, re := range uncertaintyRes {
		if re.MatchString(response) {
			return true
		}
	}
	return false
}
