package schema

import (
	"strings"

	"org-restore/internal/model"
)

// Suggestion helpers used when seeding a mapping document from a
// comparison: exact matches first, then closest-name fallbacks.

// SuggestRecordType picks the target record type whose developer name or
// label best matches sourceName. Returns nil when nothing is close.
func SuggestRecordType(sourceName string, options []model.RecordTypeInfo) *model.RecordTypeInfo {
	for i := range options {
		if strings.EqualFold(options[i].DeveloperName, sourceName) {
			return &options[i]
		}
	}
	for i := range options {
		if strings.EqualFold(options[i].Name, sourceName) {
			return &options[i]
		}
	}

	best, bestScore := -1, 0.0
	for i := range options {
		score := similarity(sourceName, options[i].DeveloperName)
		if s := similarity(sourceName, options[i].Name); s > score {
			score = s
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore >= 0.6 {
		return &options[best]
	}
	return nil
}

// SuggestUser picks the target user most likely to be the same person:
// email equality, then username local-part equality, then closest full
// name. Returns nil when nothing is close.
func SuggestUser(source model.UserInfo, options []model.UserInfo) *model.UserInfo {
	if source.Email != "" {
		for i := range options {
			if strings.EqualFold(options[i].Email, source.Email) {
				return &options[i]
			}
		}
	}
	if base := usernameBase(source.Username); base != "" {
		for i := range options {
			if strings.EqualFold(usernameBase(options[i].Username), base) {
				return &options[i]
			}
		}
	}

	best, bestScore := -1, 0.0
	for i := range options {
		if score := similarity(source.Name, options[i].Name); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore >= 0.7 {
		return &options[best]
	}
	return nil
}

// SuggestPicklistValue picks the closest target value for a source
// picklist value. The boolean reports whether a suggestion was found.
func SuggestPicklistValue(sourceValue string, options []string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(opt, sourceValue) {
			return opt, true
		}
	}
	best, bestScore := "", 0.0
	for _, opt := range options {
		if score := similarity(sourceValue, opt); score > bestScore {
			best, bestScore = opt, score
		}
	}
	if bestScore >= 0.6 {
		return best, true
	}
	return "", false
}

func usernameBase(username string) string {
	if i := strings.IndexByte(username, '@'); i >= 0 {
		return username[:i]
	}
	return username
}

// similarity is 1 - normalized Levenshtein distance, case-insensitive.
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
