package dnsthreat

import (
	"math"
	"strings"

	"github.com/activecm/threatfuse/util"
)

// normalizedEntropy is the character entropy of s relative to the maximum
// possible for a string of its length
func normalizedEntropy(s string) float64 {
	if len(s) < 2 {
		return 0
	}
	max := math.Log2(float64(len(s)))
	return util.Clamp01(util.ShannonEntropy(s) / max)
}

// bigramFrequency is the average English frequency, in percent, of the
// letter pairs of s. Pairs containing a non letter count as 0.
func bigramFrequency(s string) float64 {
	if len(s) < 2 {
		return 0
	}
	total := 0.0
	for i := 0; i < len(s)-1; i++ {
		total += englishBigrams[s[i:i+2]]
	}
	return total / float64(len(s)-1)
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// consonantVowelRatio counts letters only. A label with consonants and no
// vowels returns the consonant count so it saturates the score.
func consonantVowelRatio(s string) float64 {
	vowels, consonants := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'a' || c > 'z' {
			continue
		}
		if isVowel(c) {
			vowels++
		} else {
			consonants++
		}
	}
	if vowels == 0 {
		return float64(consonants)
	}
	return float64(consonants) / float64(vowels)
}

func digitRatio(s string) float64 {
	if len(s) == 0 {
		return 0
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits++
		}
	}
	return float64(digits) / float64(len(s))
}

// recognizableWord returns the first dictionary word found in s
func recognizableWord(s string) string {
	for _, word := range recognizableWords {
		if strings.Contains(s, word) {
			return word
		}
	}
	return ""
}

// stripDots removes the label separators of a subdomain
func stripDots(s string) string {
	return strings.ReplaceAll(s, ".", "")
}

// isUnusualType reports whether qtype falls outside the everyday record types
func isUnusualType(qtype string) bool {
	if qtype == "" {
		return false
	}
	_, ok := standardQueryTypes[strings.ToUpper(qtype)]
	return !ok
}
