package data

import "sort"

// StringSet is a set of strings
type StringSet map[string]struct{}

// Items returns the strings in the set as a sorted slice.
func (s StringSet) Items() []string {
	retVal := make([]string, 0, len(s))
	for str := range s {
		retVal = append(retVal, str)
	}
	sort.Strings(retVal)
	return retVal
}

// Insert adds strings to the set, ignoring empty ones
func (s StringSet) Insert(strs ...string) {
	for _, str := range strs {
		if str != "" {
			s[str] = struct{}{}
		}
	}
}

// Contains checks if a given string is in the set
func (s StringSet) Contains(str string) bool {
	_, ok := s[str]
	return ok
}
