// utils/validation.go
package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return phonePattern.MatchString(cleaned)
}

// ValidateLeadTimes rejects negative and repeated values.
func ValidateLeadTimes(values []int) error {
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if v < 0 {
			return fmt.Errorf("notification timing must not be negative: %d", v)
		}
		if _, ok := seen[v]; ok {
			return fmt.Errorf("duplicate notification timing: %d", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func Contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
