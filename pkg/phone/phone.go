// Package phone validates dialable phone numbers.
package phone

// Valid reports whether s has an international phone number shape:
// an optional leading +, a non-zero first digit, and 2 to 15 digits
// total. Common grouping characters (spaces, dashes, dots and
// parentheses) are ignored. Anything else makes the number invalid.
func Valid(s string) bool {
	digits := make([]byte, 0, len(s))
	plus := false

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c == '+':
			// A single sign, before any digit.
			if plus || len(digits) > 0 {
				return false
			}
			plus = true
		case c == ' ' || c == '-' || c == '.' || c == '(' || c == ')':
			// grouping noise
		default:
			return false
		}
	}

	if len(digits) < 2 || len(digits) > 15 {
		return false
	}
	return digits[0] != '0'
}
