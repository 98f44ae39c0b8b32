package utils

import (
	"regexp"
	"strconv"
)

// CleanRUC removes all non-numeric characters from a RUC or cédula
func CleanRUC(ruc string) string {
	// Remove all non-numeric characters
	re := regexp.MustCompile(`\D`)
	return re.ReplaceAllString(ruc, "")
}

// IsValidRUC validates an Ecuadorian RUC (13 digits) or cédula (10 digits).
// A RUC for natural persons is the cédula followed by the establishment
// suffix, conventionally "001".
func IsValidRUC(ruc string) bool {
	cleaned := CleanRUC(ruc)

	switch len(cleaned) {
	case 10:
		return isValidCedula(cleaned)
	case 13:
		if cleaned[10:] == "000" {
			return false
		}
		// Sociedades (third digit 6 or 9) use different check algorithms the
		// portal itself enforces; only the natural-person form is checked here.
		third := cleaned[2]
		if third == '6' || third == '9' {
			return isAllDigits(cleaned)
		}
		return isValidCedula(cleaned[:10])
	default:
		return false
	}
}

// isValidCedula validates the cédula check digit (modulo 10, weights 2-1
// alternating, two-digit products reduced by 9).
func isValidCedula(cedula string) bool {
	if len(cedula) != 10 || !isAllDigits(cedula) {
		return false
	}

	// Province code 01..24 (30 reserved for ecuatorianos en el exterior)
	province, _ := strconv.Atoi(cedula[:2])
	if (province < 1 || province > 24) && province != 30 {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		digit := int(cedula[i] - '0')
		if i%2 == 0 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}

	check := (10 - sum%10) % 10
	return check == int(cedula[9]-'0')
}

func isAllDigits(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, char := range s {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}
