package helpers

import "fmt"

// FormatRupiah formats a number as Indonesian Rupiah currency
func FormatRupiah(amount float64) string {
	value := int64(amount)

	negative := value < 0
	if negative {
		value = -value
	}

	formatted := groupThousands(value)
	if negative {
		return fmt.Sprintf("Rp -%s", formatted)
	}
	return fmt.Sprintf("Rp %s", formatted)
}

// FormatThousands formats a quantity with dots as thousand separators
func FormatThousands(quantity float64) string {
	value := int64(quantity)

	negative := value < 0
	if negative {
		value = -value
	}

	formatted := groupThousands(value)
	if negative {
		return "-" + formatted
	}
	return formatted
}

// groupThousands inserts dots as thousand separators (Indonesian convention)
func groupThousands(value int64) string {
	str := fmt.Sprintf("%d", value)
	length := len(str)

	if length <= 3 {
		return str
	}

	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += "."
		}
		result += string(digit)
	}
	return result
}
