package utils

import (
	"strconv"
	"strings"
)

// ParsePriceRange extracts the leading amount from a free-text price range
// like "₹500-2000" or "₹500 - ₹3000". Unparsable input ("free",
// "negotiable") yields 0 rather than an error; bookings made against such
// listings record a zero price on purpose.
func ParsePriceRange(priceRange string) float64 {
	s := strings.ReplaceAll(priceRange, "₹", "")
	s = strings.TrimSpace(strings.Split(s, "-")[0])
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return price
}
