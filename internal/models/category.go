package models

// Categories are the labels offered when recording an expense. The stores
// accept any category string; this list only drives presentation.
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Housing",
	"Utilities",
	"Entertainment",
	"Healthcare",
	"Shopping",
	"Personal Care",
	"Education",
	"Travel",
	"Gifts & Donations",
	"Other",
}

// DefaultCategory is preselected for new expenses.
var DefaultCategory = Categories[0]

// IsKnownCategory reports whether c is one of Categories (exact match).
func IsKnownCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
