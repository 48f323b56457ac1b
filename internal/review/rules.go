package review

// ratingCategories use the percentage agree protocol. Matching is exact.
// "Mannual Sweeping" is how the task catalog spells manual sweeping.
var ratingCategories = map[string]struct{}{
	"Manual Sweeping":     {},
	"Mannual Sweeping":    {},
	"Mechanical Sweeping": {},
}

// Percentages lists the ratings a reviewer can pick.
var Percentages = []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

func IsRatingCategory(category string) bool {
	_, ok := ratingCategories[category]
	return ok
}

func ValidRating(percent int) bool {
	return percent >= 10 && percent <= 100 && percent%10 == 0
}
