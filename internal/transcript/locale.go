package transcript

// DefaultLocale is used for countries without an entry.
const DefaultLocale = "en-US"

var countryLocales = map[string]string{
	"United States":  "en-US",
	"United Kingdom": "en-GB",
	"Canada":         "en-CA",
	"Australia":      "en-AU",
	"India":          "en-IN",
	"South Africa":   "en-ZA",
	"Sri Lanka":      "si-LK",
}

// Locale maps a persona's country to the recognition locale.
func Locale(country string) string {
	if l, ok := countryLocales[country]; ok {
		return l
	}
	return DefaultLocale
}

// Countries lists the countries with a known locale.
func Countries() []string {
	return []string{"United States", "United Kingdom", "Canada", "Australia", "India", "South Africa", "Sri Lanka"}
}
