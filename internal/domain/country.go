package domain

// alpha3 maps ISO 3166-1 alpha-2 codes to alpha-3 for the countries the
// consumer scripts segment on.
var alpha3 = map[string]string{
	"US": "USA",
	"CA": "CAN",
	"MX": "MEX",
	"GB": "GBR",
	"FR": "FRA",
	"DE": "DEU",
	"JP": "JPN",
	"CN": "CHN",
	"IN": "IND",
	"BR": "BRA",
	"AU": "AUS",
	"RU": "RUS",
	"IT": "ITA",
	"ES": "ESP",
	"KR": "KOR",
	"NL": "NLD",
	"SE": "SWE",
	"NO": "NOR",
	"DK": "DNK",
	"FI": "FIN",
}

// NormalizeCountryCode converts a two-letter code to its three-letter form.
// Codes missing from the table pass through unchanged.
func NormalizeCountryCode(code string) string {
	if v, ok := alpha3[code]; ok {
		return v
	}
	return code
}
