package domain

import "strings"

// RegionConfig maps a search region to provider country/language codes.
type RegionConfig struct {
	Country  string
	Language string
	Label    string
}

// Regions lists the standard English-language search configurations.
var Regions = map[string]RegionConfig{
	"global":        {Country: "us", Language: "en", Label: "global"},
	"mena":          {Country: "ae", Language: "en", Label: "mena"},
	"europe":        {Country: "gb", Language: "en", Label: "europe"},
	"north_america": {Country: "us", Language: "en", Label: "north_america"},
	"apac":          {Country: "sg", Language: "en", Label: "apac"},
}

// RegionOrDefault resolves a region key, falling back to global.
func RegionOrDefault(key string) RegionConfig {
	if cfg, ok := Regions[key]; ok {
		return cfg
	}
	return Regions["global"]
}

// nativeRegions keys native-language search configs by lowercase country name
// matched against the competitor's headquarters string.
var nativeRegions = map[string]RegionConfig{
	"france":      {Country: "fr", Language: "fr", Label: "france_fr"},
	"germany":     {Country: "de", Language: "de", Label: "germany_de"},
	"spain":       {Country: "es", Language: "es", Label: "spain_es"},
	"norway":      {Country: "no", Language: "no", Label: "norway_no"},
	"denmark":     {Country: "dk", Language: "da", Label: "denmark_da"},
	"finland":     {Country: "fi", Language: "fi", Label: "finland_fi"},
	"sweden":      {Country: "se", Language: "sv", Label: "sweden_sv"},
	"switzerland": {Country: "ch", Language: "de", Label: "switzerland_de"},
	"netherlands": {Country: "nl", Language: "nl", Label: "netherlands_nl"},
	"italy":       {Country: "it", Language: "it", Label: "italy_it"},
	"israel":      {Country: "il", Language: "iw", Label: "israel_iw"},
	"south korea": {Country: "kr", Language: "ko", Label: "korea_ko"},
	"korea":       {Country: "kr", Language: "ko", Label: "korea_ko"},
	"japan":       {Country: "jp", Language: "ja", Label: "japan_ja"},
	"hong kong":   {Country: "hk", Language: "zh-tw", Label: "hongkong_zh"},
	"china":       {Country: "cn", Language: "zh-cn", Label: "china_zh"},
	"poland":      {Country: "pl", Language: "pl", Label: "poland_pl"},
	"brazil":      {Country: "br", Language: "pt", Label: "brazil_pt"},
	"portugal":    {Country: "pt", Language: "pt", Label: "portugal_pt"},
	"russia":      {Country: "ru", Language: "ru", Label: "russia_ru"},
	"turkey":      {Country: "tr", Language: "tr", Label: "turkey_tr"},
}

// englishSpeakingHQ lists countries where English coverage is sufficient and
// no native-language search is needed.
var englishSpeakingHQ = []string{
	"uk", "usa", "canada", "australia", "ireland", "new zealand", "singapore",
}

// NativeRegionFor returns the native-language search config implied by a
// headquarters string, or nil for English-speaking or unknown locations.
func NativeRegionFor(headquarters string) *RegionConfig {
	if headquarters == "" {
		return nil
	}
	hq := strings.ToLower(headquarters)
	for _, eng := range englishSpeakingHQ {
		if strings.Contains(hq, eng) {
			return nil
		}
	}
	for country, cfg := range nativeRegions {
		if strings.Contains(hq, country) {
			c := cfg
			return &c
		}
	}
	return nil
}
