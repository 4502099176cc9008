package models

var BaseSymbols = []string{"🍒", "🍋", "🍊", "🍇", "🔔", "💎", "🍀"}

const (
	WildSymbol    = "⭐"
	ScatterSymbol = "💰"
)

// AllReelSymbols is the full alphabet a reel can show, specials included.
var AllReelSymbols = append(append([]string{}, BaseSymbols...), WildSymbol, ScatterSymbol)

func IsReelSymbol(s string) bool {
	for _, sym := range AllReelSymbols {
		if sym == s {
			return true
		}
	}
	return false
}
