package fst

// Symbol is a named stimulus or response token carrying a scalar strength.
type Symbol struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Epsilon is the "no input" symbol.
var Epsilon = Symbol{}

func NewSymbol(name string, value float64) Symbol {
	return Symbol{Name: name, Value: value}
}

func (s Symbol) IsEpsilon() bool {
	return s.Name == Epsilon.Name
}

func symbolNames(symbols []Symbol) map[string]struct{} {
	names := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		names[symbol.Name] = struct{}{}
	}
	return names
}

// dominantSymbol returns the strongest symbol; earlier symbols win ties and
// an empty batch yields Epsilon.
func dominantSymbol(symbols []Symbol) Symbol {
	if len(symbols) == 0 {
		return Epsilon
	}
	strongest := symbols[0]
	for _, symbol := range symbols[1:] {
		if symbol.Value > strongest.Value {
			strongest = symbol
		}
	}
	return strongest
}
