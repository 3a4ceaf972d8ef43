package providers

import (
	"strings"
)

// MacroNutrients is the per-100g macro set extracted from a food detail
// record. Calories are derived with the 4/4/9 rule when the energy
// nutrient is not directly reported.
type MacroNutrients struct {
	Calories int
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    *float64
	Sugar    *float64
	Sodium   *float64
}

// nutrient-name fragments used when a record lacks nutrient numbers
var nutrientNameMatch = map[string]string{
	NutrientNumberEnergy:  "energy",
	NutrientNumberProtein: "protein",
	NutrientNumberCarbs:   "carbohydrate",
	NutrientNumberFat:     "total lipid",
	NutrientNumberFiber:   "fiber",
	NutrientNumberSugar:   "sugars",
	NutrientNumberSodium:  "sodium",
}

// ExtractMacros pulls the tracked nutrients out of a detail record,
// matching by nutrient number first and by name as a fallback.
func (d *FoodDetail) ExtractMacros() MacroNutrients {
	values := map[string]float64{}
	found := map[string]bool{}

	for _, n := range d.Nutrients {
		number := n.Number
		if number == "" || !isTracked(number) {
			number = matchByName(n.Name)
		}
		if number == "" || found[number] {
			continue
		}
		values[number] = n.Amount
		found[number] = true
	}

	macros := MacroNutrients{
		Protein: values[NutrientNumberProtein],
		Carbs:   values[NutrientNumberCarbs],
		Fat:     values[NutrientNumberFat],
	}
	if found[NutrientNumberEnergy] {
		macros.Calories = int(values[NutrientNumberEnergy])
	} else {
		macros.Calories = int(macros.Protein*4 + macros.Carbs*4 + macros.Fat*9)
	}
	if found[NutrientNumberFiber] {
		v := values[NutrientNumberFiber]
		macros.Fiber = &v
	}
	if found[NutrientNumberSugar] {
		v := values[NutrientNumberSugar]
		macros.Sugar = &v
	}
	if found[NutrientNumberSodium] {
		v := values[NutrientNumberSodium]
		macros.Sodium = &v
	}
	return macros
}

func isTracked(number string) bool {
	switch number {
	case NutrientNumberEnergy, NutrientNumberProtein, NutrientNumberCarbs,
		NutrientNumberFat, NutrientNumberFiber, NutrientNumberSugar, NutrientNumberSodium:
		return true
	}
	return false
}

func matchByName(name string) string {
	lower := strings.ToLower(name)
	for number, fragment := range nutrientNameMatch {
		if strings.Contains(lower, fragment) {
			return number
		}
	}
	return ""
}
