package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMacros_MatchesByNutrientNumber(t *testing.T) {
	detail := &FoodDetail{
		FdcID:       1102653,
		Description: "Banana, raw",
		Nutrients: []FoodNutrient{
			{Number: "208", Name: "Energy", Amount: 89, Unit: "kcal"},
			{Number: "203", Name: "Protein", Amount: 1.1, Unit: "g"},
			{Number: "205", Name: "Carbohydrate, by difference", Amount: 22.8, Unit: "g"},
			{Number: "204", Name: "Total lipid (fat)", Amount: 0.3, Unit: "g"},
			{Number: "291", Name: "Fiber, total dietary", Amount: 2.6, Unit: "g"},
		},
	}

	macros := detail.ExtractMacros()
	assert.Equal(t, 89, macros.Calories)
	assert.Equal(t, 1.1, macros.Protein)
	assert.Equal(t, 22.8, macros.Carbs)
	assert.Equal(t, 0.3, macros.Fat)
	require.NotNil(t, macros.Fiber)
	assert.Equal(t, 2.6, *macros.Fiber)
	assert.Nil(t, macros.Sugar)
	assert.Nil(t, macros.Sodium)
}

func TestExtractMacros_FallsBackToNameMatching(t *testing.T) {
	detail := &FoodDetail{
		Nutrients: []FoodNutrient{
			{Name: "Energy", Amount: 250, Unit: "kcal"},
			{Name: "Protein", Amount: 10, Unit: "g"},
			{Name: "Carbohydrate, by difference", Amount: 30, Unit: "g"},
			{Name: "Total lipid (fat)", Amount: 8, Unit: "g"},
			{Name: "Sugars, total including NLEA", Amount: 12, Unit: "g"},
		},
	}

	macros := detail.ExtractMacros()
	assert.Equal(t, 250, macros.Calories)
	assert.Equal(t, 10.0, macros.Protein)
	assert.Equal(t, 30.0, macros.Carbs)
	assert.Equal(t, 8.0, macros.Fat)
	require.NotNil(t, macros.Sugar)
	assert.Equal(t, 12.0, *macros.Sugar)
}

func TestExtractMacros_DerivesCaloriesWhenEnergyAbsent(t *testing.T) {
	detail := &FoodDetail{
		Nutrients: []FoodNutrient{
			{Number: "203", Name: "Protein", Amount: 20, Unit: "g"},
			{Number: "205", Name: "Carbohydrate", Amount: 60, Unit: "g"},
			{Number: "204", Name: "Total lipid (fat)", Amount: 25, Unit: "g"},
		},
	}

	// 4/4/9 rule: 20*4 + 60*4 + 25*9 = 545
	assert.Equal(t, 545, detail.ExtractMacros().Calories)
}

func TestExtractMacros_FirstOccurrenceWins(t *testing.T) {
	detail := &FoodDetail{
		Nutrients: []FoodNutrient{
			{Number: "208", Name: "Energy", Amount: 100, Unit: "kcal"},
			{Number: "208", Name: "Energy", Amount: 418, Unit: "kJ"},
		},
	}
	assert.Equal(t, 100, detail.ExtractMacros().Calories)
}

func TestExtractMacros_EmptyDetail(t *testing.T) {
	macros := (&FoodDetail{}).ExtractMacros()
	assert.Equal(t, 0, macros.Calories)
	assert.Nil(t, macros.Fiber)
}
