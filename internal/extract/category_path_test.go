package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategoryPath_SlashSeparated(t *testing.T) {
	assert.Equal(t, []string{"Electronics", "Laptops", "Gaming"}, ParseCategoryPath("Electronics/Laptops/Gaming"))
}

func TestParseCategoryPath_ChevronSeparated(t *testing.T) {
	assert.Equal(t, []string{"Electronics", "Bikes"}, ParseCategoryPath("Electronics > Bikes"))
}

func TestParseCategoryPath_SlashTakesPriorityOverChevron(t *testing.T) {
	assert.Equal(t, []string{"A", "B > C"}, ParseCategoryPath("A/B > C"))
}

func TestParseCategoryPath_SingleCategoryNoSeparator(t *testing.T) {
	assert.Equal(t, []string{"Simple Category"}, ParseCategoryPath("Simple Category"))
}

func TestParseCategoryPath_EmptyStringReturnsNil(t *testing.T) {
	assert.Nil(t, ParseCategoryPath(""))
}

func TestParseCategoryPath_ArrayInput(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, ParseCategoryPath([]any{"A", " B "}))
}

func TestParseCategoryPath_DropsEmptyEntries(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, ParseCategoryPath("A//B"))
}
