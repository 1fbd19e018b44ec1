package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackPaymentDescriptionRoundTrip(t *testing.T) {
	desc := BackPaymentDescription("Tuition Fee", 2, 3)
	assert.Equal(t, "Back Payment: Tuition Fee (Grade 2 → 3)", desc)

	ref, ok := ParseBackPaymentDescription(desc)
	require.True(t, ok)
	assert.Equal(t, "Tuition Fee", ref.ChargeName)
	assert.Equal(t, 2, ref.OriginalGrade)
	assert.Equal(t, 3, ref.CurrentGrade)
}

func TestBackPaymentDescriptionKeepsParentheses(t *testing.T) {
	desc := BackPaymentDescription("Lab Fee (Science)", 5, 6)

	ref, ok := ParseBackPaymentDescription(desc)
	require.True(t, ok)
	assert.Equal(t, "Lab Fee (Science)", ref.ChargeName)
}

func TestParseBackPaymentDescriptionRejectsOtherLines(t *testing.T) {
	for _, desc := range []string{
		"",
		"Tuition Fee",
		"Back Payment: Tuition Fee",
		"Back Payment: Tuition Fee (Grade two → three)",
		"Registration discount (Grade 1 → 2)",
	} {
		_, ok := ParseBackPaymentDescription(desc)
		assert.False(t, ok, "expected %q to be rejected", desc)
	}
}
