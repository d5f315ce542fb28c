package booking

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenJSONUsesSectionNames(t *testing.T) {
	screen := Screen{
		Section:       SectionDateTimeSelection,
		DateTimePanel: true,
		Dates:         []Option{{Key: "2024-06-01", Label: "today", Selected: true}},
	}
	data, err := json.Marshal(screen)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"section":"date_time_selection"`)

	var decoded Screen
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, SectionDateTimeSelection, decoded.Section)
	assert.Equal(t, screen.Dates, decoded.Dates)

	var bad Section
	assert.Error(t, json.Unmarshal([]byte(`"checkout"`), &bad))
}

func TestSectionString(t *testing.T) {
	assert.Equal(t, "service_selection", SectionServiceSelection.String())
	assert.Equal(t, "section(7)", Section(7).String())
}
