package masterdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitLabel(t *testing.T) {
	assert.Equal(t, "packs", UnitPack.Label())
	assert.Equal(t, "kg", UnitKilos.Label())
	assert.Equal(t, "ton", Unit("ton").Label())
}
