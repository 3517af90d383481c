package dtanet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tm, err := ParseTime("07:30")
	require.NoError(t, err)
	assert.Equal(t, NewTime(7, 30, 0), tm)
	assert.Equal(t, 7, tm.Hour())
	assert.Equal(t, 30, tm.Minute())
	assert.Equal(t, "07:30", tm.String())

	tm, err = ParseTime(" 17:05:09 ")
	require.NoError(t, err)
	assert.Equal(t, 9, tm.Second())
	assert.Equal(t, "17:05:09", tm.StringWithSeconds())

	for _, bad := range []string{"", "7", "07:60", "07:30:75", "aa:bb", "07:30:00:00", "-1:00"} {
		_, err := ParseTime(bad)
		assert.Error(t, err, "time '%s' must not be parsed", bad)
		assert.True(t, IsDtaError(err))
	}
}

func TestTimeArithmetic(t *testing.T) {
	start := NewTime(6, 0, 0)
	end := start.AddMinutes(150)
	assert.Equal(t, "08:30", end.String())
	assert.Equal(t, 150.0, end.Sub(start))
	assert.Equal(t, -150.0, start.Sub(end))
	assert.Equal(t, 510.0, end.InMinutes())
	assert.Equal(t, TimeFromMinutes(510), end)
	assert.Equal(t, 0.5, start.AddSeconds(30).Sub(start))
}
