package buildvars

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBuildDate(t *testing.T) {
	defer func(s string) { BuildDateString, BuildDate = s, nil }(BuildDateString)

	BuildDateString = "1700000000"
	parseBuildDate()
	require.NotNil(t, BuildDate)
	require.Equal(t, int64(1700000000), BuildDate.Unix())

	BuildDate = nil
	BuildDateString = "not a timestamp"
	parseBuildDate()
	require.Nil(t, BuildDate)
}
