package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"scrape_latest", "scrape_backfill", "notifications", "q1"} {
		require.NoError(t, ValidateName(name))
	}
	for _, name := range []string{"", "1leading", "has space", "semi;colon", "UPPER", "dash-ed"} {
		require.Error(t, ValidateName(name), name)
	}
}
