package custom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDatetimeJSONRoundTrip(t *testing.T) {
	d := Datetime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))

	got, err := d.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"2024-05-01T12:30:00Z"`, string(got))

	var back Datetime
	require.NoError(t, back.UnmarshalJSON(got))
	require.True(t, time.Time(d).Equal(time.Time(back)))
}

func TestDatetimeMarshalZero(t *testing.T) {
	var d Datetime
	got, err := d.MarshalJSON()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDatetimeString(t *testing.T) {
	d := Datetime(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))
	require.Equal(t, "2024-05-01T12:30:00Z", d.String())
}
