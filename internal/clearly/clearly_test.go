package clearly_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/clearly/internal/clearly"
)

func TestNewToken(t *testing.T) {
	tok := clearly.NewToken(64)
	assert.Len(t, tok, 64)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, tok)
	assert.NotEqual(t, tok, clearly.NewToken(64))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, clearly.ValidEmail("sam@example.com"))
	assert.False(t, clearly.ValidEmail("sam@example"))
	assert.False(t, clearly.ValidEmail("sam example@x.com"))
	assert.False(t, clearly.ValidEmail(""))
}

func TestTimestampRoundTrip(t *testing.T) {
	orig := clearly.At(time.Date(2024, 12, 1, 10, 30, 0, 500, time.FixedZone("x", 3600)))

	v, err := orig.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-12-01T09:30:00.000000500Z", v)

	var got clearly.Timestamp
	require.NoError(t, got.Scan(v))
	assert.True(t, orig.Equal(got.Time))
}

func TestTimestampSortsAsText(t *testing.T) {
	early, _ := clearly.At(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)).Value()
	late, _ := clearly.At(time.Date(2024, 1, 1, 0, 0, 5, 1000, time.UTC)).Value()

	assert.Less(t, early.(string), late.(string))
}

func TestEventMetadata(t *testing.T) {
	md := clearly.ClaimedMetadata("Sam")
	require.NotNil(t, md.ClaimedBy())
	assert.Equal(t, "Sam", *md.ClaimedBy())

	v, err := md.Value()
	require.NoError(t, err)

	var scanned clearly.EventMetadata
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, md, scanned)

	var empty clearly.EventMetadata
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty.ClaimedBy())
}

func TestLinks(t *testing.T) {
	l := clearly.Links{AppURL: "https://clearly.gift/"}

	assert.Equal(t, "https://clearly.gift/list/abc123", l.List(clearly.List{Token: "abc123"}))
	assert.Equal(t, "https://clearly.gift/unsubscribe?token=u1", l.Unsubscribe("u1"))
	assert.Equal(t, "https://clearly.gift/verify-subscription?token=v1", l.Verify("v1"))
	assert.Equal(t, "https://clearly.gift/verify-subscription-success", l.VerifySuccess())
}
