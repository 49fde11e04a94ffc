package logformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/noteid"
)

func TestLogFilename_ParseRoundTrip(t *testing.T) {
	profile := noteid.New()
	instance := noteid.New()

	name := LogFilename(profile, instance, 1700000000000)

	parsed, ok := ParseFilename(name)
	require.True(t, ok)
	assert.Equal(t, KindLog, parsed.Kind)
	assert.True(t, profile.Equal(parsed.ProfileID))
	assert.True(t, instance.Equal(parsed.InstanceID))
	assert.Equal(t, int64(1700000000000), parsed.CreatedMs)
}

func TestSnapshotFilename_ParseRoundTrip(t *testing.T) {
	profile := noteid.New()
	instance := noteid.New()

	name := SnapshotFilename(profile, instance, 42)

	parsed, ok := ParseFilename(name)
	require.True(t, ok)
	assert.Equal(t, KindSnapshot, parsed.Kind)
	assert.Equal(t, int64(42), parsed.CreatedMs)
}

func TestActivityFilename_ParseRoundTrip(t *testing.T) {
	profile := noteid.New()
	instance := noteid.New()

	name := ActivityFilename(profile, instance)

	parsed, ok := ParseFilename(name)
	require.True(t, ok)
	assert.Equal(t, KindActivityOrDeletion, parsed.Kind)
	assert.True(t, profile.Equal(parsed.ProfileID))
	assert.True(t, instance.Equal(parsed.InstanceID))
}

func TestParseFilename_LegacyInstanceOnlyLog(t *testing.T) {
	instance := noteid.New()

	parsed, ok := ParseFilename(instance.String() + ".log")
	require.True(t, ok)
	assert.Equal(t, KindActivityOrDeletion, parsed.Kind)
	assert.True(t, instance.Equal(parsed.InstanceID))
	assert.True(t, parsed.ProfileID.IsNil())
}

func TestParseFilename_UnknownExtensionIgnored(t *testing.T) {
	_, ok := ParseFilename("meta.json")
	assert.False(t, ok)
}

func TestParseFilename_GarbageCrdtlogIgnored(t *testing.T) {
	_, ok := ParseFilename("not-an-id_also-not_123.crdtlog")
	assert.False(t, ok)
}

func TestParseFilename_CompactIDsWithUnderscoresDoNotConfuseSplit(t *testing.T) {
	// Regression guard: the base64url alphabet includes '_', so a
	// profile/instance id can itself contain the filename separator
	// byte. Parsing must rely on fixed field widths, not a '_'-split.
	for i := 0; i < 200; i++ {
		profile := noteid.New()
		instance := noteid.New()

		name := LogFilename(profile, instance, 123)

		parsed, ok := ParseFilename(name)
		if !ok {
			continue
		}

		assert.True(t, profile.Equal(parsed.ProfileID))
		assert.True(t, instance.Equal(parsed.InstanceID))
	}
}
