package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{"empty requirement", nil, "", true},
		{"nothing granted", nil, BinsLevelWrite, false},
		{"exact", []string{BinsLevelWrite}, BinsLevelWrite, true},
		{"full access", []string{"*"}, BinsLevelWrite, true},
		{"resource wildcard", []string{"bins.*"}, BinsLevelWrite, true},
		{"nested wildcard", []string{"bins.level.*"}, BinsLevelWrite, true},
		{"nested wildcard does not widen", []string{"bins.level.*"}, BinsRead, false},
		{"prefix is not a wildcard", []string{"bins"}, BinsRead, false},
		{"similar resource", []string{"binsx.*"}, BinsRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.granted, tt.required))
		})
	}
}

func TestHasAllPermissions(t *testing.T) {
	assert.True(t, HasAllPermissions([]string{"bins.*"}, []string{BinsRead, BinsLevelWrite}))
	assert.False(t, HasAllPermissions([]string{BinsRead}, []string{BinsRead, BinsLevelWrite}))
}

func TestMergePermissions_Dedupes(t *testing.T) {
	got := MergePermissions([]string{BinsRead, BinsLevelWrite}, []string{BinsRead, "*"})
	assert.Equal(t, []string{BinsRead, BinsLevelWrite, "*"}, got)
}

func TestIsValidPermission(t *testing.T) {
	assert.True(t, IsValidPermission("*"))
	assert.True(t, IsValidPermission(BinsLevelWrite))
	assert.True(t, IsValidPermission("bins.lid.open"))
	assert.False(t, IsValidPermission("bins"))
	assert.False(t, IsValidPermission("bins..write"))
}

func TestPolicy_Allows(t *testing.T) {
	policy, err := NewPolicy(map[string][]string{
		"Gateway-North": {BinsLevelWrite},
		"importer":      {"bins.*"},
		"*":             {BinsRead},
	})
	require.NoError(t, err)

	assert.True(t, policy.Allows("gateway-north", BinsLevelWrite))
	assert.True(t, policy.Allows("importer", BinsLevelWrite))
	assert.False(t, policy.Allows("gateway-south", BinsLevelWrite))
	assert.True(t, policy.Allows("gateway-south", BinsRead))
}

func TestPolicy_NilDeniesEverything(t *testing.T) {
	var policy *Policy
	assert.False(t, policy.Allows("gateway-north", BinsRead))
}

func TestNewPolicy_RejectsMalformedPermission(t *testing.T) {
	_, err := NewPolicy(map[string][]string{"gateway": {"write"}})
	assert.Error(t, err)
}
