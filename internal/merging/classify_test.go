package merging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	h := func(s string) Version { return Version{Hash: s, Present: true} }
	absent := Version{}

	tests := []struct {
		name    string
		p, c, a Version
		want    Resolution
	}{
		{"unchanged", h("1"), h("1"), h("1"), Keep},
		{"same change on both sides", h("2"), h("2"), h("1"), Keep},
		{"deleted on both sides", absent, absent, h("1"), Keep},
		{"child changed", h("1"), h("2"), h("1"), TakeChild},
		{"child added", absent, h("2"), absent, TakeChild},
		{"child deleted", h("1"), absent, h("1"), TakeChild},
		{"parent changed", h("2"), h("1"), h("1"), TakeParent},
		{"parent added", h("2"), absent, absent, TakeParent},
		{"parent deleted", absent, h("1"), h("1"), TakeParent},
		{"both changed", h("2"), h("3"), h("1"), NeedsMerge},
		{"both added differently", h("2"), h("3"), absent, NeedsMerge},
		{"modify against delete", h("2"), absent, h("1"), NeedsMerge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.p, tt.c, tt.a))
		})
	}
}

func TestResolutionString(t *testing.T) {
	assert.Equal(t, "keep", Keep.String())
	assert.Equal(t, "take-child", TakeChild.String())
	assert.Equal(t, "take-parent", TakeParent.String())
	assert.Equal(t, "needs-merge", NeedsMerge.String())
}
