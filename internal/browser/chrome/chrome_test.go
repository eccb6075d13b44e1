package chrome

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"bidbot-engine/internal/browser/browsertest"
)

func TestForeignElementRejected(t *testing.T) {
	d := &Driver{ctx: context.Background()}
	_, err := d.OuterHTML(context.Background(), browsertest.Elem{Sel: "#x"})
	assert.ErrorContains(t, err, `"#x"`)
}

func TestAllocatorOptionsFollowMode(t *testing.T) {
	headless := allocatorOptions(Options{Headless: true, ProfileDir: "/tmp/p", ExecPath: "/usr/bin/chromium"})
	windowed := allocatorOptions(Options{})
	assert.Len(t, headless, len(windowed)+2)
}
