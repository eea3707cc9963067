package identity_test

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metaco/metaco/internal/identity"
)

func TestVersion_Stamped(t *testing.T) {
	got := identity.VersionFrom("1.2.3", func() (*debug.BuildInfo, bool) {
		t.Fatal("build info should not be consulted")
		return nil, false
	})
	assert.Equal(t, "1.2.3", got)
}

func TestVersion_FromBuildInfo(t *testing.T) {
	got := identity.VersionFrom("", func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}}, true
	})
	assert.Equal(t, "v0.3.0", got)
}

func TestVersion_Fallback(t *testing.T) {
	cases := map[string]func() (*debug.BuildInfo, bool){
		"no build info": func() (*debug.BuildInfo, bool) { return nil, false },
		"devel": func() (*debug.BuildInfo, bool) {
			return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
		},
	}
	for name, read := range cases {
		assert.Equal(t, identity.DefaultVersion, identity.VersionFrom("", read), name)
	}
}

func TestGet(t *testing.T) {
	info := identity.Get("/tmp/state.json", "process")
	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, "/tmp/state.json", info.StatePath)
	assert.Equal(t, "process", info.HostMode)
}
