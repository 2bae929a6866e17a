package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/ims_phone/internal/config"
)

func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("SIP_USER", "alice")
	t.Setenv("SIP_DOMAIN", "ims.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setBase(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "udp", cfg.SIP.Transport)
	assert.Equal(t, 5060, cfg.SIP.LocalPort)
	assert.Equal(t, 32*time.Second, cfg.SIP.TxTimeout)
	assert.Equal(t, 3600, cfg.Presence.PublishExpires)
	assert.Equal(t, time.Minute, cfg.Presence.CheckInterval)
	assert.Equal(t, "sip:alice_rcs_list@ims.example.com", cfg.Presence.RLSURI)
	assert.Equal(t, "alice", cfg.XDM.User)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)

	rls, err := cfg.RLS()
	require.NoError(t, err)
	assert.Equal(t, "alice_rcs_list", rls.User)

	cfg.Presence.RLSURI = "alice_rcs_list"
	_, err = cfg.RLS()
	assert.ErrorIs(t, err, config.ErrInvalid)
	cfg.Presence.RLSURI = "sip:alice_rcs_list@ims.example.com"
	identity := cfg.Identity()
	assert.Equal(t, "sip:alice@ims.example.com", identity.String())

	caps := cfg.Capabilities()
	assert.True(t, caps.IMSession)
	assert.True(t, caps.FileTransfer)
	assert.True(t, caps.PresenceDiscovery)
	assert.False(t, caps.VideoShare)

	stack := cfg.StackConfig()
	assert.Equal(t, "ims.example.com", stack.Domain)
	assert.NoError(t, stack.Validate())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "SIP_USER=bob\n" +
		"SIP_DOMAIN=rcs.example.org\n" +
		"SIP_TRANSPORT=TCP\n" +
		"SIP_FEATURE_TAGS=+g.oma.sip-im, ,+g.3gpp.cs-voice\n" +
		"PRESENCE_PERMANENT_STATE=yes\n" +
		"PRESENCE_CHECK_INTERVAL=30s\n" +
		"XDM_ROOT_URL=https://xdms.rcs.example.org/services\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"SIP_USER", "SIP_DOMAIN", "SIP_TRANSPORT", "SIP_FEATURE_TAGS",
			"PRESENCE_PERMANENT_STATE", "PRESENCE_CHECK_INTERVAL", "XDM_ROOT_URL"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.SIP.User)
	assert.Equal(t, "tcp", cfg.SIP.Transport)
	assert.Equal(t, []string{"+g.oma.sip-im", "+g.3gpp.cs-voice"}, cfg.SIP.FeatureTags)
	assert.True(t, cfg.Presence.PermanentState)
	assert.Equal(t, 30*time.Second, cfg.Presence.CheckInterval)
	assert.Equal(t, "https://xdms.rcs.example.org/services", cfg.XDM.RootURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing domain", map[string]string{"SIP_DOMAIN": ""}},
		{"bad transport", map[string]string{"SIP_TRANSPORT": "sctp"}},
		{"zero publish expires", map[string]string{"PRESENCE_PUBLISH_EXPIRES": "0"}},
		{"negative check interval", map[string]string{"PRESENCE_CHECK_INTERVAL": "-1s"}},
		{"relative xdm url", map[string]string{"XDM_ROOT_URL": "xdms/services"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"unknown capability", map[string]string{"PRESENCE_CAPABILITIES": "im,fax"}},
		{"rls uri without host", map[string]string{"PRESENCE_RLS_URI": "sip:list@"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBase(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}
