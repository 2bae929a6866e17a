package auth

import (
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/icholy/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPublish() *sip.Request {
	aor := sip.Uri{Scheme: "sip", User: "alice", Host: "ims.example.com"}
	req := sip.NewRequest(sip.PUBLISH, aor)
	req.AppendHeader(&sip.FromHeader{Address: aor, Params: sip.HeaderParams{"tag": "a1"}})
	req.AppendHeader(&sip.ToHeader{Address: aor, Params: sip.NewParams()})
	callID := sip.CallIDHeader("publish-1@ims.example.com")
	req.AppendHeader(&callID)
	req.AppendHeader(&sip.CSeqHeader{SeqNo: 1, MethodName: sip.PUBLISH})
	return req
}

func challengeResponse(req *sip.Request, code int, header, value string) *sip.Response {
	resp := sip.NewResponseFromRequest(req, code, "Auth", nil)
	if header != "" {
		resp.AppendHeader(sip.NewHeader(header, value))
	}
	return resp
}

func TestAgent_ReadChallengeIgnoresOtherStatus(t *testing.T) {
	a := NewAgent("alice@ims.example.com", "secret")
	req := newPublish()

	require.NoError(t, a.ReadChallenge(sip.NewResponseFromRequest(req, 200, "OK", nil)))
	require.NoError(t, a.ReadChallenge(sip.NewResponseFromRequest(req, 403, "Forbidden", nil)))
	require.NoError(t, a.ReadChallenge(nil))
	assert.False(t, a.HasChallenge())

	// stamp без challenge ничего не добавляет
	require.NoError(t, a.StampCredentials(req))
	assert.Nil(t, req.GetHeader("Authorization"))
}

func TestAgent_ProxyChallenge(t *testing.T) {
	a := NewAgent("alice@ims.example.com", "secret")
	req := newPublish()

	resp := challengeResponse(req, 407, "Proxy-Authenticate",
		`Digest realm="ims.example.com", nonce="abc123", algorithm=MD5, qop="auth"`)
	require.NoError(t, a.ReadChallenge(resp))
	assert.True(t, a.HasChallenge())
	assert.Equal(t, []string{"ims.example.com"}, a.Realms())

	require.NoError(t, a.StampCredentials(req))
	assert.Nil(t, req.GetHeader("Authorization"))

	h := req.GetHeader("Proxy-Authorization")
	require.NotNil(t, h)
	cred, err := digest.ParseCredentials(h.Value())
	require.NoError(t, err)
	assert.Equal(t, "alice@ims.example.com", cred.Username)
	assert.Equal(t, "ims.example.com", cred.Realm)
	assert.Equal(t, "abc123", cred.Nonce)
	assert.Equal(t, "sip:alice@ims.example.com", cred.URI)
	assert.Equal(t, 1, cred.Nc)

	// повторная подпись: заголовок заменяется, nonce count растет
	require.NoError(t, a.StampCredentials(req))
	assert.Len(t, req.GetHeaders("Proxy-Authorization"), 1)
	cred, err = digest.ParseCredentials(req.GetHeader("Proxy-Authorization").Value())
	require.NoError(t, err)
	assert.Equal(t, 2, cred.Nc)
}

func TestAgent_WWWChallenge(t *testing.T) {
	a := NewAgent("alice@ims.example.com", "secret")
	req := newPublish()

	resp := challengeResponse(req, 401, "WWW-Authenticate",
		`Digest realm="scscf.ims.example.com", nonce="n1", algorithm=MD5`)
	require.NoError(t, a.ReadChallenge(resp))
	require.NoError(t, a.StampCredentials(req))

	h := req.GetHeader("Authorization")
	require.NotNil(t, h)
	assert.Contains(t, h.Value(), `realm="scscf.ims.example.com"`)
	assert.Contains(t, h.Value(), `nonce="n1"`)

	a.Reset()
	assert.False(t, a.HasChallenge())
	assert.Empty(t, a.Realms())
}

func TestAgent_Errors(t *testing.T) {
	req := newPublish()

	a := NewAgent("alice", "secret")
	err := a.ReadChallenge(challengeResponse(req, 401, "", ""))
	assert.ErrorIs(t, err, ErrNoChallenge)

	err = a.ReadChallenge(challengeResponse(req, 401, "WWW-Authenticate", "Basic realm=x"))
	assert.ErrorIs(t, err, ErrInvalidChallenge)

	anon := NewAgent("", "")
	require.NoError(t, anon.ReadChallenge(challengeResponse(req, 401, "WWW-Authenticate",
		`Digest realm="r", nonce="n"`)))
	assert.ErrorIs(t, anon.StampCredentials(req), ErrNoCredentials)
}
