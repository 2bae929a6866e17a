package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMSRPOffer(t *testing.T) {
	body, err := BuildMSRPOffer(MSRPOffer{
		Host:           "192.0.2.10",
		Port:           2855,
		Path:           "msrp://192.0.2.10:2855/s111;tcp",
		AcceptTypes:    []string{"message/cpim", "application/im-iscomposing+xml"},
		FileSelector:   `name:"cat.jpg" type:image/jpeg size:1024`,
		FileTransferID: "ft-1",
		SessionID:      42,
	})
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "m=message 2855 TCP/MSRP *\r\n")
	assert.Contains(t, s, "c=IN IP4 192.0.2.10\r\n")
	assert.Contains(t, s, "a=accept-types:message/cpim application/im-iscomposing+xml\r\n")
	assert.Contains(t, s, "a=file-transfer-id:ft-1\r\n")
	assert.Contains(t, s, "a=setup:active\r\n")
	assert.Contains(t, s, "a=path:msrp://192.0.2.10:2855/s111;tcp\r\n")
	assert.Contains(t, s, "a=sendrecv\r\n")
	assert.True(t, strings.Index(s, "a=setup") < strings.Index(s, "a=path"))

	again, err := BuildMSRPOffer(MSRPOffer{
		Host:           "192.0.2.10",
		Port:           2855,
		Path:           "msrp://192.0.2.10:2855/s111;tcp",
		AcceptTypes:    []string{"message/cpim", "application/im-iscomposing+xml"},
		FileSelector:   `name:"cat.jpg" type:image/jpeg size:1024`,
		FileTransferID: "ft-1",
		SessionID:      42,
	})
	require.NoError(t, err)
	assert.Equal(t, body, again)

	_, err = BuildMSRPOffer(MSRPOffer{Host: "192.0.2.10"})
	assert.ErrorIs(t, err, ErrUnsupportedContent)
}

func TestParseMSRPAnswer(t *testing.T) {
	offer, err := BuildMSRPOffer(MSRPOffer{
		Host:        "198.51.100.7",
		Port:        7394,
		Path:        "msrp://198.51.100.7:7394/b22;tcp",
		AcceptTypes: []string{"message/cpim"},
		Setup:       MSRPSetupPassive,
	})
	require.NoError(t, err)

	a, err := ParseMSRPAnswer(offer)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", a.Host)
	assert.Equal(t, 7394, a.Port)
	assert.Equal(t, "msrp://198.51.100.7:7394/b22;tcp", a.Path)
	assert.Equal(t, "passive", a.Setup)
	assert.Equal(t, []string{"message/cpim"}, a.AcceptTypes)

	audio := "v=0\r\no=- 1 1 IN IP4 192.0.2.1\r\ns=-\r\nc=IN IP4 192.0.2.1\r\nt=0 0\r\nm=audio 4000 RTP/AVP 0\r\n"
	_, err = ParseMSRPAnswer([]byte(audio))
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	_, err = ParseMSRPAnswer([]byte("garbage"))
	assert.Error(t, err)
}
