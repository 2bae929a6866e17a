package message

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// MSRP значения по умолчанию
const (
	MSRPProto         = "TCP/MSRP"
	MSRPDefaultPort   = 9
	MSRPSetupActive   = "active"
	MSRPSetupPassive  = "passive"
	MSRPSetupActpass  = "actpass"
	MSRPDirectionSend = "sendonly"
	MSRPDirectionRecv = "recvonly"
	MSRPDirectionBoth = "sendrecv"
)

// MSRPOffer описание MSRP медиа для чата и передачи файлов
type MSRPOffer struct {
	Host               string
	Port               int
	Path               string
	AcceptTypes        []string
	AcceptWrappedTypes []string
	Setup              string
	Direction          string
	// FileSelector и FileTransferID только для передачи файлов (RFC 5547)
	FileSelector   string
	FileTransferID string
	SessionID      uint64
}

// BuildMSRPOffer собирает SDP с одной m=message строкой
func BuildMSRPOffer(o MSRPOffer) ([]byte, error) {
	if o.Host == "" || o.Path == "" {
		return nil, buildError("SDP", ErrUnsupportedContent)
	}
	port := o.Port
	if port == 0 {
		port = MSRPDefaultPort
	}
	setup := o.Setup
	if setup == "" {
		setup = MSRPSetupActive
	}
	direction := o.Direction
	if direction == "" {
		direction = MSRPDirectionBoth
	}

	desc := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      o.SessionID,
			SessionVersion: o.SessionID,
			NetworkType:    "IN",
			AddressType:    addressType(o.Host),
			UnicastAddress: o.Host,
		},
		SessionName: sdp.SessionName("-"),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: addressType(o.Host),
			Address:     &sdp.Address{Address: o.Host},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "message",
			Port:    sdp.RangedPort{Value: port},
			Protos:  strings.Split(MSRPProto, "/"),
			Formats: []string{"*"},
		},
	}
	if len(o.AcceptTypes) > 0 {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("accept-types", strings.Join(o.AcceptTypes, " ")))
	}
	if len(o.AcceptWrappedTypes) > 0 {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("accept-wrapped-types", strings.Join(o.AcceptWrappedTypes, " ")))
	}
	if o.FileSelector != "" {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("file-selector", o.FileSelector))
	}
	if o.FileTransferID != "" {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("file-transfer-id", o.FileTransferID))
	}
	md.Attributes = append(md.Attributes,
		sdp.NewAttribute("setup", setup),
		sdp.NewAttribute("path", o.Path),
		sdp.NewPropertyAttribute(direction),
	)
	desc.MediaDescriptions = []*sdp.MediaDescription{md}

	return desc.Marshal()
}

// MSRPAnswer то, что нужно из ответа для установки MSRP сессии
type MSRPAnswer struct {
	Host        string
	Port        int
	Path        string
	Setup       string
	AcceptTypes []string
}

// ParseMSRPAnswer разбирает SDP answer и возвращает первую m=message строку
func ParseMSRPAnswer(body []byte) (*MSRPAnswer, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("parse sdp: %w", err)
	}

	for _, md := range desc.MediaDescriptions {
		if md.MediaName.Media != "message" {
			continue
		}
		a := &MSRPAnswer{Port: md.MediaName.Port.Value}
		switch {
		case md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil:
			a.Host = md.ConnectionInformation.Address.Address
		case desc.ConnectionInformation != nil && desc.ConnectionInformation.Address != nil:
			a.Host = desc.ConnectionInformation.Address.Address
		}
		a.Path, _ = md.Attribute("path")
		a.Setup, _ = md.Attribute("setup")
		if v, ok := md.Attribute("accept-types"); ok {
			a.AcceptTypes = strings.Fields(v)
		}
		if a.Path == "" {
			return nil, buildError("SDP", ErrUnsupportedContent)
		}
		return a, nil
	}
	return nil, buildError("SDP", ErrUnsupportedContent)
}

func addressType(host string) string {
	if strings.Contains(host, ":") {
		return "IP6"
	}
	return "IP4"
}
