package pidf

import (
	"encoding/xml"
	"fmt"

	"braces.dev/errtrace"
)

// Состояния instance в RLMI
const (
	InstanceActive     = "active"
	InstancePending    = "pending"
	InstanceTerminated = "terminated"
)

// ResourceList RLMI документ (RFC 4662)
type ResourceList struct {
	URI       string
	Version   int
	FullState bool
	Resources []Resource
}

// Resource один ресурс списка
type Resource struct {
	URI       string
	Name      string
	Instances []Instance
}

// State состояние первого instance ресурса или пустая строка
func (r Resource) State() string {
	if len(r.Instances) == 0 {
		return ""
	}
	return r.Instances[0].State
}

// Instance состояние подписки на ресурс
type Instance struct {
	ID     string
	State  string
	Reason string
	// CID ссылка на часть multipart тела с PIDF документом ресурса
	CID string
}

type xmlList struct {
	XMLName   xml.Name      `xml:"urn:ietf:params:xml:ns:rlmi list"`
	URI       string        `xml:"uri,attr"`
	Version   int           `xml:"version,attr"`
	FullState bool          `xml:"fullState,attr"`
	Resources []xmlResource `xml:"urn:ietf:params:xml:ns:rlmi resource"`
}

type xmlResource struct {
	URI       string        `xml:"uri,attr"`
	Name      string        `xml:"urn:ietf:params:xml:ns:rlmi name"`
	Instances []xmlInstance `xml:"urn:ietf:params:xml:ns:rlmi instance"`
}

type xmlInstance struct {
	ID     string `xml:"id,attr"`
	State  string `xml:"state,attr"`
	Reason string `xml:"reason,attr"`
	CID    string `xml:"cid,attr"`
}

// ParseResourceList разбирает RLMI часть NOTIFY
func ParseResourceList(data []byte) (*ResourceList, error) {
	var xl xmlList
	if err := xml.Unmarshal(data, &xl); err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: rlmi: %v", ErrInvalidDocument, err))
	}

	rl := &ResourceList{URI: xl.URI, Version: xl.Version, FullState: xl.FullState}
	for _, r := range xl.Resources {
		res := Resource{URI: r.URI, Name: r.Name}
		for _, in := range r.Instances {
			res.Instances = append(res.Instances, Instance(in))
		}
		rl.Resources = append(rl.Resources, res)
	}
	return rl, nil
}
