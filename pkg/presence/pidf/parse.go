package pidf

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"braces.dev/errtrace"
)

type xmlPresence struct {
	XMLName xml.Name    `xml:"urn:ietf:params:xml:ns:pidf presence"`
	Entity  string      `xml:"entity,attr"`
	Tuples  []xmlTuple  `xml:"urn:ietf:params:xml:ns:pidf tuple"`
	Persons []xmlPerson `xml:"urn:ietf:params:xml:ns:pidf:data-model person"`
}

type xmlTuple struct {
	ID        string         `xml:"id,attr"`
	Status    xmlStatus      `xml:"urn:ietf:params:xml:ns:pidf status"`
	Service   *xmlServiceDsc `xml:"urn:oma:xml:prs:pidf:oma-pres service-description"`
	Contact   string         `xml:"urn:ietf:params:xml:ns:pidf contact"`
	Timestamp string         `xml:"urn:ietf:params:xml:ns:pidf timestamp"`
}

type xmlStatus struct {
	Basic   string      `xml:"urn:ietf:params:xml:ns:pidf basic"`
	Geopriv *xmlGeopriv `xml:"urn:ietf:params:xml:ns:pidf:geopriv10 geopriv"`
}

type xmlServiceDsc struct {
	ServiceID string `xml:"urn:oma:xml:prs:pidf:oma-pres service-id"`
	Version   string `xml:"urn:oma:xml:prs:pidf:oma-pres version"`
}

type xmlGeopriv struct {
	LocationInfo struct {
		Pos string `xml:"http://www.opengis.net/gml location>Point>pos"`
	} `xml:"urn:ietf:params:xml:ns:pidf:geopriv10 location-info"`
	Method string `xml:"urn:ietf:params:xml:ns:pidf:geopriv10 method"`
}

type xmlPerson struct {
	ID          string   `xml:"id,attr"`
	Willingness string   `xml:"urn:oma:xml:prs:pidf:oma-pres overriding-willingness>basic"`
	Homepage    string   `xml:"urn:ietf:params:xml:ns:pidf:cipid homepage"`
	Icon        *xmlIcon `xml:"urn:ietf:params:xml:ns:pidf:rpid status-icon"`
	Note        string   `xml:"urn:ietf:params:xml:ns:pidf:data-model note"`
	Timestamp   string   `xml:"urn:ietf:params:xml:ns:pidf:data-model timestamp"`
}

type xmlIcon struct {
	URL         string `xml:",chardata"`
	ETag        string `xml:"urn:oma:xml:pde:pidf:ext etag,attr"`
	Size        string `xml:"urn:oma:xml:pde:pidf:ext fsize,attr"`
	ContentType string `xml:"urn:oma:xml:pde:pidf:ext contenttype,attr"`
	Resolution  string `xml:"urn:oma:xml:pde:pidf:ext resolution,attr"`
}

// ParseDocument разбирает PIDF документ.
//
// Документ без capability tuples (permanent state) допустим:
// Capabilities тогда остается nil. Неизвестные tuples пропускаются.
func ParseDocument(data []byte) (*Document, error) {
	var px xmlPresence
	if err := xml.Unmarshal(data, &px); err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %v", ErrInvalidDocument, err))
	}
	if px.Entity == "" {
		return nil, errtrace.Wrap(ErrNoEntity)
	}

	doc := &Document{Entity: px.Entity}
	for _, t := range px.Tuples {
		switch {
		case t.Service != nil:
			if doc.Capabilities == nil {
				doc.Capabilities = &Capabilities{}
			}
			doc.Capabilities.set(strings.TrimSpace(t.Service.ServiceID), strings.TrimSpace(t.Status.Basic) == BasicOpen)
			if doc.Contact == "" {
				doc.Contact = strings.TrimSpace(t.Contact)
			}
		case t.Status.Geopriv != nil:
			g, err := parseGeoloc(t.Status.Geopriv)
			if err != nil {
				return nil, errtrace.Wrap(err)
			}
			doc.Geoloc = g
		}
		if doc.Timestamp.IsZero() {
			doc.Timestamp = parseTime(t.Timestamp)
		}
	}

	if len(px.Persons) > 0 {
		xp := px.Persons[0]
		p := &Person{
			Willingness: strings.TrimSpace(xp.Willingness),
			Homepage:    strings.TrimSpace(xp.Homepage),
			Note:        xp.Note,
		}
		if xp.Icon != nil && strings.TrimSpace(xp.Icon.URL) != "" {
			size, _ := strconv.Atoi(xp.Icon.Size)
			p.Icon = &Icon{
				URL:         strings.TrimSpace(xp.Icon.URL),
				ETag:        xp.Icon.ETag,
				ContentType: xp.Icon.ContentType,
				Size:        size,
				Resolution:  xp.Icon.Resolution,
			}
		}
		doc.Person = p
		if doc.Timestamp.IsZero() {
			doc.Timestamp = parseTime(xp.Timestamp)
		}
	}
	return doc, nil
}

func parseGeoloc(gp *xmlGeopriv) (*Geoloc, error) {
	pos := gp.LocationInfo.Pos
	fields := strings.Fields(pos)
	if len(fields) < 2 {
		return nil, errtrace.Wrap(fmt.Errorf("%w: gml:pos %q", ErrInvalidDocument, pos))
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: latitude: %v", ErrInvalidDocument, err))
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: longitude: %v", ErrInvalidDocument, err))
	}
	g := &Geoloc{Latitude: lat, Longitude: lon, Method: strings.TrimSpace(gp.Method)}
	if len(fields) > 2 {
		alt, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: altitude: %v", ErrInvalidDocument, err))
		}
		g.Altitude = &alt
	}
	return g, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
