package pidf

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"time"

	"braces.dev/errtrace"
	"mellium.im/xmlstream"
)

// BuildDocument сериализует документ.
// Одинаковый документ всегда дает одинаковые байты: capability tuples t1..t5,
// затем g1, затем person p1.
func BuildDocument(doc Document) ([]byte, error) {
	if doc.Entity == "" {
		return nil, errtrace.Wrap(ErrNoEntity)
	}

	var body []xml.TokenReader
	if doc.Capabilities != nil {
		for _, s := range Services {
			body = append(body, capabilityTuple(s, doc.Capabilities.Supports(s), doc.Contact, doc.Timestamp))
		}
	}
	if doc.Geoloc != nil {
		body = append(body, geolocTuple(doc.Geoloc, doc.Timestamp))
	}
	if doc.Person != nil {
		body = append(body, personElement(doc.Person, doc.Timestamp))
	}

	root := xml.StartElement{
		Name: xml.Name{Local: "presence"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NSPIDF},
			{Name: xml.Name{Local: "xmlns:op"}, Value: NSOMA},
			{Name: xml.Name{Local: "xmlns:opd"}, Value: NSOMAExt},
			{Name: xml.Name{Local: "xmlns:pdm"}, Value: NSDM},
			{Name: xml.Name{Local: "xmlns:rpid"}, Value: NSRPID},
			{Name: xml.Name{Local: "xmlns:ci"}, Value: NSCIPID},
			{Name: xml.Name{Local: "xmlns:gp"}, Value: NSGP},
			{Name: xml.Name{Local: "xmlns:gml"}, Value: NSGML},
			{Name: xml.Name{Local: "entity"}, Value: doc.Entity},
		},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if _, err := xmlstream.Copy(enc, xmlstream.Wrap(xmlstream.MultiReader(body...), root)); err != nil {
		return nil, errtrace.Wrap(err)
	}
	if err := enc.Flush(); err != nil {
		return nil, errtrace.Wrap(err)
	}
	return buf.Bytes(), nil
}

func capabilityTuple(s Service, open bool, contact string, ts time.Time) xml.TokenReader {
	basic := BasicClosed
	if open {
		basic = BasicOpen
	}
	inner := []xml.TokenReader{
		elem("status", text("basic", basic)),
		elem("op:service-description",
			text("op:service-id", s.ID),
			text("op:version", s.Version),
		),
	}
	if contact != "" {
		inner = append(inner, text("contact", contact))
	}
	if !ts.IsZero() {
		inner = append(inner, text("timestamp", formatTime(ts)))
	}
	return elemAttr("tuple", []xml.Attr{attr("id", s.TupleID)}, inner...)
}

// Системы координат gml:Point: WGS 84 без высоты и с высотой
const (
	srs2D = "urn:ogc:def:crs:EPSG::4326"
	srs3D = "urn:ogc:def:crs:EPSG::4979"
)

func geolocTuple(g *Geoloc, ts time.Time) xml.TokenReader {
	pos := strconv.FormatFloat(g.Latitude, 'f', -1, 64) + " " + strconv.FormatFloat(g.Longitude, 'f', -1, 64)
	srs := srs2D
	if g.Altitude != nil {
		pos += " " + strconv.FormatFloat(*g.Altitude, 'f', -1, 64)
		srs = srs3D
	}
	geopriv := []xml.TokenReader{
		elem("gp:location-info",
			elem("gml:location",
				elemAttr("gml:Point", []xml.Attr{attr("srsName", srs)},
					text("gml:pos", pos),
				),
			),
		),
	}
	if g.Method != "" {
		geopriv = append(geopriv, text("gp:method", g.Method))
	}
	inner := []xml.TokenReader{
		elem("status", elem("gp:geopriv", geopriv...)),
	}
	if !ts.IsZero() {
		inner = append(inner, text("timestamp", formatTime(ts)))
	}
	return elemAttr("tuple", []xml.Attr{attr("id", "g1")}, inner...)
}

func personElement(p *Person, ts time.Time) xml.TokenReader {
	var inner []xml.TokenReader
	if p.Willingness != "" {
		inner = append(inner, elem("op:overriding-willingness", text("op:basic", p.Willingness)))
	}
	if p.Homepage != "" {
		inner = append(inner, text("ci:homepage", p.Homepage))
	}
	if p.Icon != nil && p.Icon.URL != "" {
		var attrs []xml.Attr
		if p.Icon.ETag != "" {
			attrs = append(attrs, attr("opd:etag", p.Icon.ETag))
		}
		if p.Icon.Size > 0 {
			attrs = append(attrs, attr("opd:fsize", strconv.Itoa(p.Icon.Size)))
		}
		if p.Icon.ContentType != "" {
			attrs = append(attrs, attr("opd:contenttype", p.Icon.ContentType))
		}
		if p.Icon.Resolution != "" {
			attrs = append(attrs, attr("opd:resolution", p.Icon.Resolution))
		}
		inner = append(inner, elemAttr("rpid:status-icon", attrs, xmlstream.Token(xml.CharData(p.Icon.URL))))
	}
	if p.Note != "" {
		inner = append(inner, text("pdm:note", p.Note))
	}
	if !ts.IsZero() {
		inner = append(inner, text("pdm:timestamp", formatTime(ts)))
	}
	return elemAttr("pdm:person", []xml.Attr{attr("id", "p1")}, inner...)
}

func elem(name string, inner ...xml.TokenReader) xml.TokenReader {
	return elemAttr(name, nil, inner...)
}

func elemAttr(name string, attrs []xml.Attr, inner ...xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(
		xmlstream.MultiReader(inner...),
		xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs},
	)
}

func text(name, value string) xml.TokenReader {
	return elem(name, xmlstream.Token(xml.CharData(value)))
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
