// Package pidf кодирует и разбирает документы присутствия RCS:
// PIDF (RFC 3863 + OMA расширения), RLMI, watcherinfo и multipart тела NOTIFY.
package pidf

import (
	"errors"
	"time"
)

// Пространства имен документа присутствия
const (
	NSPIDF   = "urn:ietf:params:xml:ns:pidf"
	NSOMA    = "urn:oma:xml:prs:pidf:oma-pres"
	NSOMAExt = "urn:oma:xml:pde:pidf:ext"
	NSDM     = "urn:ietf:params:xml:ns:pidf:data-model"
	NSRPID   = "urn:ietf:params:xml:ns:pidf:rpid"
	NSCIPID  = "urn:ietf:params:xml:ns:pidf:cipid"
	NSGP     = "urn:ietf:params:xml:ns:pidf:geopriv10"
	NSGML    = "http://www.opengis.net/gml"
	NSRLMI   = "urn:ietf:params:xml:ns:rlmi"
	NSWinfo  = "urn:ietf:params:xml:ns:watcherinfo"
)

// Значения basic
const (
	BasicOpen   = "open"
	BasicClosed = "closed"
)

var (
	// ErrInvalidDocument документ не разбирается как XML нужного вида
	ErrInvalidDocument = errors.New("invalid presence document")
	// ErrNoEntity у документа нет entity
	ErrNoEntity = errors.New("presence document without entity")
)

// Service сервис из фиксированного списка capability tuples
type Service struct {
	TupleID string
	ID      string
	Version string
}

// Фиксированный порядок capability tuples. Порядок входит в формат документа.
var (
	ServiceIMSession         = Service{TupleID: "t1", ID: "org.openmobilealliance:IM-session", Version: "1.0"}
	ServiceFileTransfer      = Service{TupleID: "t2", ID: "org.openmobilealliance:File-Transfer", Version: "1.0"}
	ServiceImageShare        = Service{TupleID: "t3", ID: "org.gsma.imageshare", Version: "1.0"}
	ServiceVideoShare        = Service{TupleID: "t4", ID: "org.gsma.videoshare", Version: "1.0"}
	ServicePresenceDiscovery = Service{TupleID: "t5", ID: "org.3gpp.urn:urn-7:3gpp-application.ims.iari.rcse.dp", Version: "1.0"}
)

// Services все capability сервисы в порядке tuples
var Services = []Service{
	ServiceIMSession,
	ServiceFileTransfer,
	ServiceImageShare,
	ServiceVideoShare,
	ServicePresenceDiscovery,
}

// Capabilities возможности RCS клиента
type Capabilities struct {
	IMSession         bool
	FileTransfer      bool
	ImageShare        bool
	VideoShare        bool
	PresenceDiscovery bool
}

// Supports проверяет сервис по его id
func (c Capabilities) Supports(s Service) bool {
	switch s.ID {
	case ServiceIMSession.ID:
		return c.IMSession
	case ServiceFileTransfer.ID:
		return c.FileTransfer
	case ServiceImageShare.ID:
		return c.ImageShare
	case ServiceVideoShare.ID:
		return c.VideoShare
	case ServicePresenceDiscovery.ID:
		return c.PresenceDiscovery
	}
	return false
}

func (c *Capabilities) set(serviceID string, open bool) {
	switch serviceID {
	case ServiceIMSession.ID:
		c.IMSession = open
	case ServiceFileTransfer.ID:
		c.FileTransfer = open
	case ServiceImageShare.ID:
		c.ImageShare = open
	case ServiceVideoShare.ID:
		c.VideoShare = open
	case ServicePresenceDiscovery.ID:
		c.PresenceDiscovery = open
	}
}

// Geoloc геолокация (tuple g1)
type Geoloc struct {
	Latitude  float64
	Longitude float64
	// Altitude высота в метрах, nil для двумерной точки
	Altitude *float64
	// Method способ определения: GPS, Cell, Manual
	Method string
}

// Icon фото пользователя, хранящееся на XDM
type Icon struct {
	URL         string
	ETag        string
	ContentType string
	Size        int
	Resolution  string
}

// Person блок person (p1)
type Person struct {
	// Willingness open/closed, пусто если не задано
	Willingness string
	// Homepage ссылка "favorite link"
	Homepage string
	Icon     *Icon
	// Note свободный текст
	Note string
}

// Document состояние присутствия одного entity.
//
// Capabilities == nil означает документ "permanent state" без capability tuples.
type Document struct {
	Entity       string
	Contact      string
	Capabilities *Capabilities
	Geoloc       *Geoloc
	Person       *Person
	Timestamp    time.Time
}
