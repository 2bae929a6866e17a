package pidf

import (
	"encoding/xml"
	"fmt"
	"strings"

	"braces.dev/errtrace"
)

// Статусы наблюдателя (RFC 3858)
const (
	WatcherPending    = "pending"
	WatcherActive     = "active"
	WatcherWaiting    = "waiting"
	WatcherTerminated = "terminated"
)

// WatcherInfo документ watcherinfo
type WatcherInfo struct {
	Version int
	// State full или partial
	State string
	Lists []WatcherList
}

// WatcherList наблюдатели одного ресурса
type WatcherList struct {
	Resource string
	Package  string
	Watchers []Watcher
}

// Watcher один наблюдатель
type Watcher struct {
	ID          string
	URI         string
	Status      string
	Event       string
	DisplayName string
}

type xmlWatcherInfo struct {
	XMLName xml.Name         `xml:"urn:ietf:params:xml:ns:watcherinfo watcherinfo"`
	Version int              `xml:"version,attr"`
	State   string           `xml:"state,attr"`
	Lists   []xmlWatcherList `xml:"urn:ietf:params:xml:ns:watcherinfo watcher-list"`
}

type xmlWatcherList struct {
	Resource string       `xml:"resource,attr"`
	Package  string       `xml:"package,attr"`
	Watchers []xmlWatcher `xml:"urn:ietf:params:xml:ns:watcherinfo watcher"`
}

type xmlWatcher struct {
	URI         string `xml:",chardata"`
	ID          string `xml:"id,attr"`
	Status      string `xml:"status,attr"`
	Event       string `xml:"event,attr"`
	DisplayName string `xml:"display-name,attr"`
}

// ParseWatcherInfo разбирает тело NOTIFY пакета presence.winfo
func ParseWatcherInfo(data []byte) (*WatcherInfo, error) {
	var xw xmlWatcherInfo
	if err := xml.Unmarshal(data, &xw); err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: watcherinfo: %v", ErrInvalidDocument, err))
	}

	wi := &WatcherInfo{Version: xw.Version, State: xw.State}
	for _, l := range xw.Lists {
		list := WatcherList{Resource: l.Resource, Package: l.Package}
		for _, w := range l.Watchers {
			list.Watchers = append(list.Watchers, Watcher{
				ID:          w.ID,
				URI:         strings.TrimSpace(w.URI),
				Status:      w.Status,
				Event:       w.Event,
				DisplayName: w.DisplayName,
			})
		}
		wi.Lists = append(wi.Lists, list)
	}
	return wi, nil
}
