package analytics

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hatefsystems/search-engine-core-sub000/middleware"
	"github.com/hatefsystems/search-engine-core-sub000/model"
	"github.com/mileusna/useragent"
)

// Device classes stored on events
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// ClientFamilies reduces a User-Agent header to browser, OS and device class.
// The header itself is not kept.
func ClientFamilies(userAgent string) (browser, os, device string) {
	if strings.TrimSpace(userAgent) == "" {
		return "", "", ""
	}

	ua := useragent.Parse(userAgent)
	switch {
	case ua.Bot:
		device = DeviceBot
	case ua.Tablet:
		device = DeviceTablet
	case ua.Mobile:
		device = DeviceMobile
	case ua.Desktop:
		device = DeviceDesktop
	}
	return ua.Name, ua.OS, device
}

// ReferrerHost keeps only the host of an http(s) Referer, lowercased and without port
func ReferrerHost(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// AccessFromRequest builds the persisted shape of a request. The client
// address is used for the geo lookup and then dropped.
func AccessFromRequest(r *http.Request, geo GeoLocator, trustProxy bool) model.AccessEvent {
	var loc Location
	if geo != nil {
		loc = geo.Lookup(net.ParseIP(middleware.ClientAddr(r, trustProxy)))
	}
	browser, os, device := ClientFamilies(r.UserAgent())

	return model.AccessEvent{
		Country:       loc.Country,
		City:          loc.City,
		BrowserFamily: browser,
		OSFamily:      os,
		DeviceClass:   device,
		ReferrerHost:  ReferrerHost(r.Referer()),
	}
}
