package sonos

// service names a UPnP service by its control endpoint and type URN.
type service struct {
	control string
	urn     string
}

var (
	avTransportService = service{
		control: "/MediaRenderer/AVTransport/Control",
		urn:     "urn:schemas-upnp-org:service:AVTransport:1",
	}
	renderingControlService = service{
		control: "/MediaRenderer/RenderingControl/Control",
		urn:     "urn:schemas-upnp-org:service:RenderingControl:1",
	}
	zoneGroupTopologyService = service{
		control: "/ZoneGroupTopology/Control",
		urn:     "urn:schemas-upnp-org:service:ZoneGroupTopology:1",
	}
)

const (
	deviceDescriptionPath = "/xml/device_description.xml"
	zonePlayerDeviceType  = "urn:schemas-upnp-org:device:ZonePlayer:1"
)
