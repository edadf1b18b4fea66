package render

import "github.com/langerlad/bulk-ip-app/internal/domain"

type NetworkView struct {
	DisplayName   string
	Registry      string
	Registrar     string
	ShowRegistrar bool
	ASN           string
	HasASN        bool
	Prefix        string
	Netname       string
	Country       string
	IPRange       string
	CIDR          string
	RegDate       string
	AbuseContacts []string
	HasDetails    bool
}

// RenderNetwork returns nil when the record carries no registry data.
func RenderNetwork(info *domain.NetworkInfo) *NetworkView {
	if info.IsEmpty() {
		return nil
	}

	asn := info.ASN.String()
	view := &NetworkView{
		DisplayName:   networkDisplayName(info),
		Registry:      info.Registry,
		Registrar:     networkRegistrar(info),
		ShowRegistrar: info.Registrar != "" || info.Holder != "" || info.Registry != "",
		ASN:           "Unknown",
		HasASN:        asn != "",
		Prefix:        info.Prefix,
		Netname:       info.Netname,
		Country:       info.Country,
		IPRange:       info.IPRange,
		CIDR:          info.CIDR,
		RegDate:       info.RegDate,
		AbuseContacts: info.AbuseContacts,
	}
	if view.HasASN {
		view.ASN = "AS" + asn
	}
	view.HasDetails = info.Prefix != "" || view.HasASN || info.Holder != "" || info.Netname != "" ||
		info.Country != "" || info.Registrar != "" || info.Registry != "" || info.IPRange != "" || info.CIDR != ""

	return view
}

func networkDisplayName(info *domain.NetworkInfo) string {
	switch {
	case info.Holder != "":
		return info.Holder
	case info.Registrar != "":
		return info.Registrar
	case info.Netname != "":
		return "Network: " + info.Netname
	default:
		return "Network Information"
	}
}

func networkRegistrar(info *domain.NetworkInfo) string {
	switch {
	case info.Registrar != "":
		return info.Registrar
	case info.Holder != "" && info.Holder != info.Netname:
		return info.Holder
	case info.Registry != "":
		return info.Registry + " Registry"
	default:
		return "Unknown"
	}
}
