package domain

// ReputationRecord is the backend's view of one queried address. Optional
// fields are pointers or FlexValues so absence stays distinguishable from
// zero values.
type ReputationRecord struct {
	IPAddress            string       `json:"ipAddress"`
	AbuseConfidenceScore *int         `json:"abuseConfidenceScore,omitempty"`
	CountryName          FlexValue    `json:"countryName"`
	CountryCode          *string      `json:"countryCode,omitempty"`
	ISP                  FlexValue    `json:"isp"`
	Domain               FlexValue    `json:"domain"`
	UsageType            FlexValue    `json:"usageType"`
	Hostnames            FlexValue    `json:"hostnames"`
	IsTor                bool         `json:"isTor"`
	IsPublic             *bool        `json:"isPublic,omitempty"`
	IsWhitelisted        bool         `json:"isWhitelisted"`
	IPVersion            int          `json:"ipVersion,omitempty"`
	TotalReports         *int         `json:"totalReports,omitempty"`
	NumDistinctUsers     *int         `json:"numDistinctUsers,omitempty"`
	LastReportedAt       *string      `json:"lastReportedAt,omitempty"`
	Reports              []Report     `json:"reports,omitempty"`
	Error                *string      `json:"error,omitempty"`
	Network              *NetworkInfo `json:"ripe,omitempty"`
}

type Report struct {
	ReporterCountryName *string `json:"reporterCountryName,omitempty"`
	ReporterCountryCode *string `json:"reporterCountryCode,omitempty"`
	ReportedAt          *string `json:"reportedAt,omitempty"`
	Comment             *string `json:"comment,omitempty"`
	Categories          []int   `json:"categories,omitempty"`
}

// NetworkInfo carries optional RIPE registry data attached to a record.
type NetworkInfo struct {
	Prefix        string    `json:"prefix,omitempty"`
	ASN           FlexValue `json:"asn"`
	Holder        string    `json:"holder,omitempty"`
	Country       string    `json:"country,omitempty"`
	Netname       string    `json:"netname,omitempty"`
	Registrar     string    `json:"registrar,omitempty"`
	Registry      string    `json:"registry,omitempty"`
	IPRange       string    `json:"ip_range,omitempty"`
	CIDR          string    `json:"cidr,omitempty"`
	RegDate       string    `json:"reg_date,omitempty"`
	AbuseContacts []string  `json:"abuse_contacts,omitempty"`
}

// Failed reports whether the lookup for this address failed. A failed
// record's other fields must not be displayed.
func (r ReputationRecord) Failed() bool {
	return r.Error != nil && *r.Error != ""
}

// Score treats a missing score as 0.
func (r ReputationRecord) Score() int {
	if r.AbuseConfidenceScore == nil {
		return 0
	}
	return *r.AbuseConfidenceScore
}

func (r ReputationRecord) ReportCount() int {
	if r.TotalReports == nil {
		return 0
	}
	return *r.TotalReports
}

// IsPrivate is true only when the backend explicitly says the address is not public.
func (r ReputationRecord) IsPrivate() bool {
	return r.IsPublic != nil && !*r.IsPublic
}

func (r *ReputationRecord) normalize() {
	if r.AbuseConfidenceScore != nil {
		score := clamp(*r.AbuseConfidenceScore, 0, 100)
		r.AbuseConfidenceScore = &score
	}
	if r.TotalReports != nil && *r.TotalReports < 0 {
		zero := 0
		r.TotalReports = &zero
	}
	if r.LastReportedAt != nil && *r.LastReportedAt == "" {
		r.LastReportedAt = nil
	}
	if r.Reports == nil {
		r.Reports = []Report{}
	}
}

// IsEmpty reports whether no registry field carries data.
func (n *NetworkInfo) IsEmpty() bool {
	if n == nil {
		return true
	}
	return n.Prefix == "" && n.ASN.IsNull() && n.Holder == "" && n.Netname == "" && n.Country == "" &&
		n.Registrar == "" && n.Registry == "" && n.IPRange == "" && n.CIDR == "" && n.RegDate == "" &&
		len(n.AbuseContacts) == 0
}

func clamp(value, lower, upper int) int {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}
